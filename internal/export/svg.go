// Package export renders stored traces as standalone SVG charts.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/ptcbox/internal/sim"
)

// Series is one polyline on a shared time axis.
type Series struct {
	Name  string
	Color string
	Value func(sim.Point) float64
}

// TemperatureSeries plots box, PTC, desired PTC and target.
var TemperatureSeries = []Series{
	{"box", "#00ccff", func(p sim.Point) float64 { return p.Box }},
	{"ptc", "#ff4444", func(p sim.Point) float64 { return p.PTC }},
	{"desired", "#ffaa00", func(p sim.Point) float64 { return p.DesiredPTC }},
	{"target", "#00ff88", func(p sim.Point) float64 { return p.Target }},
}

// TraceToSVG draws the series over time with a legend. Empty string when
// there are fewer than two points.
func TraceToSVG(points []sim.Point, series []Series, width, height int) string {
	if len(points) < 2 || len(series) == 0 {
		return ""
	}

	minT, maxT := points[0].T, points[len(points)-1].T
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		for _, s := range series {
			v := s.Value(p)
			minY = math.Min(minY, v)
			maxY = math.Max(maxY, v)
		}
	}

	rangeT := maxT - minT
	rangeY := maxY - minY
	if rangeT == 0 {
		rangeT = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeY = maxY - minY

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	for _, s := range series {
		sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="%s" stroke-width="1.5" d="M`, s.Color))
		for i, p := range points {
			x := (p.T - minT) / rangeT * float64(width)
			y := float64(height) - (s.Value(p)-minY)/rangeY*float64(height)
			if i == 0 {
				sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
			} else {
				sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
			}
		}
		sb.WriteString("\"/>\n")
	}

	for i, s := range series {
		sb.WriteString(fmt.Sprintf(`<text x="10" y="%d" fill="%s" font-family="monospace" font-size="12">%s</text>
`, 18+i*16, s.Color, s.Name))
	}
	sb.WriteString(fmt.Sprintf(`<text x="%d" y="%d" fill="#666688" font-family="monospace" font-size="11" text-anchor="end">%.1f..%.1f °C over %.0fs</text>
`, width-10, height-8, minY, maxY, rangeT))

	sb.WriteString("</svg>")
	return sb.String()
}
