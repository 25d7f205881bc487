package export

import (
	"strings"
	"testing"

	"github.com/san-kum/ptcbox/internal/sim"
)

func trace() []sim.Point {
	return []sim.Point{
		{T: 0, Box: 22, PTC: 22, DesiredPTC: 65, Target: 40},
		{T: 1, Box: 22.1, PTC: 30, DesiredPTC: 65, Target: 40},
		{T: 2, Box: 22.3, PTC: 38, DesiredPTC: 65, Target: 40},
	}
}

func TestTraceToSVG(t *testing.T) {
	svg := TraceToSVG(trace(), TemperatureSeries, 400, 200)
	if !strings.HasPrefix(svg, "<?xml") || !strings.HasSuffix(svg, "</svg>") {
		t.Fatal("not a complete svg document")
	}
	if got := strings.Count(svg, "<path"); got != len(TemperatureSeries) {
		t.Errorf("got %d paths, want %d", got, len(TemperatureSeries))
	}
	for _, s := range TemperatureSeries {
		if !strings.Contains(svg, ">"+s.Name+"<") {
			t.Errorf("legend missing %s", s.Name)
		}
	}
	if !strings.Contains(svg, `d="M0.0,`) {
		t.Error("first point should sit on the left edge")
	}
}

func TestTraceToSVGTooShort(t *testing.T) {
	if svg := TraceToSVG(trace()[:1], TemperatureSeries, 400, 200); svg != "" {
		t.Error("expected empty output for a single point")
	}
	if svg := TraceToSVG(trace(), nil, 400, 200); svg != "" {
		t.Error("expected empty output without series")
	}
}
