package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/ptcbox/internal/safety"
	"github.com/san-kum/ptcbox/internal/sim"
)

type ExportData struct {
	Run    RunMetadata `json:"run"`
	Points []sim.Point `json:"points"`
}

// ExportJSON writes a stored run as one indented JSON document.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	points, err := s.LoadTrace(runID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ExportData{Run: *meta, Points: points})
}

// ExportCSV copies a stored trace to w.
func (s *Store) ExportCSV(w io.Writer, runID string) error {
	points, err := s.LoadTrace(runID)
	if err != nil {
		return err
	}
	return WriteCSV(w, points)
}

func parseSafety(s string) safety.Kind {
	for _, k := range []safety.Kind{safety.OK, safety.Overheat, safety.Fault} {
		if k.String() == s {
			return k
		}
	}
	return safety.OK
}
