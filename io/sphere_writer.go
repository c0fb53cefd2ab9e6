// Package io provides the minimal output-file writers spec.md scopes as
// "out of bounds, implementation-defined": a CSV dump of clump component
// spheres, mesh facets, and live contacts, sufficient for a demo harness
// to inspect a run without prescribing a full visualization pipeline.
package io

import (
	"encoding/csv"
	"fmt"
	stdio "io"
	"strconv"
)

// SphereRecord is one component sphere's world-frame snapshot.
type SphereRecord struct {
	OwnerID uint32
	X, Y, Z float64
	Radius  float64
	Family  uint8
}

// WriteSphereFile writes one CSV row per sphere to w.
func WriteSphereFile(w stdio.Writer, records []SphereRecord) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"owner_id", "x", "y", "z", "radius", "family"}); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			strconv.FormatUint(uint64(r.OwnerID), 10),
			formatFloat(r.X),
			formatFloat(r.Y),
			formatFloat(r.Z),
			formatFloat(r.Radius),
			strconv.FormatUint(uint64(r.Family), 10),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	if err := cw.Error(); err != nil {
		return fmt.Errorf("sphere writer: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
