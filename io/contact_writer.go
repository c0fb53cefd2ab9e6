package io

import (
	"encoding/csv"
	"fmt"
	stdio "io"
	"strconv"
)

// ContactRecord is one live contact's geometry snapshot.
type ContactRecord struct {
	GeomA, GeomB     uint32
	X, Y, Z          float64
	NX, NY, NZ       float64
	PenetrationDepth float64
}

// WriteContactFile writes one CSV row per contact to w.
func WriteContactFile(w stdio.Writer, records []ContactRecord) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"geom_a", "geom_b", "x", "y", "z", "nx", "ny", "nz", "depth"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			strconv.FormatUint(uint64(r.GeomA), 10),
			strconv.FormatUint(uint64(r.GeomB), 10),
			formatFloat(r.X), formatFloat(r.Y), formatFloat(r.Z),
			formatFloat(r.NX), formatFloat(r.NY), formatFloat(r.NZ),
			formatFloat(r.PenetrationDepth),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	if err := cw.Error(); err != nil {
		return fmt.Errorf("contact writer: %w", err)
	}
	return nil
}
