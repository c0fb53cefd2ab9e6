package io

import (
	"encoding/csv"
	"fmt"
	stdio "io"
	"strconv"
)

// TriangleRecord is one mesh facet's world-frame vertex snapshot.
type TriangleRecord struct {
	OwnerID       uint32
	V0X, V0Y, V0Z float64
	V1X, V1Y, V1Z float64
	V2X, V2Y, V2Z float64
}

// WriteMeshFile writes one CSV row per triangle to w.
func WriteMeshFile(w stdio.Writer, records []TriangleRecord) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"owner_id", "v0x", "v0y", "v0z", "v1x", "v1y", "v1z", "v2x", "v2y", "v2z"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			strconv.FormatUint(uint64(r.OwnerID), 10),
			formatFloat(r.V0X), formatFloat(r.V0Y), formatFloat(r.V0Z),
			formatFloat(r.V1X), formatFloat(r.V1Y), formatFloat(r.V1Z),
			formatFloat(r.V2X), formatFloat(r.V2Y), formatFloat(r.V2Z),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	if err := cw.Error(); err != nil {
		return fmt.Errorf("mesh writer: %w", err)
	}
	return nil
}
