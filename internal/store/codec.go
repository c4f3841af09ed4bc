package store

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"

	"github.com/banshee-data/traffic-control/internal/traffic"
)

// EncodeGrid compresses the grid using gob encoding and gzip compression.
func EncodeGrid(g traffic.Grid) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(g); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeGrid decompresses and decodes a grid from a gob+gzip blob.
func DecodeGrid(blob []byte) (traffic.Grid, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("empty grid blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var g traffic.Grid
	dec := gob.NewDecoder(gz)
	if err := dec.Decode(&g); err != nil {
		return nil, fmt.Errorf("failed to decode grid: %w", err)
	}
	return g, nil
}
