package seed

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io"
)

//go:embed demo/*.csv
var demoFS embed.FS

// DemoPO is the purchase order of the demo dataset.
const DemoPO = "PO-2025-0001"

// Report holds the counters of a full seed run.
type Report struct {
	Suppliers Counters `json:"suppliers"`
	POLines   Counters `json:"po_lines"`
	Mappings  Counters `json:"mappings"`
}

// Files names the CSV inputs of a full seed run; empty entries are skipped.
type Files struct {
	Suppliers io.Reader
	POLines   io.Reader
	Mappings  io.Reader
}

// Load imports suppliers, then PO lines, then mappings.
func (s *Seeder) Load(ctx context.Context, in Files) (Report, error) {
	var rep Report
	var err error
	if in.Suppliers != nil {
		if rep.Suppliers, err = s.Suppliers(ctx, in.Suppliers); err != nil {
			return rep, fmt.Errorf("suppliers: %w", err)
		}
	}
	if in.POLines != nil {
		if rep.POLines, err = s.POLines(ctx, in.POLines); err != nil {
			return rep, fmt.Errorf("po lines: %w", err)
		}
	}
	if in.Mappings != nil {
		if rep.Mappings, err = s.Mappings(ctx, in.Mappings); err != nil {
			return rep, fmt.Errorf("mappings: %w", err)
		}
	}
	return rep, nil
}

// Demo loads supplier F001, PO-2025-0001 with two foam block lines and the
// supplier codes that map onto them. Running it again changes nothing.
func (s *Seeder) Demo(ctx context.Context) (Report, error) {
	read := func(name string) (io.Reader, error) {
		b, err := demoFS.ReadFile("demo/" + name)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(b), nil
	}
	var in Files
	var err error
	if in.Suppliers, err = read("suppliers.csv"); err != nil {
		return Report{}, err
	}
	if in.POLines, err = read("po_lines.csv"); err != nil {
		return Report{}, err
	}
	if in.Mappings, err = read("mappings.csv"); err != nil {
		return Report{}, err
	}
	return s.Load(ctx, in)
}
