package ocr

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

const rowTolerance = 2.0

type glyph struct {
	s    string
	x, w float64
	font float64
}

type pdfRow struct {
	y      float64
	glyphs []glyph
}

// ReadPDFRows returns the native table-like rows of a born-digital PDF, top to
// bottom, each split into cells on wide horizontal gaps. Scanned PDFs yield no rows.
func ReadPDFRows(path string, maxPages int) (rows [][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panicked: %v", r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	n := r.NumPage()
	if maxPages > 0 && n > maxPages {
		n = maxPages
	}
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, row := range groupRows(p.Content().Text) {
			if cells := row.cells(); len(cells) > 0 {
				rows = append(rows, cells)
			}
		}
	}
	return rows, nil
}

func groupRows(texts []pdf.Text) []pdfRow {
	var rows []pdfRow
	for _, t := range texts {
		if strings.TrimSpace(t.S) == "" && t.S != " " {
			continue
		}
		g := glyph{s: t.S, x: t.X, w: t.W, font: t.FontSize}
		placed := false
		for i := range rows {
			if abs(rows[i].y-t.Y) < rowTolerance {
				rows[i].glyphs = append(rows[i].glyphs, g)
				placed = true
				break
			}
		}
		if !placed {
			rows = append(rows, pdfRow{y: t.Y, glyphs: []glyph{g}})
		}
	}
	// PDF space grows upwards.
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].y > rows[j].y })
	return rows
}

func (r pdfRow) cells() []string {
	gs := r.glyphs
	sort.SliceStable(gs, func(i, j int) bool { return gs[i].x < gs[j].x })

	var cells []string
	var cur strings.Builder
	var end float64
	for i, g := range gs {
		if i > 0 {
			gap := g.x - end
			font := g.font
			if font <= 0 {
				font = 10
			}
			switch {
			case gap > font*1.2:
				cells = appendCell(cells, cur.String())
				cur.Reset()
			case gap > font*0.2:
				cur.WriteByte(' ')
			}
		}
		cur.WriteString(g.s)
		end = g.x + g.w
	}
	return appendCell(cells, cur.String())
}

func appendCell(cells []string, s string) []string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return cells
	}
	return append(cells, s)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
