package ocr

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Tesseract is one configured tesseract invocation.
type Tesseract struct {
	Runner      Runner
	Bin         string
	Langs       string
	TessdataDir string
	PSM         int
	OEM         int
}

// Recognize runs tesseract in TSV mode once and rebuilds both the text and the
// mean word confidence (0..1) from the word rows.
func (t Tesseract) Recognize(ctx context.Context, imagePath string) (string, float64, error) {
	bin := t.Bin
	if bin == "" {
		bin = "tesseract"
	}
	args := []string{imagePath, "stdout"}
	if t.Langs != "" {
		args = append(args, "-l", t.Langs)
	}
	if t.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.PSM))
	}
	if t.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(t.OEM))
	}
	if t.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := t.Runner.Run(ctx, bin, args...)
	if err != nil {
		return "", 0, fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	text, conf := parseTSV(string(out))
	return text, conf, nil
}

// Probe checks that the binary runs at all.
func (t Tesseract) Probe(ctx context.Context) error {
	bin := t.Bin
	if bin == "" {
		bin = "tesseract"
	}
	if _, errb, err := t.Runner.Run(ctx, bin, "--version"); err != nil {
		return fmt.Errorf("tesseract unavailable: %w: %s", err, truncate(string(errb), 256))
	}
	return nil
}

// TSV columns: level page_num block_num par_num line_num word_num left top width height conf text
const (
	tsvBlock = 2
	tsvPar   = 3
	tsvLine  = 4
	tsvConf  = 10
	tsvText  = 11
)

func parseTSV(out string) (string, float64) {
	var b strings.Builder
	var sum float64
	var n int
	lastLine, lastBlock := "", ""
	for i, ln := range strings.Split(out, "\n") {
		if i == 0 || ln == "" {
			continue
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < tsvText+1 || cols[0] != "5" {
			continue
		}
		word := strings.TrimSpace(cols[tsvText])
		if word == "" {
			continue
		}
		block := cols[tsvBlock]
		line := block + "." + cols[tsvPar] + "." + cols[tsvLine]
		switch {
		case b.Len() == 0:
		case block != lastBlock:
			b.WriteString("\n\n")
		case line != lastLine:
			b.WriteByte('\n')
		default:
			b.WriteByte(' ')
		}
		b.WriteString(word)
		lastLine, lastBlock = line, block

		if c, err := strconv.ParseFloat(cols[tsvConf], 64); err == nil && c >= 0 {
			sum += c
			n++
		}
	}
	if n == 0 {
		return b.String(), 0
	}
	return b.String(), sum / float64(n) / 100.0
}
