package ocr

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// BarcodeScanner finds 2D/1D codes printed on a page image.
type BarcodeScanner interface {
	Scan(ctx context.Context, imagePath string) ([]string, error)
}

// ZbarScanner shells out to zbarimg.
type ZbarScanner struct {
	Runner Runner
	Bin    string
}

func (z ZbarScanner) Scan(ctx context.Context, imagePath string) ([]string, error) {
	bin := z.Bin
	if bin == "" {
		bin = "zbarimg"
	}
	// zbarimg --quiet --raw <img>; exit status 4 means nothing was found
	out, errb, err := z.Runner.Run(ctx, bin, "--quiet", "--raw", imagePath)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 4 {
			return nil, nil
		}
		return nil, fmt.Errorf("zbarimg: %w: %s", err, truncate(string(errb), 256))
	}
	return parseZbar(out), nil
}

func parseZbar(out []byte) []string {
	var codes []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		codes = append(codes, line)
	}
	return codes
}
