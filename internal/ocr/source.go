package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/joseph-ayodele/goods-receipt/constants"
)

// ErrNoRenderer is returned by Source.Pages when page images cannot be produced.
var ErrNoRenderer = errors.New("page rendering unavailable")

// Renderer rasterizes a PDF into page images inside dir.
type Renderer interface {
	Render(ctx context.Context, pdfPath, dir string) ([]string, error)
}

// Source is the document under extraction. Page images are rendered once and
// shared by every strategy and the barcode scanner.
type Source struct {
	Path   string
	Format string

	renderer Renderer

	mu       sync.Mutex
	rendered bool
	pages    []string
	err      error
	dir      string
}

// NewSource validates path and prepares lazy page rendering.
func NewSource(path string, renderer Renderer) (*Source, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("source %q is a directory", path)
	}
	format := constants.MapExtToFormat(filepath.Ext(path))
	if format == "" {
		return nil, fmt.Errorf("unsupported extension: %q", filepath.Ext(path))
	}
	return &Source{Path: path, Format: format, renderer: renderer}, nil
}

func (s *Source) IsPDF() bool { return s.Format == constants.PDF }

// CanRender reports whether page images are obtainable.
func (s *Source) CanRender() bool {
	return s.Format == constants.IMAGE || s.renderer != nil
}

// Pages returns page image paths. Images are their own single page. A render
// interrupted by ctx is retried on the next call.
func (s *Source) Pages(ctx context.Context) ([]string, error) {
	if s.Format == constants.IMAGE {
		return []string{s.Path}, nil
	}
	if s.renderer == nil {
		return nil, ErrNoRenderer
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rendered {
		return s.pages, s.err
	}
	if s.dir == "" {
		dir, err := os.MkdirTemp("", "gr-pages-*")
		if err != nil {
			return nil, err
		}
		s.dir = dir
	}
	pages, err := s.renderer.Render(ctx, s.Path, s.dir)
	if err != nil && ctx.Err() != nil {
		return nil, err
	}
	s.rendered, s.pages, s.err = true, pages, err
	return pages, err
}

// WorkDir is a scratch directory removed by Close.
func (s *Source) WorkDir() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir == "" {
		dir, err := os.MkdirTemp("", "gr-pages-*")
		if err != nil {
			return "", err
		}
		s.dir = dir
	}
	return s.dir, nil
}

// Close removes rendered artifacts.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir == "" {
		return nil
	}
	err := os.RemoveAll(s.dir)
	s.dir = ""
	return err
}

// PdftoppmRenderer renders pages with poppler's pdftoppm.
type PdftoppmRenderer struct {
	Runner   Runner
	Bin      string
	DPI      int
	MaxPages int
}

func (r PdftoppmRenderer) Render(ctx context.Context, pdfPath, dir string) ([]string, error) {
	bin := r.Bin
	if bin == "" {
		bin = "pdftoppm"
	}
	dpi := r.DPI
	if dpi <= 0 {
		dpi = 300
	}
	prefix := filepath.Join(dir, "page")
	// pdftoppm -r 300 -png [-l N] <in.pdf> <dir/page>
	args := []string{"-r", fmt.Sprintf("%d", dpi), "-png"}
	if r.MaxPages > 0 {
		args = append(args, "-l", fmt.Sprintf("%d", r.MaxPages))
	}
	args = append(args, pdfPath, prefix)
	if _, errb, err := r.Runner.Run(ctx, bin, args...); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 512))
	}

	// prefix-1.png, prefix-2.png, ... (zero padded for 10+ pages)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if r.MaxPages > 0 && len(matches) > r.MaxPages {
		matches = matches[:r.MaxPages]
	}
	if len(matches) == 0 {
		return nil, errors.New("pdftoppm produced no images")
	}
	return matches, nil
}
