package ingest

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/goods-receipt/constants"
)

// AllowedExt checks if a file extension is in the inbox set.
func AllowedExt(ext string) bool {
	ext = constants.NormalizeExt(ext)
	_, ok := constants.AllowedExtensions[ext]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}

// Meta is what a file's location and name say about the document.
type Meta struct {
	SupplierCode string
	SupplierName string
	DocType      constants.DocType
	Number       string
}

var reCodeLike = regexp.MustCompile(`^[A-Za-z0-9_-]{1,16}$`)

// ParseName derives document metadata from path relative to root: the parent
// folder names the supplier (a code when it looks like one, else a name), the
// filename prefix the document type, and the stem the document number.
func ParseName(root, path, defaultSupplier string, defaultType constants.DocType) Meta {
	m := Meta{DocType: defaultType}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m.Number = strings.TrimSpace(stem)
	prefix := m.Number
	if i := strings.IndexAny(prefix, "_- ."); i > 0 {
		prefix = prefix[:i]
	}
	if dt, ok := constants.ParseDocType(strings.TrimRight(prefix, "0123456789")); ok {
		m.DocType = dt
	}

	folder := ""
	if root == "" {
		folder = filepath.Base(filepath.Dir(path))
	} else if rel, err := filepath.Rel(root, filepath.Dir(path)); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
		folder = filepath.Base(rel)
	}
	if folder == "." || folder == string(filepath.Separator) {
		folder = ""
	}
	if folder == "" {
		folder = defaultSupplier
	}
	if reCodeLike.MatchString(folder) {
		m.SupplierCode = strings.ToUpper(folder)
	} else {
		m.SupplierName = folder
	}
	return m
}
