package entity

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Supplier is the external party sending documents.
type Supplier struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

var reNonCode = regexp.MustCompile(`[^A-Z0-9_]+`)

// SupplierCodeFromName derives a short stable code from a display name.
func SupplierCodeFromName(name string) string {
	base := strings.ToUpper(strings.TrimSpace(name))
	base = strings.NewReplacer("Á", "A", "À", "A", "Â", "A", "Ã", "A", "É", "E", "Ê", "E", "Í", "I",
		"Ó", "O", "Ô", "O", "Õ", "O", "Ú", "U", "Ç", "C", "Ñ", "N").Replace(base)
	base = reNonCode.ReplaceAllString(base, "_")
	base = strings.Trim(base, "_")
	if len(base) > 16 {
		base = strings.TrimRight(base[:16], "_")
	}
	if base == "" {
		return "SUPPLIER"
	}
	return base
}
