package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/goods-receipt/internal/document"
)

// Certify fingerprints the document id and its payload. Attempt timings are
// left out so an unchanged document keeps its fingerprint.
func Certify(documentID uuid.UUID, parsed *document.ParsedDocument) (string, error) {
	c := *parsed
	c.Diagnostics.Attempts = slices.Clone(parsed.Diagnostics.Attempts)
	for i := range c.Diagnostics.Attempts {
		c.Diagnostics.Attempts[i].Millis = 0
	}
	b, err := json.Marshal(&c)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(documentID.String()))
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil)), nil
}
