package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

var (
	topLevelAllowed = map[string]struct{}{"text": {}, "document_type": {}, "lines": {}}
	lineAllowed     = map[string]struct{}{"code": {}, "description": {}, "quantity": {}, "unit": {}, "order_ref": {}}
	docTypes        = map[string]string{
		"delivery": "delivery", "delivery_note": "delivery", "guia": "delivery", "albaran": "delivery", "bon_de_livraison": "delivery",
		"order": "order", "purchase_order": "order", "encomenda": "order", "pedido": "order", "commande": "order",
		"invoice": "invoice", "fatura": "invoice", "factura": "invoice", "facture": "invoice",
	}
)

// NormalizeTranscription makes a model answer schema-friendly before validation:
// - renames common synonyms (products -> lines, content -> text)
// - coerces numeric quantities to strings
// - maps document_type variants onto the enum
// - removes unknown keys and lines without any description or code
func NormalizeTranscription(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 4)
	rename := func(from, to string) {
		if v, ok := m[from]; ok {
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			dropped = append(dropped, from+"->"+to)
		}
	}
	for _, k := range []string{"products", "produtos", "items", "lineas", "lignes"} {
		rename(k, "lines")
	}
	for _, k := range []string{"content", "full_text", "texto", "raw_text"} {
		rename(k, "text")
	}
	rename("type", "document_type")

	if v, ok := m["text"]; !ok || v == nil {
		m["text"] = ""
	}
	if v, ok := m["document_type"].(string); ok {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(v)), " ", "_")
		if t, known := docTypes[key]; known {
			m["document_type"] = t
		} else {
			m["document_type"] = "unknown"
		}
	} else if _, present := m["document_type"]; present {
		delete(m, "document_type")
		dropped = append(dropped, "document_type(type)")
	}

	if arr, ok := m["lines"].([]any); ok {
		kept := make([]any, 0, len(arr))
		for i, item := range arr {
			line, ok := item.(map[string]any)
			if !ok {
				dropped = append(dropped, fmt.Sprintf("lines[%d](type)", i))
				continue
			}
			if cleaned, ok := normalizeLine(line); ok {
				kept = append(kept, cleaned)
			} else {
				dropped = append(dropped, fmt.Sprintf("lines[%d](empty)", i))
			}
		}
		m["lines"] = kept
	} else if _, present := m["lines"]; present {
		delete(m, "lines")
		dropped = append(dropped, "lines(type)")
	}

	for k := range m {
		if _, ok := topLevelAllowed[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.transcribe.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

func normalizeLine(line map[string]any) (map[string]any, bool) {
	out := make(map[string]any, len(line))
	for k, v := range line {
		if _, ok := lineAllowed[k]; !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				out[k] = s
			}
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		}
	}
	if _, ok := out["description"]; !ok {
		code, hasCode := out["code"]
		if !hasCode {
			return nil, false
		}
		out["description"] = code
	}
	if _, ok := out["quantity"]; !ok {
		return nil, false
	}
	return out, true
}
