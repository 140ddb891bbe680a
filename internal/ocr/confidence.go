package ocr

import (
	"regexp"
	"strings"
)

var (
	reDate    = regexp.MustCompile(`\b\d{2}[/\-.]\d{2}[/\-.]\d{2,4}\b|\b20\d{2}-\d{2}-\d{2}\b`)
	reCurr    = regexp.MustCompile(`\beur\b|€`)
	reQtyUnit = regexp.MustCompile(`\b\d+(?:[.,]\d+)?\s*(?:un|uni|und|ud|uds|pc|pcs|kg|m2|m3|ml|m)\b`)
	reDocWord = regexp.MustCompile(`guia|remessa|encomenda|fatura|factura|albar[aá]n|pedido|livraison|commande|facture`)
)

// heuristicConfidence scores decoded text by the artifacts purchase documents carry.
func heuristicConfidence(txt string) float64 {
	txtL := strings.ToLower(txt)
	score := 0.2
	if reDate.MatchString(txtL) {
		score += 0.2
	}
	if reCurr.MatchString(txtL) {
		score += 0.1
	}
	if reQtyUnit.MatchString(txtL) {
		score += 0.2
	}
	if reDocWord.MatchString(txtL) {
		score += 0.2
	}
	if len(txt) > 120 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// blendConfidence weights engine confidence over the text heuristic.
func blendConfidence(engine float64, txt string) float64 {
	heur := heuristicConfidence(txt)
	if engine <= 0 {
		return heur
	}
	c := 0.7*engine + 0.3*heur
	if c > 1 {
		c = 1
	}
	return c
}
