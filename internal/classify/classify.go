// Package classify picks the document dialect from extracted text.
package classify

import (
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/joseph-ayodele/goods-receipt/internal/document"
)

// Rule matches when every group has at least one keyword present.
type Rule struct {
	Category string
	AllOf    [][]string
}

// DefaultRules are ordered: a named vendor with a document word comes before
// document words, which come before language-only markers.
var DefaultRules = []Rule{
	{Category: document.CategoryMultiOrder, AllOf: [][]string{{"elastron"}, {"fatura", "factura", "invoice"}}},

	{Category: document.CategoryOrderConfirm, AllOf: [][]string{{"nota de encomenda", "confirmação de encomenda", "confirmacao de encomenda", "encomenda n"}}},
	{Category: document.CategoryDeliveryES, AllOf: [][]string{{"albarán", "albaran", "nota de entrega"}}},
	{Category: document.CategoryDeliveryFR, AllOf: [][]string{{"bon de livraison", "bordereau de livraison"}}},
	{Category: document.CategoryDeliveryPT, AllOf: [][]string{{"guia de remessa", "guia de transporte", "guia remessa"}}},

	{Category: document.CategoryDeliveryES, AllOf: [][]string{{"cantidad", "unidades", "pedido", "cif"}, {"descripción", "descripcion", "artículo", "articulo"}}},
	{Category: document.CategoryDeliveryFR, AllOf: [][]string{{"quantité", "quantite", "désignation"}, {"référence", "reference", "commande", "siret"}}},
	{Category: document.CategoryDeliveryPT, AllOf: [][]string{{"quantidade", "qtd", "designação", "designacao"}, {"contribuinte", "nif", "artigo", "encomenda"}}},
}

// Classifier matches all rule keywords in one Aho-Corasick pass.
type Classifier struct {
	rules    []Rule
	keywords []string
	index    map[string]int
	matcher  *ahocorasick.Matcher
}

func New(rules []Rule) *Classifier {
	c := &Classifier{rules: rules, index: map[string]int{}}
	for _, r := range rules {
		for _, g := range r.AllOf {
			for _, kw := range g {
				kw = strings.ToLower(kw)
				if _, ok := c.index[kw]; ok {
					continue
				}
				c.index[kw] = len(c.keywords)
				c.keywords = append(c.keywords, kw)
			}
		}
	}
	dict := make([][]byte, len(c.keywords))
	for i, kw := range c.keywords {
		dict[i] = []byte(kw)
	}
	c.matcher = ahocorasick.NewMatcher(dict)
	return c
}

// Default is the classifier over DefaultRules.
var Default = New(DefaultRules)

// Classify returns the category of the first matching rule, or unknown. It is
// safe for concurrent use.
func (c *Classifier) Classify(text string) string {
	if strings.TrimSpace(text) == "" {
		return document.CategoryUnknown
	}
	hits := map[int]struct{}{}
	for _, i := range c.matcher.MatchThreadSafe([]byte(strings.ToLower(text))) {
		hits[i] = struct{}{}
	}
	for _, r := range c.rules {
		if c.matches(r, hits) {
			return r.Category
		}
	}
	return document.CategoryUnknown
}

func (c *Classifier) matches(r Rule, hits map[int]struct{}) bool {
	if len(r.AllOf) == 0 {
		return false
	}
	for _, g := range r.AllOf {
		found := false
		for _, kw := range g {
			if _, ok := hits[c.index[strings.ToLower(kw)]]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Classify runs the default classifier.
func Classify(text string) string { return Default.Classify(text) }
