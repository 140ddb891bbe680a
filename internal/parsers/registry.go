// Package parsers turns extracted text into normalized product lines.
//
// Dispatch goes through three stages: the dialect parsers registered for the
// classified category, the format-agnostic heuristics, and the generic
// fallback. The first stage yielding any line wins.
package parsers

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/goods-receipt/internal/document"
)

// ParseFunc converts text into product lines. It returns nil when its grammar
// does not apply.
type ParseFunc func(text string) []document.ProductLine

// Entry pairs a parser with the predicate deciding whether it is tried.
type Entry struct {
	Name  string
	Match func(category, lowerText string) bool
	Parse ParseFunc
}

// Input is everything the dispatcher may use.
type Input struct {
	Text     string
	Category string
	Rows     [][]string // native PDF table rows, nil for scans
}

// Result is the dispatcher output.
type Result struct {
	Products []document.ProductLine
	Parser   string
	Stage    string // dialect | heuristic | generic | none
	Warnings []string
}

// Registry holds the ordered parser lists.
type Registry struct {
	dialects  []Entry
	heuristic []Entry
	generic   *Generic
	logger    *slog.Logger
}

func NewRegistry(dialects, heuristic []Entry, generic *Generic, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if generic == nil {
		generic = NewGeneric()
	}
	return &Registry{dialects: dialects, heuristic: heuristic, generic: generic, logger: logger}
}

// Default wires the built-in dialects and heuristics.
func Default(logger *slog.Logger) *Registry {
	return NewRegistry(DefaultDialects(), DefaultHeuristics(), NewGeneric(), logger)
}

// Register appends a dialect parser; it is tried after the existing ones.
func (r *Registry) Register(e Entry) { r.dialects = append(r.dialects, e) }

// DefaultDialects lists the dialect parsers, each tried only for its own category.
func DefaultDialects() []Entry {
	return []Entry{
		{Name: "multi_order_invoice", Match: forCategory(document.CategoryMultiOrder), Parse: ParseMultiOrderInvoice},
		{Name: "pt_order_confirmation", Match: forCategory(document.CategoryOrderConfirm), Parse: ParseOrderConfirmationPT},
		{Name: "pt_delivery_note", Match: forCategory(document.CategoryDeliveryPT), Parse: ParseDeliveryNotePT},
		{Name: "es_albaran", Match: forCategory(document.CategoryDeliveryES), Parse: ParseAlbaranES},
		{Name: "fr_bon_livraison", Match: forCategory(document.CategoryDeliveryFR), Parse: ParseBonLivraisonFR},
	}
}

// DefaultHeuristics lists the format-agnostic parsers, always tried.
func DefaultHeuristics() []Entry {
	always := func(string, string) bool { return true }
	return []Entry{
		{Name: "simple_priced", Match: always, Parse: ParseSimplePriced},
		{Name: "ascii_block", Match: always, Parse: ParseASCIIBlock},
	}
}

func forCategory(category string) func(string, string) bool {
	return func(c, _ string) bool { return c == category }
}

// Parse dispatches in, containing any parser panic at that parser.
func (r *Registry) Parse(in Input) Result {
	lower := strings.ToLower(in.Text)
	var warnings []string

	run := func(stage string, entries []Entry) (Result, bool) {
		for _, e := range entries {
			if !e.Match(in.Category, lower) {
				continue
			}
			lines, err := safeParse(e.Parse, in.Text)
			if err != nil {
				r.logger.Warn("parsers.parser.panic", "parser", e.Name, "error", err)
				warnings = append(warnings, e.Name+": "+err.Error())
				continue
			}
			lines = document.Dedupe(lines)
			if len(lines) > 0 {
				r.logger.Debug("parsers.parser.ok", "parser", e.Name, "stage", stage, "lines", len(lines))
				return Result{Products: lines, Parser: e.Name, Stage: stage}, true
			}
		}
		return Result{}, false
	}

	if res, ok := run("dialect", r.dialects); ok {
		res.Warnings = warnings
		return res
	}
	if res, ok := run("heuristic", r.heuristic); ok {
		res.Warnings = warnings
		return res
	}

	lines, name := r.generic.Products(in.Text, in.Rows)
	lines = document.Dedupe(lines)
	if len(lines) > 0 {
		return Result{Products: lines, Parser: name, Stage: "generic", Warnings: warnings}
	}
	return Result{Products: []document.ProductLine{}, Parser: "none", Stage: "none", Warnings: warnings}
}

func safeParse(fn ParseFunc, text string) (lines []document.ProductLine, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn(text), nil
}
