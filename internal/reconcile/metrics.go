package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK         = "ok"
	outcomePONotFound = "po_not_found"
	outcomeNotInPO    = "not_in_po"
	outcomeExceeded   = "exceeded"
	outcomeOrdered    = "ordered"
)

var linesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "goodsreceipt",
	Name:      "reconcile_lines_total",
	Help:      "Receipt lines reconciled, by outcome.",
}, []string{"outcome"})
