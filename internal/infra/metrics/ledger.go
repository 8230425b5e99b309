package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(ledgerOpsTotal, tokensMovedTotal) }

var ledgerOpsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "token_ledger_ops_total",
		Help: "Ledger operations, labeled by op and result.",
	},
	[]string{"op", "result"}, // op: 'charge', 'refund'; result: 'ok', 'rejected', 'error'
)

var tokensMovedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tokens_moved_total",
		Help: "Tokens debited/credited through the ledger.",
	},
	[]string{"op"},
)

func IncLedgerOp(op, result string) {
	ledgerOpsTotal.WithLabelValues(norm(op), norm(result)).Inc()
}

func AddTokensMoved(op string, amount int64) {
	tokensMovedTotal.WithLabelValues(norm(op)).Add(float64(amount))
}
