package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransactionsIndexed tracks newly persisted transactions per program
	// and ingestion source.
	TransactionsIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stakescope_transactions_indexed_total",
			Help: "Total number of transactions indexed",
		},
		[]string{"program", "source"},
	)

	// EventsDecoded tracks decoded events per program and kind.
	EventsDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stakescope_events_decoded_total",
			Help: "Total number of events decoded from transaction logs",
		},
		[]string{"program", "kind"},
	)

	// SignaturesFetched tracks listing results per program.
	SignaturesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stakescope_signatures_fetched_total",
			Help: "Total number of signatures returned by listing calls",
		},
		[]string{"program"},
	)

	// RPCErrors tracks chain RPC failures per program and operation.
	RPCErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stakescope_rpc_errors_total",
			Help: "Total number of chain RPC errors",
		},
		[]string{"program", "op"},
	)

	// LastIndexedSlot tracks the highest slot persisted per program.
	LastIndexedSlot = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stakescope_last_indexed_slot",
			Help: "Highest slot persisted per program",
		},
		[]string{"program"},
	)

	// BackfillBatchSize tracks the adaptive listing batch size.
	BackfillBatchSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stakescope_backfill_batch_size",
			Help: "Current adaptive batch size of the historical indexer",
		},
		[]string{"program"},
	)

	// SubscriptionReconnects tracks realtime subscription re-establishment.
	SubscriptionReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stakescope_subscription_reconnects_total",
			Help: "Total number of realtime subscription reconnect attempts",
		},
		[]string{"program"},
	)
)
