// Package metrics exposes the provider's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TokensIssued counts successful token responses by grant type.
	TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oauth",
		Name:      "tokens_issued_total",
		Help:      "Access tokens issued, labelled by grant type.",
	}, []string{"grant_type"})

	// ProtocolErrors counts error responses by protocol error code.
	ProtocolErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oauth",
		Name:      "protocol_errors_total",
		Help:      "Protocol errors returned, labelled by error code.",
	}, []string{"code"})

	// SweptEntries counts what the background janitor evicted.
	SweptEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oauth",
		Name:      "swept_entries_total",
		Help:      "Expired entries evicted by the janitor, labelled by kind.",
	}, []string{"kind"})
)
