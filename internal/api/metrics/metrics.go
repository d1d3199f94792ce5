// Package metrics defines the custom Prometheus metrics of the accounts API.
// All metrics are registered with the default registry at package init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "accounts"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// AuthAttemptsTotal counts auth operations by outcome.
// Labels:
//   - operation: register, login, send_otp, verify_otp, password_forgot, password_reset
//   - result: "ok" or the error kind (e.g. "invalid_credentials")
var AuthAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Total number of authentication operations, by operation and result.",
	},
	[]string{"operation", "result"},
)

// SessionsIssuedTotal counts session cookies handed out.
// Label:
//   - via: "login" or "otp"
var SessionsIssuedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_issued_total",
		Help:      "Total number of sessions issued.",
	},
	[]string{"via"},
)

// ── Billing metrics ───────────────────────────────────────────────────────────

// CheckoutsTotal counts checkout operations.
// Labels:
//   - stage: "started" or "confirmed"
//   - result: "ok" or the error kind
var CheckoutsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkouts_total",
		Help:      "Total number of checkout operations, by stage and result.",
	},
	[]string{"stage", "result"},
)

// SubscriptionSyncTotal counts reconciliation outcomes.
// Label:
//   - outcome: unchanged, extended, ended, failed
var SubscriptionSyncTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "subscription_sync_total",
		Help:      "Total number of subscription reconciliations, by outcome.",
	},
	[]string{"outcome"},
)

// SubscriptionSyncDuration measures one scheduler pass, from listing to the
// last enqueue.
var SubscriptionSyncDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "subscription_sync_pass_duration_seconds",
		Help:      "Duration of a subscription sync scheduling pass.",
		Buckets:   prometheus.DefBuckets,
	},
)

// Result turns an error into a low-cardinality label value.
func Result(kind string, err error) string {
	if err == nil {
		return "ok"
	}
	if kind == "" {
		return "internal"
	}
	return kind
}
