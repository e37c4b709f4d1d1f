// Package metrics exposes the Prometheus collectors shared across the
// service layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesPosted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradepost",
		Name:      "messages_posted_total",
		Help:      "Messages appended to conversation ledgers.",
	}, []string{"kind"})

	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradepost",
		Name:      "transitions_total",
		Help:      "State machine transitions applied, by engine and action.",
	}, []string{"engine", "action"})

	PairLockWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tradepost",
		Name:      "pair_lock_wait_seconds",
		Help:      "Time spent waiting to acquire a conversation pair lock.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	ConversationsDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradepost",
		Name:      "conversations_deleted_total",
		Help:      "Conversation deletions, split by soft and hard removal.",
	}, []string{"mode"})
)
