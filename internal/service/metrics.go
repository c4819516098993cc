package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// syncMutations counts mutations confirmed by the backing store.
	syncMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wishlist_sync_mutations_total",
			Help: "Total number of wishlist mutations confirmed by the backing store",
		},
		[]string{"operation"},
	)

	// syncRollbacks counts optimistic mutations rolled back after a store
	// rejection.
	syncRollbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wishlist_sync_rollbacks_total",
			Help: "Total number of optimistic wishlist mutations rolled back",
		},
		[]string{"operation"},
	)

	// syncOptimisticKept counts mutations kept optimistically after a
	// snapshot store failure in legacy mode.
	syncOptimisticKept = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wishlist_sync_optimistic_kept_total",
			Help: "Total number of mutations kept optimistically after a snapshot store failure",
		},
		[]string{"operation"},
	)

	// syncRefreshes counts full collection refreshes.
	syncRefreshes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wishlist_sync_refreshes_total",
			Help: "Total number of full wishlist collection refreshes",
		},
	)
)
