package models

import (
	"time"

	"github.com/noah-isme/filemgr/pkg/jobs"
)

// SystemMetrics is a lightweight snapshot of runtime counters.
type SystemMetrics struct {
	CacheHitRatio             float64               `json:"cache_hit_ratio"`
	CacheHits                 uint64                `json:"cache_hits"`
	CacheMisses               uint64                `json:"cache_misses"`
	RequestsTotal             uint64                `json:"requests_total"`
	AverageRequestDurationMs  float64               `json:"average_request_duration_ms"`
	CatalogOperations         uint64                `json:"catalog_operations"`
	CatalogFailures           uint64                `json:"catalog_failures"`
	AverageCatalogOperationMs float64               `json:"average_catalog_operation_ms"`
	Goroutines                int                   `json:"goroutines"`
	Queues                    map[string]jobs.Stats `json:"queues,omitempty"`
	GeneratedAt               time.Time             `json:"generated_at"`
}
