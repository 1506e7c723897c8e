package models

import "time"

// SystemMetrics is the JSON snapshot served at /metrics/summary.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	DBQueryCount             uint64    `json:"dbQueryCount"`
	AverageDBQueryDurationMs float64   `json:"averageDbQueryDurationMs"`
	MarksSaved               uint64    `json:"marksSaved"`
	MarksFailed              uint64    `json:"marksFailed"`
	RevisionRetries          uint64    `json:"revisionRetries"`
	MailJobsSent             uint64    `json:"mailJobsSent"`
	MailJobsFailed           uint64    `json:"mailJobsFailed"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
