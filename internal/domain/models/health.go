package models

// HealthStatus is the coarse state of a component.
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusDegraded HealthStatus = "degraded"
	StatusDown     HealthStatus = "down"
)

// ComponentHealth is derived from rolling counters of one component.
type ComponentHealth struct {
	Status           HealthStatus `json:"status"`
	CacheHitRate     float64      `json:"cache_hit_rate"`
	AverageLatencyMs float64      `json:"average_latency_ms"`
	ErrorRate        float64      `json:"error_rate"`
	Samples          int          `json:"samples"`
}

// HealthReport is served by the health endpoint.
type HealthReport struct {
	Status     HealthStatus               `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
}
