package metrics

// PoolStats is the subset of *pgxpool.Stat the pool gauges read.
type PoolStats interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
	MaxConns() int32
	EmptyAcquireCount() int64
}

// RecordDBPoolMetrics copies a pool statistics snapshot into the pool gauges.
func RecordDBPoolMetrics(stats PoolStats) {
	for state, n := range map[string]int32{
		"in_use": stats.AcquiredConns(),
		"idle":   stats.IdleConns(),
		"total":  stats.TotalConns(),
		"max":    stats.MaxConns(),
	} {
		DBPoolConnections.WithLabelValues(state).Set(float64(n))
	}
	// Cumulative since pool start, so a gauge rather than a counter we'd
	// have to diff.
	DBPoolEmptyAcquires.Set(float64(stats.EmptyAcquireCount()))
}
