package metrics

// Instrument names recorded by package pool.
const (
	PoolSubmitted   = "pool_submitted_total"
	PoolRejected    = "pool_rejected_total"
	PoolDiscarded   = "pool_discarded_total"
	PoolPanics      = "pool_job_panics_total"
	PoolQueueDepth  = "pool_queue_depth"
	PoolWorkers     = "pool_workers"
	PoolJobDuration = "pool_job_duration_seconds"
)

// Instrument names recorded by package merge.
const (
	BatchStarted  = "batch_started_total"
	BatchFailed   = "batch_failed_total"
	UnitsSkipped  = "batch_units_skipped_total"
	BatchDuration = "batch_duration_seconds"
)
