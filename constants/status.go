package constants

// JobStatus is the canonical status for rows in the result cache.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusComplete  JobStatus = "COMPLETE"
	JobStatusFailed    JobStatus = "FAILED"    // terminal failure
	JobStatusCancelled JobStatus = "CANCELLED" // cooperative abort, not a failure
)
