package models

import "time"

// RetryJobStatus tracks a queued outbound delivery through the backoff
// ladder to either success or the dead-letter queue.
type RetryJobStatus string

const (
	RetryPending       RetryJobStatus = "PENDING"
	RetryRetrying      RetryJobStatus = "RETRYING"
	RetrySucceeded     RetryJobStatus = "SUCCEEDED"
	RetryFailed        RetryJobStatus = "FAILED"
	RetryDeadLettered  RetryJobStatus = "DEAD_LETTERED"
)

// BackoffLadderSeconds is the fixed retry schedule from spec §4.8,
// indexed by attempt count (attempt 1 retries after ladder[0]=0s, i.e.
// immediately; attempt 2 waits 30s, and so on).
var BackoffLadderSeconds = [5]int{0, 30, 120, 600, 3600}

// DefaultMaxAttempts is applied to a RetryJob when none is specified.
const DefaultMaxAttempts = 5

// RetryErrorEntry is one bounded entry in a RetryJob's error history.
type RetryErrorEntry struct {
	Attempt   int       `json:"attempt"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"ts"`
}

// RetryJob is a durable outbound-delivery task (typically a webhook
// call) that retries on the backoff ladder before landing in the DLQ.
type RetryJob struct {
	ID           string            `json:"id" db:"id"`
	TenantID     string            `json:"tenant_id" db:"tenant_id"`
	JobType      string            `json:"job_type" db:"job_type"`
	Target       string            `json:"target" db:"target"`
	Payload      map[string]any    `json:"payload" db:"payload"`
	Attempts     int               `json:"attempts" db:"attempts"`
	MaxAttempts  int               `json:"max_attempts" db:"max_attempts"`
	Status       RetryJobStatus    `json:"status" db:"status"`
	NextAttempt  time.Time         `json:"next_attempt" db:"next_attempt"`
	ErrorHistory []RetryErrorEntry `json:"error_history" db:"error_history"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at" db:"updated_at"`
}

// BackoffFor returns the delay to apply after the given attempt count,
// clamping to the ladder's final rung once attempts exceed its length.
func BackoffFor(attempt int) time.Duration {
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(BackoffLadderSeconds) {
		idx = len(BackoffLadderSeconds) - 1
	}
	return time.Duration(BackoffLadderSeconds[idx]) * time.Second
}
