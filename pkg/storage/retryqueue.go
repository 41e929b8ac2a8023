package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hornet-sec/hornet/pkg/models"
)

// EnqueueRetryJob inserts a new job in PENDING status, due immediately.
func (s *Store) EnqueueRetryJob(ctx context.Context, job models.RetryJob) error {
	payload, err := json.Marshal(contentOrEmpty(job.Payload))
	if err != nil {
		return err
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = models.DefaultMaxAttempts
	}
	return s.withTenantTx(ctx, job.TenantID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO retry_jobs (id, tenant_id, job_type, target, payload, attempts, max_attempts, status, next_attempt, error_history, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5::jsonb, 0, $6, 'PENDING', now(), '[]'::jsonb, now(), now())`,
			job.ID, job.TenantID, job.JobType, job.Target, payload, job.MaxAttempts)
		return err
	})
}

// DueRetryJobs returns up to limit PENDING/RETRYING jobs across all
// tenants whose next_attempt has passed. This is the one storage query
// that is intentionally cross-tenant (the retry queue processor is a
// background job, not a per-tenant request), so it runs outside RLS
// scoping and carries tenant_id explicitly on every returned row for
// the caller to re-scope subsequent writes.
func (s *Store) DueRetryJobs(ctx context.Context, limit int) ([]models.RetryJob, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []models.RetryJob
	err := s.withSystemTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, tenant_id, job_type, target, payload, attempts, max_attempts, status, next_attempt, error_history, created_at, updated_at
			FROM retry_jobs
			WHERE status IN ('PENDING', 'RETRYING') AND next_attempt <= now()
			ORDER BY next_attempt ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			job, err := scanRetryJob(rows)
			if err != nil {
				return err
			}
			out = append(out, job)
		}
		return rows.Err()
	})
	return out, err
}

func scanRetryJob(row pgx.Row) (models.RetryJob, error) {
	var job models.RetryJob
	var payload, history []byte
	err := row.Scan(&job.ID, &job.TenantID, &job.JobType, &job.Target, &payload, &job.Attempts, &job.MaxAttempts,
		&job.Status, &job.NextAttempt, &history, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return job, err
	}
	job.Payload = unmarshalMap(payload)
	_ = json.Unmarshal(history, &job.ErrorHistory)
	return job, nil
}

// MarkRetrySucceeded transitions a job to SUCCEEDED.
func (s *Store) MarkRetrySucceeded(ctx context.Context, tenantID, id string) error {
	return s.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `UPDATE retry_jobs SET status = 'SUCCEEDED', updated_at = now() WHERE id = $1`, id)
		return err
	})
}

// RecordRetryFailure appends an error-history entry, advances attempts
// and next_attempt per the backoff ladder, and moves the job to
// DEAD_LETTERED once attempts reaches max_attempts.
func (s *Store) RecordRetryFailure(ctx context.Context, tenantID, id string, errMsg string) error {
	return s.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		var job models.RetryJob
		if err := scanRetryJobRow(tx.QueryRow(ctx, `
			SELECT id, tenant_id, job_type, target, payload, attempts, max_attempts, status, next_attempt, error_history, created_at, updated_at
			FROM retry_jobs WHERE id = $1 FOR UPDATE`, id), &job); err != nil {
			return err
		}

		job.Attempts++
		job.ErrorHistory = append(job.ErrorHistory, models.RetryErrorEntry{
			Attempt:   job.Attempts,
			Error:     errMsg,
			Timestamp: time.Now(),
		})

		status := models.RetryRetrying
		next := time.Now().Add(models.BackoffFor(job.Attempts))
		if job.Attempts >= job.MaxAttempts {
			status = models.RetryDeadLettered
		}

		history, err := json.Marshal(job.ErrorHistory)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE retry_jobs SET attempts = $2, status = $3, next_attempt = $4, error_history = $5::jsonb, updated_at = now()
			WHERE id = $1`, id, job.Attempts, string(status), next, history)
		return err
	})
}

func scanRetryJobRow(row pgx.Row, job *models.RetryJob) error {
	var payload, history []byte
	err := row.Scan(&job.ID, &job.TenantID, &job.JobType, &job.Target, &payload, &job.Attempts, &job.MaxAttempts,
		&job.Status, &job.NextAttempt, &history, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return err
	}
	job.Payload = unmarshalMap(payload)
	_ = json.Unmarshal(history, &job.ErrorHistory)
	return nil
}

// ListDLQ returns dead-lettered jobs for a tenant (or all tenants if
// tenantID is empty, for operator tooling).
func (s *Store) ListDLQ(ctx context.Context, tenantID string) ([]models.RetryJob, error) {
	if tenantID == "" {
		var out []models.RetryJob
		err := s.withSystemTx(ctx, func(tx pgx.Tx) error {
			rows, err := tx.Query(ctx, `
				SELECT id, tenant_id, job_type, target, payload, attempts, max_attempts, status, next_attempt, error_history, created_at, updated_at
				FROM retry_jobs WHERE status = 'DEAD_LETTERED' ORDER BY updated_at DESC`)
			if err != nil {
				return err
			}
			defer rows.Close()
			for rows.Next() {
				job, err := scanRetryJob(rows)
				if err != nil {
					return err
				}
				out = append(out, job)
			}
			return rows.Err()
		})
		return out, err
	}

	var out []models.RetryJob
	err := s.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, tenant_id, job_type, target, payload, attempts, max_attempts, status, next_attempt, error_history, created_at, updated_at
			FROM retry_jobs WHERE status = 'DEAD_LETTERED' ORDER BY updated_at DESC`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			job, err := scanRetryJob(rows)
			if err != nil {
				return err
			}
			out = append(out, job)
		}
		return rows.Err()
	})
	return out, err
}

// ReplayDLQJob resets a DLQ job to PENDING, attempts=0, empty error
// history, due immediately.
func (s *Store) ReplayDLQJob(ctx context.Context, tenantID, id string) (bool, error) {
	var ok bool
	err := s.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE retry_jobs SET attempts = 0, status = 'PENDING', next_attempt = now(), error_history = '[]'::jsonb, updated_at = now()
			WHERE id = $1 AND status = 'DEAD_LETTERED'`, id)
		if err != nil {
			return err
		}
		ok = tag.RowsAffected() > 0
		return nil
	})
	return ok, err
}

// PurgeAgedDLQ deletes DEAD_LETTERED rows older than retention,
// returning the count removed. Used by the periodic DLQ-aging job.
func (s *Store) PurgeAgedDLQ(ctx context.Context, retention time.Duration) (int64, error) {
	var n int64
	err := s.withSystemTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			DELETE FROM retry_jobs WHERE status = 'DEAD_LETTERED' AND updated_at < now() - ($1 || ' seconds')::interval`,
			int64(retention.Seconds()))
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		return nil
	})
	return n, err
}
