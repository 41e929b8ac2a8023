package retryqueue

import (
	"context"
	"fmt"

	"github.com/hornet-sec/hornet/pkg/models"
)

// Connector is the subset of pkg/executor's Connector contract a retry
// job handler needs to replay a failed action delivery.
type Connector interface {
	Execute(ctx context.Context, target string, parameters map[string]any) (string, error)
}

// ConnectorHandler adapts a Connector into a Handler, so the same
// webhook (or other outbound) connector used for first-attempt action
// execution is reused for retry-queue redelivery — job_type routes to
// a single connector instance per target system.
func ConnectorHandler(conn Connector) Handler {
	return func(ctx context.Context, job models.RetryJob) error {
		_, err := conn.Execute(ctx, job.Target, job.Payload)
		if err != nil {
			return fmt.Errorf("retryqueue: connector delivery for job %s: %w", job.ID, err)
		}
		return nil
	}
}
