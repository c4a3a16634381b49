package genai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/minime/inspirations/internal/metrics"
)

// CreateBatch submits an asynchronous batch-generation job over an uploaded
// input file and returns the job name.
func (c *Client) CreateBatch(ctx context.Context, model, displayName, inputFileName string) (string, error) {
	url := fmt.Sprintf("%s/models/%s:batchGenerateContent", c.baseURL, model)
	req := batchCreateRequest{
		Batch: batchSpec{
			DisplayName: displayName,
			InputConfig: batchInputConfig{FileName: inputFileName},
		},
	}
	var op Operation
	if _, err := c.doJSON(ctx, "POST", url, req, &op, nil); err != nil {
		return "", err
	}
	name := op.ResolveName()
	if name == "" {
		return "", fmt.Errorf("create batch: no job name in response")
	}
	return name, nil
}

// GetBatch fetches the current state of a batch job by name
// ("batches/abc123" or a full operation name).
func (c *Client) GetBatch(ctx context.Context, name string) (*Operation, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, strings.TrimPrefix(name, "/"))
	start := time.Now()
	var op Operation
	if _, err := c.doJSON(ctx, "GET", url, nil, &op, nil); err != nil {
		return nil, err
	}
	c.record(metrics.OpBatchPoll, start)
	if op.Name == "" {
		op.Name = name
	}
	return &op, nil
}

// WaitForBatch polls a batch job until it reaches a terminal state. Poll
// errors are logged and retried; the job usually outlives a flaky
// connection. A maxWait of zero waits indefinitely. When maxWait elapses the
// last observed operation is returned without error so callers can record
// its in-flight state.
func (c *Client) WaitForBatch(ctx context.Context, logger *slog.Logger, name string, pollInterval, maxWait time.Duration) (*Operation, error) {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	var deadline time.Time
	if maxWait > 0 {
		deadline = time.Now().Add(maxWait)
	}

	var last *Operation
	for {
		op, err := c.GetBatch(ctx, name)
		if err != nil {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			logger.Warn("batch poll failed, will retry", "job", name, "error", err)
		} else {
			last = op
			if op.IsTerminal() {
				return op, nil
			}
			logger.Info("batch still running", "job", name, "state", op.State())
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			logger.Warn("batch wait deadline reached", "job", name)
			return last, nil
		}
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
