// Package datasync forwards normalized scan output to the console's
// persistence layer.
package datasync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/surfaceops/surface-api/internal/domain/model"
)

// applyPayload is the wire shape posted to the console.
type applyPayload struct {
	Job    model.JobContext    `json:"job"`
	Result *model.ParsedResult `json:"result"`
}

// HTTPForwarder implements DataSync by POSTing normalized results to the
// console's internal ingest endpoint. Failures are returned to the pipeline,
// which retries the whole message, so Apply must be idempotent on the
// console side (it deduplicates by job_id).
type HTTPForwarder struct {
	endpoint string
	token    string
	client   *http.Client
	logger   *slog.Logger
}

// ForwarderOptions configures an HTTPForwarder.
type ForwarderOptions struct {
	Endpoint string
	// Token is sent as a bearer credential on each request.
	Token   string
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewHTTPForwarder creates an HTTPForwarder.
func NewHTTPForwarder(opts ForwarderOptions) (*HTTPForwarder, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("datasync endpoint is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPForwarder{
		endpoint: opts.Endpoint,
		token:    opts.Token,
		client:   &http.Client{Timeout: timeout},
		logger:   opts.Logger,
	}, nil
}

// Apply posts the normalized result. Empty results are skipped without a
// network round trip.
func (f *HTTPForwarder) Apply(ctx context.Context, jobCtx model.JobContext, result *model.ParsedResult) error {
	if result.Empty() {
		return nil
	}
	body, err := json.Marshal(applyPayload{Job: jobCtx, Result: result})
	if err != nil {
		return fmt.Errorf("encode datasync payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build datasync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("post datasync payload: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("datasync endpoint returned %d", resp.StatusCode)
	}
	if f.logger != nil {
		f.logger.DebugContext(ctx, "datasync applied",
			"job_id", jobCtx.JobID,
			"assets", len(result.Assets),
			"findings", len(result.Findings),
		)
	}
	return nil
}

// Noop discards normalized results. Used when the console integration is
// disabled, keeping the pipeline's save_data path exercisable in isolation.
type Noop struct{}

// Apply does nothing.
func (Noop) Apply(context.Context, model.JobContext, *model.ParsedResult) error {
	return nil
}
