// Package callback delivers verdicts to the backend.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"judger/internal/judge/sandbox/observer"
	"judger/internal/judge/sandbox/result"
	appErr "judger/pkg/errors"
	"judger/pkg/utils/contextkey"
	"judger/pkg/utils/logger"
)

const (
	// AckBody is the only response body that acknowledges a delivery.
	AckBody = "success"

	defaultMaxAttempts    = 5
	defaultRetryDelay     = 10 * time.Second
	defaultRequestTimeout = 10 * time.Second
	maxAckBytes           = 1024
)

// Config controls result delivery.
type Config struct {
	URL            string        `yaml:"url"`
	MaxAttempts    int           `yaml:"maxAttempts"`
	RetryDelay     time.Duration `yaml:"retryDelay"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

// Dispatcher posts verdicts with a bounded constant-delay retry.
type Dispatcher struct {
	cfg     Config
	client  *http.Client
	metrics observer.MetricsRecorder
}

// NewDispatcher creates a dispatcher; zero config fields take defaults.
func NewDispatcher(cfg Config, metrics observer.MetricsRecorder) *Dispatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if metrics == nil {
		metrics = observer.NoopMetricsRecorder{}
	}
	return &Dispatcher{
		cfg:     cfg,
		client:  &http.Client{},
		metrics: metrics,
	}
}

// Deliver posts the verdict until the backend acknowledges it or the attempts
// run out. Failures are logged and never returned.
func (d *Dispatcher) Deliver(ctx context.Context, verdict result.Verdict) {
	ctx = context.WithValue(ctx, contextkey.SubmitID, verdict.SubmitID)
	body, err := json.Marshal(verdict)
	if err != nil {
		logger.Error(ctx, "encode verdict failed", zap.Error(err))
		return
	}

	attempts := 0
	operation := func() error {
		attempts++
		return d.post(ctx, body)
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(d.cfg.RetryDelay), uint64(d.cfg.MaxAttempts-1)),
		ctx,
	)
	err = backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		logger.Warn(ctx, "callback attempt failed",
			zap.Int("attempt", attempts),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
	})
	d.metrics.ObserveCallback(ctx, err == nil, attempts)
	if err != nil {
		logger.Error(ctx, "callback delivery abandoned",
			zap.String("url", d.cfg.URL),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return
	}
	logger.Info(ctx, "callback delivered", zap.Int("attempts", attempts))
}

func (d *Dispatcher) post(ctx context.Context, body []byte) error {
	reqCtx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, d.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return appErr.Wrapf(err, appErr.CallbackFailed, "build callback request failed")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return appErr.Wrapf(err, appErr.CallbackFailed, "callback request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	ack, err := io.ReadAll(io.LimitReader(resp.Body, maxAckBytes))
	if err != nil {
		return appErr.Wrapf(err, appErr.CallbackFailed, "read callback response failed")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return appErr.Newf(appErr.CallbackFailed, "callback returned status %d", resp.StatusCode)
	}
	if string(ack) != AckBody {
		return appErr.New(appErr.CallbackFailed).WithMessage(fmt.Sprintf("unexpected callback response %q", ack))
	}
	return nil
}
