package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"linetest/internal/microservices/http-api/models"
)

const (
	DefaultInterval    = time.Hour
	DefaultHTTPTimeout = 30 * time.Second

	// body bytes kept in a failed upload log
	maxErrorBody = 4096
)

var ErrNotConfigured = errors.New("cloud api url is not configured")

// RecordStore is the part of the test-record repository the uploader needs.
type RecordStore interface {
	ListUnuploaded(ctx context.Context) ([]models.TestRecord, error)
	MarkUploaded(ctx context.Context, ids []int64) error
}

type LogStore interface {
	Create(ctx context.Context, log *models.CloudUploadLog) error
}

type Config struct {
	URL      string
	APIKey   string
	Interval time.Duration
	Timeout  time.Duration
}

// statusError is a non-200 answer from the cloud API.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.code, e.body)
}

// Uploader pushes records that are not yet in the cloud on a fixed interval
// and writes one upload log per run that had something to send.
type Uploader struct {
	cfg        Config
	records    RecordStore
	logs       LogStore
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger

	runMu sync.Mutex // one upload at a time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewUploader(cfg Config, records RecordStore, logs LogStore, logger *slog.Logger) *Uploader {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultHTTPTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	u := &Uploader{
		cfg:        cfg,
		records:    records,
		logs:       logs,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
	u.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cloud-upload",
		MaxRequests: 1,
		Timeout:     cfg.Interval * 3,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("cloud_upload_breaker_state",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return u
}

// Start runs the upload loop until Stop. The first run happens one interval
// after Start. Calling Start on a running uploader does nothing.
func (u *Uploader) Start() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	u.cancel = cancel
	u.done = make(chan struct{})
	go u.loop(ctx, u.done)

	u.logger.Info("cloud_upload_scheduler_started", "interval", u.cfg.Interval.String())
}

// Stop cancels the loop and any upload in progress, then waits for it.
func (u *Uploader) Stop() {
	u.mu.Lock()
	done, cancel := u.done, u.cancel
	u.done, u.cancel = nil, nil
	u.mu.Unlock()

	if done == nil {
		return
	}
	cancel()
	<-done
	u.logger.Info("cloud_upload_scheduler_stopped")
}

func (u *Uploader) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(u.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := u.RunOnce(ctx); err != nil && ctx.Err() == nil {
				u.logger.Error("cloud_upload_failed", "error", err)
			}
		}
	}
}

// RunOnce uploads every pending record in one request. It returns nil when
// there was nothing to upload.
func (u *Uploader) RunOnce(ctx context.Context) error {
	u.runMu.Lock()
	defer u.runMu.Unlock()

	if u.cfg.URL == "" {
		return ErrNotConfigured
	}

	records, err := u.records.ListUnuploaded(ctx)
	if err != nil {
		u.writeLog(ctx, 0, err)
		return fmt.Errorf("load pending records: %w", err)
	}
	if len(records) == 0 {
		u.logger.Info("cloud_upload_skipped", "reason", "no pending records")
		return nil
	}

	_, err = u.breaker.Execute(func() (interface{}, error) {
		return nil, u.post(ctx, records)
	})
	if err != nil {
		count := 0
		var se *statusError
		if errors.As(err, &se) {
			count = len(records)
		}
		u.writeLog(ctx, count, err)
		return err
	}

	ids := make([]int64, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	if err := u.records.MarkUploaded(ctx, ids); err != nil {
		u.writeLog(ctx, 0, err)
		return err
	}

	u.writeLog(ctx, len(records), nil)
	u.logger.Info("cloud_upload_succeeded", "records", len(records))
	return nil
}

func (u *Uploader) post(ctx context.Context, records []models.TestRecord) error {
	body, err := json.Marshal(newPayload(records))
	if err != nil {
		return fmt.Errorf("encode upload payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if u.cfg.APIKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", u.cfg.APIKey))
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &statusError{code: resp.StatusCode, body: string(b)}
	}
	return nil
}

// writeLog records the outcome of a run; a nil err means success.
func (u *Uploader) writeLog(ctx context.Context, count int, err error) {
	entry := &models.CloudUploadLog{
		RecordsCount: count,
		Status:       models.UploadSuccess,
	}
	if err != nil {
		msg := err.Error()
		entry.Status = models.UploadFailed
		entry.ErrorMessage = &msg
	}

	// the log must land even when the run was cancelled
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if lerr := u.logs.Create(logCtx, entry); lerr != nil {
		u.logger.Error("cloud_upload_log_failed", "status", entry.Status, "error", lerr)
	}
}
