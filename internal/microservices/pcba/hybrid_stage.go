package pcba

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// StageCache is the fast store holding the current board per serial
type StageCache interface {
	SaveStage(ctx context.Context, rec *StageRecord) error
	GetStages(ctx context.Context, serial string) ([]*StageRecord, error)
}

// StageHistory is the durable append-only log of stage events
type StageHistory interface {
	BatchInsert(ctx context.Context, batch []*StageRecord) error
	Latest(ctx context.Context, serial string) ([]*StageRecord, error)
}

var ErrStoreClosed = errors.New("stage store is closed")

const (
	DefaultFlushInterval = 5 * time.Second
	DefaultBatchSize     = 500
	writeQueueSize       = 10000
)

// HybridStageStore combines Redis and PostgreSQL
// Redis: current board, written synchronously
// PostgreSQL: history, written in batches by one background writer
type HybridStageStore struct {
	cache     StageCache
	history   StageHistory
	writeChan chan *StageRecord
	stopChan  chan struct{}
	done      chan struct{}
	started   atomic.Bool

	// mu orders enqueues against Close: SaveStage holds it shared, Close
	// takes it exclusively before flipping closed
	mu     sync.RWMutex
	closed bool

	FlushInterval time.Duration
	BatchSize     int
	logger        *slog.Logger
}

func NewHybridStageStore(cache StageCache, history StageHistory, logger *slog.Logger) *HybridStageStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridStageStore{
		cache:         cache,
		history:       history,
		writeChan:     make(chan *StageRecord, writeQueueSize),
		stopChan:      make(chan struct{}),
		done:          make(chan struct{}),
		FlushInterval: DefaultFlushInterval,
		BatchSize:     DefaultBatchSize,
		logger:        logger,
	}
}

// SaveStage writes to the cache immediately and queues the record for history.
// When the queue is full it falls back to a short synchronous insert.
func (s *HybridStageStore) SaveStage(ctx context.Context, rec *StageRecord) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	if err := s.cache.SaveStage(ctx, rec); err != nil {
		s.logger.Error("stage_cache_save_failed",
			"serial", rec.Serial,
			"stage", rec.Stage,
			"error", err,
		)
		return fmt.Errorf("cache write failed: %w", err)
	}

	if depth := len(s.writeChan); depth > cap(s.writeChan)/2 {
		s.logger.Warn("write_queue_high_watermark", "queue_depth", depth)
	}

	select {
	case s.writeChan <- rec:
	default:
		s.logger.Warn("write_queue_full", "serial", rec.Serial)
		wctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		if err := s.history.BatchInsert(wctx, []*StageRecord{rec}); err != nil {
			s.logger.Error("history_direct_write_failed", "error", err)
			return fmt.Errorf("history direct write failed: %w", err)
		}
	}
	return nil
}

// GetStages reads the cache and falls back to history on a miss
func (s *HybridStageStore) GetStages(ctx context.Context, serial string) ([]*StageRecord, error) {
	records, err := s.cache.GetStages(ctx, serial)
	if err == nil && len(records) > 0 {
		return records, nil
	}
	if err != nil {
		s.logger.Warn("stage_cache_read_failed", "serial", serial, "error", err)
	}

	s.logger.Debug("stage_cache_miss_fallback_to_history", "serial", serial)
	records, err = s.history.Latest(ctx, serial)
	if err != nil {
		return nil, err
	}

	// warm the cache with what history returned
	for _, rec := range records {
		if err := s.cache.SaveStage(ctx, rec); err != nil {
			s.logger.Warn("stage_cache_warm_failed", "serial", serial, "error", err)
			break
		}
	}
	return records, nil
}

// StartBatchWriter drains the queue into history until ctx is done or Close
// is called, flushing whatever is left on the way out. Run it in a goroutine.
func (s *HybridStageStore) StartBatchWriter(ctx context.Context) {
	s.mu.Lock()
	if s.closed || !s.started.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	defer close(s.done)

	ticker := time.NewTicker(s.FlushInterval)
	defer ticker.Stop()

	batch := make([]*StageRecord, 0, s.BatchSize)
	s.logger.Info("batch_writer_started",
		"interval", s.FlushInterval.String(),
		"batch_size", s.BatchSize,
	)

	for {
		select {
		case <-ctx.Done():
			s.drain(batch)
			return
		case <-s.stopChan:
			s.drain(batch)
			return
		case rec := <-s.writeChan:
			batch = append(batch, rec)
			if len(batch) >= s.BatchSize {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

// drain flushes the pending batch plus anything still queued
func (s *HybridStageStore) drain(batch []*StageRecord) {
	for {
		select {
		case rec := <-s.writeChan:
			batch = append(batch, rec)
		default:
			s.logger.Info("batch_writer_shutting_down", "remaining", len(batch))
			if len(batch) > 0 {
				s.flushBatch(batch)
			}
			return
		}
	}
}

func (s *HybridStageStore) flushBatch(batch []*StageRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	if err := s.history.BatchInsert(ctx, batch); err != nil {
		s.logger.Error("batch_insert_failed",
			"count", len(batch),
			"error", err,
		)
		return
	}
	s.logger.Info("batch_insert_success",
		"count", len(batch),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Close stops the batch writer and flushes everything queued, including
// records saved before the writer was ever started. Safe to call twice.
func (s *HybridStageStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started.Load()
	s.mu.Unlock()

	close(s.stopChan)
	if started {
		<-s.done
	}
	// no SaveStage can enqueue now, so this empties the queue for good
	s.drain(nil)
	return nil
}
