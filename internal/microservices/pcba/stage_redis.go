package pcba

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// StageTTL bounds how long a serial's board stays cached after its last event.
const StageTTL = 90 * 24 * time.Hour

// StageRecord is the latest known status of one stage of one serial.
type StageRecord struct {
	Serial    string         `json:"serial"`
	Stage     string         `json:"stage"`
	Status    string         `json:"status"`
	Detail    map[string]any `json:"detail,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// StageRedisRepo caches the stage board per serial as one Redis hash:
// stage:serial:<serial> -> {<stage>: "<status>|<updated_at>"}
type StageRedisRepo struct {
	client *redis.Client
}

// constructor for StageRedisRepo, verifies the connection
func NewStageRedisRepo(redisURL, password string) (*StageRedisRepo, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &StageRedisRepo{client: rdb}, nil
}

func stageKey(serial string) string {
	return "stage:serial:" + serial
}

func encodeStageField(rec *StageRecord) string {
	return rec.Status + "|" + rec.UpdatedAt.UTC().Format(time.RFC3339Nano)
}

func decodeStageField(serial, stage, value string) *StageRecord {
	status, ts, _ := strings.Cut(value, "|")
	rec := &StageRecord{Serial: serial, Stage: stage, Status: status}
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, ts)
	return rec
}

// SaveStage upserts one stage of the serial's hash and refreshes the TTL
func (r *StageRedisRepo) SaveStage(ctx context.Context, rec *StageRecord) error {
	if r == nil || r.client == nil {
		// no-op when running without Redis
		return nil
	}
	key := stageKey(rec.Serial)

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, rec.Stage, encodeStageField(rec))
	pipe.Expire(ctx, key, StageTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save stage: %w", err)
	}
	return nil
}

// GetStages returns every cached stage of serial ordered by stage name
func (r *StageRedisRepo) GetStages(ctx context.Context, serial string) ([]*StageRecord, error) {
	if r == nil || r.client == nil {
		return []*StageRecord{}, nil
	}

	fields, err := r.client.HGetAll(ctx, stageKey(serial)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get stages: %w", err)
	}

	records := make([]*StageRecord, 0, len(fields))
	for stage, value := range fields {
		records = append(records, decodeStageField(serial, stage, value))
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Stage < records[j].Stage })
	return records, nil
}

// DeleteSerial drops the cached board of serial
func (r *StageRedisRepo) DeleteSerial(ctx context.Context, serial string) error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Del(ctx, stageKey(serial)).Err()
}

func (r *StageRedisRepo) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
