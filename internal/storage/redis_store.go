package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arjunmehta/medilens/internal/config"
	"github.com/arjunmehta/medilens/internal/domain"
	"github.com/arjunmehta/medilens/internal/logger"
)

const (
	recentScansKey = "scans:recent"
	activeMedsKey  = "medications:active"

	// The store owns the newest-first cap on scan history.
	maxRecentScans = 20
)

// RedisStore implements domain.ScanStore on Redis.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// SaveScan prepends the scan and trims the list to the cap.
func (s *RedisStore) SaveScan(ctx context.Context, scan *domain.ScanResult) error {
	data, err := json.Marshal(scan)
	if err != nil {
		return fmt.Errorf("failed to encode scan: %w", err)
	}
	if err := s.client.LPush(ctx, recentScansKey, data).Err(); err != nil {
		return fmt.Errorf("failed to save scan: %w", err)
	}
	if err := s.client.LTrim(ctx, recentScansKey, 0, maxRecentScans-1).Err(); err != nil {
		return fmt.Errorf("failed to trim scan history: %w", err)
	}
	return nil
}

// RecentScans returns stored scans newest-first. Entries that fail to
// decode are skipped rather than failing the whole read.
func (s *RedisStore) RecentScans(ctx context.Context) ([]domain.ScanResult, error) {
	raw, err := s.client.LRange(ctx, recentScansKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read scan history: %w", err)
	}
	scans := make([]domain.ScanResult, 0, len(raw))
	for _, item := range raw {
		var scan domain.ScanResult
		if err := json.Unmarshal([]byte(item), &scan); err != nil {
			logger.Warn("Skipping undecodable scan entry", "error", err)
			continue
		}
		scans = append(scans, scan)
	}
	return scans, nil
}

func (s *RedisStore) SaveActiveMedication(ctx context.Context, record domain.MedicineRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode medication: %w", err)
	}
	if err := s.client.RPush(ctx, activeMedsKey, data).Err(); err != nil {
		return fmt.Errorf("failed to save medication: %w", err)
	}
	return nil
}

func (s *RedisStore) ActiveMedications(ctx context.Context) ([]domain.MedicineRecord, error) {
	raw, err := s.client.LRange(ctx, activeMedsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read medications: %w", err)
	}
	records := make([]domain.MedicineRecord, 0, len(raw))
	for _, item := range raw {
		var rec domain.MedicineRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			logger.Warn("Skipping undecodable medication entry", "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
