package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/medicare-voice/intake/pkg/logging"
)

// TranscriptEntry is a single archived turn of a call.
type TranscriptEntry struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	transcriptKeyPrefix = "intake:transcript:"
	transcriptTTL       = 24 * time.Hour
)

// RedisCallLog archives call transcripts in Redis with a 24h retention.
// Archiving is best effort; a nil store or a Redis failure never interrupts
// a call.
type RedisCallLog struct {
	rdb    *redis.Client
	logger *logging.Logger
}

// NewRedisCallLog creates a transcript archive backed by Redis. A nil client
// yields a disabled archive.
func NewRedisCallLog(rdb *redis.Client, logger *logging.Logger) *RedisCallLog {
	if rdb == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisCallLog{rdb: rdb, logger: logger}
}

func transcriptKey(callID string) string {
	return transcriptKeyPrefix + callID
}

// LogTurn appends one turn to the call's transcript list and refreshes its
// TTL.
func (s *RedisCallLog) LogTurn(ctx context.Context, callID, role, content string) {
	if s == nil || callID == "" {
		return
	}
	entry := TranscriptEntry{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      content,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		s.logger.Warn("transcript marshal failed", "error", err, "call_id", callID)
		return
	}
	pipe := s.rdb.Pipeline()
	pipe.RPush(ctx, transcriptKey(callID), data)
	pipe.Expire(ctx, transcriptKey(callID), transcriptTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("transcript append failed", "error", err, "call_id", callID)
	}
}

// Transcript retrieves every archived turn for a call, oldest first.
func (s *RedisCallLog) Transcript(ctx context.Context, callID string) ([]TranscriptEntry, error) {
	if s == nil {
		return nil, nil
	}
	data, err := s.rdb.LRange(ctx, transcriptKey(callID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("transcript: get: %w", err)
	}
	entries := make([]TranscriptEntry, 0, len(data))
	for _, d := range data {
		var entry TranscriptEntry
		if err := json.Unmarshal([]byte(d), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
