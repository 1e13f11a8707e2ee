package conversation

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/medicare-voice/intake/pkg/logging"
)

func TestRedisCallLogRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	log := NewRedisCallLog(client, logging.Default())

	ctx := context.Background()
	log.LogTurn(ctx, "CA1", ChatRoleAssistant, "Hello! How can I help?")
	log.LogTurn(ctx, "CA1", ChatRoleUser, "my name is john smith")

	entries, err := log.Transcript(ctx, "CA1")
	if err != nil {
		t.Fatalf("transcript: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Role != ChatRoleAssistant || entries[1].Text != "my name is john smith" {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].ID == "" || entries[0].ID == entries[1].ID {
		t.Fatalf("entry ids not unique: %q vs %q", entries[0].ID, entries[1].ID)
	}
	if mr.TTL(transcriptKey("CA1")) <= 0 {
		t.Fatal("transcript key has no TTL")
	}
}

func TestRedisCallLogNilSafe(t *testing.T) {
	var log *RedisCallLog
	log.LogTurn(context.Background(), "CA1", ChatRoleUser, "hello")
	entries, err := log.Transcript(context.Background(), "CA1")
	if err != nil || entries != nil {
		t.Fatalf("nil log should no-op, got %v, %v", entries, err)
	}
}

func TestRedisCallLogIgnoresEmptyCallID(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	log := NewRedisCallLog(client, logging.Default())
	log.LogTurn(context.Background(), "", ChatRoleUser, "hello")

	if len(mr.Keys()) != 0 {
		t.Fatalf("keys = %v", mr.Keys())
	}
}

func TestNewRedisCallLogNilClient(t *testing.T) {
	if log := NewRedisCallLog(nil, nil); log != nil {
		t.Fatal("nil client should disable the archive")
	}
}
