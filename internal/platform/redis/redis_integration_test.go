package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

func TestAcquireGateIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("set REDIS_TEST_ADDR to run redis integration tests")
	}
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	c, err := New(log, Config{Addr: addr, KeyPrefix: "pi_it"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	key := "gate:" + uuid.NewString()
	first, err := c.AcquireGate(ctx, key, time.Minute)
	if err != nil || !first {
		t.Fatalf("first acquire: want=true got=%v err=%v", first, err)
	}
	second, err := c.AcquireGate(ctx, key, time.Minute)
	if err != nil || second {
		t.Fatalf("second acquire: want=false got=%v err=%v", second, err)
	}
	if err := c.ReleaseGate(ctx, key); err != nil {
		t.Fatalf("ReleaseGate: %v", err)
	}
	third, err := c.AcquireGate(ctx, key, time.Minute)
	if err != nil || !third {
		t.Fatalf("acquire after release: want=true got=%v err=%v", third, err)
	}
	if err := c.Publish(ctx, "notifications", map[string]any{"kind": "test"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}
