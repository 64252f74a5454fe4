package cache

import (
	"context"
	"testing"
	"time"

	"civicbriefs/internal/core"

	"github.com/google/go-cmp/cmp"
)

func TestCapsuleKey(t *testing.T) {
	if got := CapsuleKey("2025-01-02"); got != "civicbriefs:capsule:2025-01-02" {
		t.Errorf("CapsuleKey = %q", got)
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, ok, err := m.Get(ctx, "2025-01-02"); ok || err != nil {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}

	want := &core.Capsule{Date: "2025-01-02", Items: []core.CapsuleItem{{
		Title:   "Budget",
		URL:     "https://news.test/budget",
		Summary: "- Deficit narrows.",
		Topics:  []core.CapsuleTopic{{Paper: core.PaperGS3, Topic: "Economy", Score: 0.4}},
		Pyqs:    []core.RelatedPyq{},
	}}}
	if err := m.Set(ctx, want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := m.Get(ctx, "2025-01-02")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	if err := m.Delete(ctx, "2025-01-02"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "2025-01-02"); ok {
		t.Error("entry survived Delete")
	}
}

func TestNewRedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NewRedis(ctx, "127.0.0.1:1", "", 0, time.Hour); err == nil {
		t.Error("expected connection error")
	}
}
