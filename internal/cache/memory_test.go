// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

package cache

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestMemorySetGet(t *testing.T) {
	m := NewMemory(time.Hour)
	defer m.Close()
	ctx := context.Background()

	if err := m.Set(ctx, "k", []byte("value"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok, err := m.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v, %v", got, ok, err)
	}
	if !bytes.Equal(got, []byte("value")) {
		t.Errorf("Get = %q, want %q", got, "value")
	}

	_, ok, err = m.Get(ctx, "absent")
	if err != nil {
		t.Fatalf("Get absent: %v", err)
	}
	if ok {
		t.Error("absent key reported as present")
	}
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory(time.Hour)
	defer m.Close()
	ctx := context.Background()

	if err := m.Set(ctx, "k", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	_, ok, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("expired entry still served")
	}
}

func TestMemoryDelete(t *testing.T) {
	m := NewMemory(time.Hour)
	defer m.Close()
	ctx := context.Background()

	if err := m.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Error("deleted key still present")
	}
}

func TestMemoryCopiesBytes(t *testing.T) {
	m := NewMemory(time.Hour)
	defer m.Close()
	ctx := context.Background()

	original := []byte("immutable")
	if err := m.Set(ctx, "k", original, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	original[0] = 'X'

	got, _, _ := m.Get(ctx, "k")
	if !bytes.Equal(got, []byte("immutable")) {
		t.Errorf("stored value aliased caller bytes: %q", got)
	}

	got[0] = 'Y'
	again, _, _ := m.Get(ctx, "k")
	if !bytes.Equal(again, []byte("immutable")) {
		t.Errorf("returned value aliased stored bytes: %q", again)
	}
}

func TestMemoryStats(t *testing.T) {
	m := NewMemory(time.Hour)
	defer m.Close()
	ctx := context.Background()

	_ = m.Set(ctx, "k", []byte("v"), 0)
	_, _, _ = m.Get(ctx, "k")
	_, _, _ = m.Get(ctx, "k")
	_, _, _ = m.Get(ctx, "missing")

	stats := m.GetStats()
	if stats.Hits != 2 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 2 hits and 1 miss", stats)
	}
	if stats.TotalKeys != 1 {
		t.Errorf("TotalKeys = %d, want 1", stats.TotalKeys)
	}
	if rate := stats.HitRate(); rate < 0.66 || rate > 0.67 {
		t.Errorf("HitRate = %v, want ~0.667", rate)
	}
}

func TestMemorySweep(t *testing.T) {
	m := NewMemory(time.Hour)
	defer m.Close()
	ctx := context.Background()

	_ = m.Set(ctx, "short", []byte("v"), time.Millisecond)
	_ = m.Set(ctx, "long", []byte("v"), time.Hour)
	time.Sleep(5 * time.Millisecond)

	m.sweep()

	stats := m.GetStats()
	if stats.TotalKeys != 1 {
		t.Errorf("TotalKeys after sweep = %d, want 1", stats.TotalKeys)
	}
	if stats.Evictions != 1 {
		t.Errorf("Evictions after sweep = %d, want 1", stats.Evictions)
	}
}
