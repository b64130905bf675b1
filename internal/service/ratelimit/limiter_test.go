package ratelimit

import (
    "testing"
    "time"
)

func TestLimiter_BurstAndRefill(t *testing.T) {
    clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
    l := New(2, 1)
    l.now = func() time.Time { return clock }

    if !l.Allow("a") || !l.Allow("a") {
        t.Fatalf("burst of 2 should be allowed")
    }
    if l.Allow("a") {
        t.Fatalf("third request should be limited")
    }
    if !l.Allow("b") {
        t.Fatalf("keys are independent")
    }

    clock = clock.Add(time.Second)
    if !l.Allow("a") {
        t.Fatalf("one token should refill after 1s")
    }
    if l.Allow("a") {
        t.Fatalf("only one token refilled")
    }
}

func TestLimiter_Prune(t *testing.T) {
    clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
    l := New(1, 1)
    l.now = func() time.Time { return clock }
    l.Allow("a")

    clock = clock.Add(time.Hour)
    l.Prune(time.Minute)
    if len(l.m) != 0 {
        t.Fatalf("idle bucket not pruned")
    }
}
