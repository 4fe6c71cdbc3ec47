// Package ratelimit implements the per-category token-bucket limiter (spec
// §4.2). Buckets are in-memory and process-local; they are not shared
// across proxy replicas (see DESIGN.md / spec §9).
package ratelimit

import (
	"sync"
	"time"

	"github.com/agentsafe/agentsafe/internal/policy"
)

// Decision mirrors policy.Decision so callers don't need to import both
// packages for a single rate-limit check.
type Decision = policy.Decision

type bucket struct {
	mu           sync.Mutex
	capacity     float64
	tokens       float64
	refillPerSec float64
	lastTS       time.Time
}

func (b *bucket) consume(now time.Time, count float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.lastTS).Seconds()
	b.lastTS = now
	b.tokens = min(b.capacity, b.tokens+elapsed*b.refillPerSec)
	if b.tokens < count {
		return false
	}
	b.tokens -= count
	return true
}

// Limiter holds one token bucket per configured category. Check refills
// from time.Now(), whose monotonic reading Time.Sub uses, so wall-clock
// adjustments never refill a bucket.
type Limiter struct {
	buckets map[string]*bucket
}

// New builds a Limiter from the policy's configured rate-limit rules.
func New(rules []policy.RateLimitRule) *Limiter {
	buckets := make(map[string]*bucket, len(rules))
	now := time.Now()
	for _, rule := range rules {
		buckets[rule.Category] = &bucket{
			capacity:     float64(rule.Capacity),
			tokens:       float64(rule.Capacity),
			refillPerSec: rule.RefillPerSec,
			lastTS:       now,
		}
	}
	return &Limiter{buckets: buckets}
}

// Check consumes one token from category's bucket, refilling first. A
// category with no configured bucket always allows.
func (l *Limiter) Check(category string) Decision {
	return l.CheckAt(category, time.Now())
}

// CheckAt is Check with an explicit clock reading, for deterministic refill
// behavior without sleeping.
func (l *Limiter) CheckAt(category string, now time.Time) Decision {
	b, ok := l.buckets[category]
	if !ok {
		return Decision{Allowed: true, Reason: "no rate limit configured", RuleID: "rate_default_allow"}
	}
	if b.consume(now, 1) {
		return Decision{Allowed: true, Reason: "within rate limit", RuleID: "rate_allow"}
	}
	return Decision{Allowed: false, Reason: "rate limit exceeded", RuleID: "rate_limit_block"}
}
