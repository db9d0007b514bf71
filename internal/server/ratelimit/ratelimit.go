// Package ratelimit limits how often API clients may call the endpoints that
// spend Zuper or LLM quota, using a token bucket per client and endpoint.
package ratelimit

import (
	"path"
	"strings"
	"sync"
	"time"

	"github.com/jonathan/parts-dashboard/internal/config"
)

// staleAfter is how long an idle bucket is kept.
const staleAfter = time.Hour

// Rule is the limit for requests matching Method and Path. A Path ending in
// "/" matches by prefix and a Path with "*" is a path.Match pattern.
type Rule struct {
	Method string
	Path   string
	Limit  int
	Window time.Duration
	Burst  int // defaults to Limit
}

func (r Rule) matches(method, urlPath string) bool {
	if r.Method != method {
		return false
	}
	switch {
	case strings.HasSuffix(r.Path, "/"):
		return strings.HasPrefix(urlPath, r.Path)
	case strings.Contains(r.Path, "*"):
		ok, _ := path.Match(r.Path, urlPath)
		return ok
	default:
		return r.Path == urlPath
	}
}

// RulesFromConfig builds the endpoint rules for the dashboard API.
func RulesFromConfig(cfg config.RateLimitConfig) []Rule {
	return []Rule{
		{Method: "POST", Path: "/sync", Limit: cfg.SyncPerHour, Window: time.Hour, Burst: 2},
		{Method: "POST", Path: "/assistant/", Limit: cfg.AssistantPerMinute, Window: time.Minute},
		{Method: "GET", Path: "/jobs/*/analysis", Limit: cfg.AssistantPerMinute, Window: time.Minute},
	}
}

type bucket struct {
	capacity   float64
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time
}

func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = min(b.capacity, b.tokens+elapsed*b.refillRate)
		b.lastRefill = now
	}
}

// Info describes the limit that applied to a request.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter tracks buckets for every client and endpoint pair.
type Limiter struct {
	enabled      bool
	rules        []Rule
	defaultLimit int
	now          func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewLimiter creates a Limiter. now may be nil to use the wall clock.
func NewLimiter(cfg config.RateLimitConfig, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		enabled:      cfg.Enabled,
		rules:        RulesFromConfig(cfg),
		defaultLimit: cfg.DefaultPerMinute,
		now:          now,
		buckets:      make(map[string]*bucket),
	}
}

func (l *Limiter) ruleFor(method, urlPath string) Rule {
	for _, r := range l.rules {
		if r.matches(method, urlPath) {
			return r
		}
	}
	return Rule{Method: method, Path: "*", Limit: l.defaultLimit, Window: time.Minute}
}

// Allow consumes a token for clientID on method and path if one is available.
// Health checks are never limited.
func (l *Limiter) Allow(clientID, method, urlPath string) Info {
	if !l.enabled || urlPath == "/health" {
		return Info{Allowed: true}
	}

	rule := l.ruleFor(method, urlPath)
	if rule.Limit <= 0 || rule.Window <= 0 {
		return Info{Allowed: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := clientID + " " + rule.Method + " " + rule.Path
	b, ok := l.buckets[key]
	if !ok {
		l.prune(now)
		capacity := rule.Burst
		if capacity <= 0 {
			capacity = rule.Limit
		}
		b = &bucket{
			capacity:   float64(capacity),
			refillRate: float64(rule.Limit) / rule.Window.Seconds(),
			tokens:     float64(capacity),
			lastRefill: now,
		}
		l.buckets[key] = b
	}
	b.refill(now)

	info := Info{Limit: rule.Limit}
	if b.tokens >= 1 {
		b.tokens--
		info.Allowed = true
	} else {
		info.RetryAfter = time.Duration((1 - b.tokens) / b.refillRate * float64(time.Second))
	}
	info.Remaining = int(b.tokens)
	return info
}

// prune drops buckets idle for longer than staleAfter. Callers hold l.mu.
func (l *Limiter) prune(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastRefill) > staleAfter {
			delete(l.buckets, key)
		}
	}
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
