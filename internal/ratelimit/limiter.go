package ratelimit

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultRequestsPerMinute = 60
	DefaultPenaltyThreshold  = 10
	DefaultPenaltyDuration   = 5 * time.Minute
	DefaultMaxEntries        = 10_000
	DefaultIdleWindow        = 10 * time.Minute
)

type Config struct {
	RequestsPerMinute int
	PenaltyThreshold  int
	PenaltyDuration   time.Duration
	MaxEntries        int
	IdleWindow        time.Duration
}

func (c Config) withDefaults() Config {
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if c.PenaltyThreshold <= 0 {
		c.PenaltyThreshold = DefaultPenaltyThreshold
	}
	if c.PenaltyDuration <= 0 {
		c.PenaltyDuration = DefaultPenaltyDuration
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	if c.IdleWindow <= 0 {
		c.IdleWindow = DefaultIdleWindow
	}
	return c
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed bool
	// Blocked is set while the client serves a penalty, including the request that opened it.
	Blocked    bool
	RetryAfter time.Duration
	Violations int
	Limit      int
}

type bucket struct {
	mu         sync.Mutex
	tokens     *rate.Limiter
	violations int
	// dead is set under mu when a penalty retires the bucket.
	dead       bool
	lastAccess atomic.Int64
}

type penalty struct {
	until      time.Time
	violations int
}

// Limiter is an in-memory per-client token bucket with an escalating penalty
// window. Clients are keyed by IP; entries never share a lock.
type Limiter struct {
	cfg       Config
	buckets   sync.Map // string -> *bucket
	penalties sync.Map // string -> *penalty
	size      atomic.Int64
	now       func() time.Time
	logger    *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		cfg:    cfg.withDefaults(),
		now:    time.Now,
		logger: logger.With("component", "rate_limiter"),
	}
}

func (l *Limiter) Config() Config {
	return l.cfg
}

// Admit consumes one request for ip.
func (l *Limiter) Admit(ip string) Decision {
	now := l.now()

	if d, blocked := l.checkPenalty(ip, now, true); blocked {
		return d
	}

	l.cleanup(now)

	for {
		b := l.bucketFor(ip, now)
		b.mu.Lock()
		if b.dead {
			b.mu.Unlock()
			continue
		}
		// A penalty may have opened between the first check and the lock.
		if d, blocked := l.checkPenalty(ip, now, false); blocked {
			b.mu.Unlock()
			return d
		}
		d := l.consume(ip, b, now)
		b.mu.Unlock()
		return d
	}
}

// checkPenalty reports an active penalty for ip. Expired penalties are removed.
func (l *Limiter) checkPenalty(ip string, now time.Time, logBlock bool) (Decision, bool) {
	v, ok := l.penalties.Load(ip)
	if !ok {
		return Decision{}, false
	}
	p := v.(*penalty)
	if now.Before(p.until) {
		remaining := p.until.Sub(now)
		if logBlock {
			l.logger.Warn("client temporarily blocked",
				"ip", ip,
				"remaining_seconds", int64(remaining/time.Second),
				"violations", p.violations,
			)
		}
		return Decision{Blocked: true, RetryAfter: remaining, Violations: p.violations, Limit: l.cfg.RequestsPerMinute}, true
	}
	if l.penalties.CompareAndDelete(ip, v) {
		l.logger.Info("client released after penalty", "ip", ip)
	}
	return Decision{}, false
}

// consume runs the bucket stage. b.mu must be held.
func (l *Limiter) consume(ip string, b *bucket, now time.Time) Decision {
	b.lastAccess.Store(now.UnixNano())

	if b.tokens.AllowN(now, 1) {
		if b.violations > 0 {
			b.violations--
		}
		return Decision{Allowed: true, Violations: b.violations, Limit: l.cfg.RequestsPerMinute}
	}

	b.violations++
	l.logger.Warn("rate limit exceeded", "ip", ip, "violations", b.violations)

	if b.violations >= l.cfg.PenaltyThreshold {
		l.penalties.Store(ip, &penalty{until: now.Add(l.cfg.PenaltyDuration), violations: b.violations})
		b.dead = true
		if l.buckets.CompareAndDelete(ip, b) {
			l.size.Add(-1)
		}
		l.logger.Error("client blocked",
			"ip", ip,
			"violations", b.violations,
			"duration", l.cfg.PenaltyDuration,
		)
		return Decision{
			Blocked:    true,
			RetryAfter: l.cfg.PenaltyDuration,
			Violations: b.violations,
			Limit:      l.cfg.RequestsPerMinute,
		}
	}

	return Decision{Violations: b.violations, Limit: l.cfg.RequestsPerMinute}
}

// Violations reports the current violation count for ip, or the count frozen
// into its penalty while one is active.
func (l *Limiter) Violations(ip string) int {
	if v, ok := l.penalties.Load(ip); ok {
		if p := v.(*penalty); l.now().Before(p.until) {
			return p.violations
		}
	}
	v, ok := l.buckets.Load(ip)
	if !ok {
		return 0
	}
	b := v.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.violations
}

// Size returns the number of tracked buckets.
func (l *Limiter) Size() int {
	return int(l.size.Load())
}

func (l *Limiter) bucketFor(ip string, now time.Time) *bucket {
	if v, ok := l.buckets.Load(ip); ok {
		return v.(*bucket)
	}

	n := l.cfg.RequestsPerMinute
	fresh := &bucket{tokens: rate.NewLimiter(rate.Limit(float64(n)/60), n)}
	fresh.lastAccess.Store(now.UnixNano())

	v, loaded := l.buckets.LoadOrStore(ip, fresh)
	if !loaded {
		l.size.Add(1)
	}
	return v.(*bucket)
}

func (l *Limiter) cleanup(now time.Time) {
	if l.size.Load() > int64(l.cfg.MaxEntries) {
		cutoff := now.Add(-l.cfg.IdleWindow).UnixNano()
		l.buckets.Range(func(key, value any) bool {
			if value.(*bucket).lastAccess.Load() < cutoff {
				if l.buckets.CompareAndDelete(key, value) {
					l.size.Add(-1)
				}
			}
			return true
		})
		l.logger.Info("rate limit buckets evicted", "size", l.size.Load())
	}

	l.penalties.Range(func(key, value any) bool {
		if !now.Before(value.(*penalty).until) {
			l.penalties.CompareAndDelete(key, value)
		}
		return true
	})
}
