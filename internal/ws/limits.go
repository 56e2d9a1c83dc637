package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleEviction = 10 * time.Minute

// RejectReason says why a connection attempt was refused.
type RejectReason string

const (
	RejectGlobalLimit RejectReason = "global_limit"
	RejectPerIPLimit  RejectReason = "ip_limit"
	RejectRateLimit   RejectReason = "rate_limit"
)

// ConnectionLimits guards admission of new WebSocket connections: a global
// cap per instance, a cap per client IP, and a token-bucket rate per IP.
// All three are checked in one Acquire call so handlers cannot forget one.
type ConnectionLimits struct {
	globalMax int64
	current   atomic.Int64

	mu       sync.Mutex
	perIP    map[string]int
	perIPMax int
	buckets  map[string]*bucketEntry
	rate     rate.Limit
	burst    int
	sweepAt  time.Time
}

type bucketEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewConnectionLimits builds the combined limiter. ratePerSecond is the
// sustained new-connection rate per IP, burst the immediate allowance.
func NewConnectionLimits(globalMax int64, perIPMax int, ratePerSecond float64, burst int) *ConnectionLimits {
	return &ConnectionLimits{
		globalMax: globalMax,
		perIP:     make(map[string]int),
		perIPMax:  perIPMax,
		buckets:   make(map[string]*bucketEntry),
		rate:      rate.Limit(ratePerSecond),
		burst:     burst,
		sweepAt:   time.Now().Add(limiterIdleEviction / 2),
	}
}

// Acquire claims a slot for ip. On success the caller must Release the same
// ip exactly once. On failure the reason names the limit that was hit.
func (l *ConnectionLimits) Acquire(ip string) (bool, RejectReason) {
	// Rate check first: it is the cheapest and also throttles attackers
	// hammering a full server.
	if !l.allowRate(ip) {
		return false, RejectRateLimit
	}

	for {
		current := l.current.Load()
		if current >= l.globalMax {
			return false, RejectGlobalLimit
		}
		if l.current.CompareAndSwap(current, current+1) {
			break
		}
	}

	l.mu.Lock()
	if l.perIP[ip] >= l.perIPMax {
		l.mu.Unlock()
		l.current.Add(-1)
		return false, RejectPerIPLimit
	}
	l.perIP[ip]++
	l.mu.Unlock()

	return true, ""
}

// Release returns the slot claimed by Acquire.
func (l *ConnectionLimits) Release(ip string) {
	l.mu.Lock()
	if count := l.perIP[ip]; count > 0 {
		if count == 1 {
			delete(l.perIP, ip)
		} else {
			l.perIP[ip] = count - 1
		}
	}
	l.mu.Unlock()
	l.current.Add(-1)
}

// Current returns the number of held slots.
func (l *ConnectionLimits) Current() int64 {
	return l.current.Load()
}

// CapacityPct returns global utilization as a percentage.
func (l *ConnectionLimits) CapacityPct() float64 {
	if l.globalMax == 0 {
		return 0
	}
	return float64(l.current.Load()) / float64(l.globalMax) * 100
}

// UniqueIPs returns how many distinct IPs currently hold slots.
func (l *ConnectionLimits) UniqueIPs() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.perIP)
}

func (l *ConnectionLimits) allowRate(ip string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.sweepAt) {
		cutoff := now.Add(-limiterIdleEviction)
		for key, entry := range l.buckets {
			if entry.lastSeen.Before(cutoff) {
				delete(l.buckets, key)
			}
		}
		l.sweepAt = now.Add(limiterIdleEviction / 2)
	}

	entry, ok := l.buckets[ip]
	if !ok {
		entry = &bucketEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[ip] = entry
	}
	entry.lastSeen = now

	return entry.limiter.Allow()
}
