package middleware

import (
	"fmt"
	"math"
	"music-player-go/logcolors"
	"music-player-go/stats"
	"net"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// LimiterPair holds the control and read tier limiters for an IP
type LimiterPair struct {
	Control  *rate.Limiter
	Read     *rate.Limiter
	lastSeen time.Time
}

// GetControlTokens returns the number of tokens available in the control tier
func (lp *LimiterPair) GetControlTokens() int {
	return int(math.Floor(lp.Control.Tokens()))
}

// GetReadTokens returns the number of tokens available in the read tier
func (lp *LimiterPair) GetReadTokens() int {
	return int(math.Floor(lp.Read.Tokens()))
}

// IPRateLimiter manages two-tier rate limiting per IP. Requests that change
// player state draw from the control tier, GET and HEAD from the read tier.
type IPRateLimiter struct {
	ips          map[string]*LimiterPair
	mu           *sync.RWMutex
	controlRate  rate.Limit
	controlBurst int
	readRate     rate.Limit
	readBurst    int
}

// GetControlLimit returns the control tier burst limit
func (i *IPRateLimiter) GetControlLimit() int {
	return i.controlBurst
}

// GetReadLimit returns the read tier burst limit
func (i *IPRateLimiter) GetReadLimit() int {
	return i.readBurst
}

// NewIPRateLimiter creates a new two-tier rate limiter
func NewIPRateLimiter(controlRate rate.Limit, controlBurst int, readRate rate.Limit, readBurst int) *IPRateLimiter {
	return &IPRateLimiter{
		ips:          make(map[string]*LimiterPair),
		mu:           &sync.RWMutex{},
		controlRate:  controlRate,
		controlBurst: controlBurst,
		readRate:     readRate,
		readBurst:    readBurst,
	}
}

func (i *IPRateLimiter) AddIP(ip string) *LimiterPair {
	i.mu.Lock()
	defer i.mu.Unlock()

	pair := &LimiterPair{
		Control:  rate.NewLimiter(i.controlRate, i.controlBurst),
		Read:     rate.NewLimiter(i.readRate, i.readBurst),
		lastSeen: time.Now(),
	}
	i.ips[ip] = pair
	return pair
}

func (i *IPRateLimiter) GetLimiter(ip string) *LimiterPair {
	i.mu.Lock()
	limiter, exists := i.ips[ip]
	if !exists {
		i.mu.Unlock()
		return i.AddIP(ip)
	}
	limiter.lastSeen = time.Now()
	i.mu.Unlock()

	return limiter
}

// Len returns the number of tracked IPs
func (i *IPRateLimiter) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.ips)
}

// Prune forgets IPs that have not been seen for longer than idle
func (i *IPRateLimiter) Prune(idle time.Duration) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	cutoff := time.Now().Add(-idle)
	removed := 0
	for ip, pair := range i.ips {
		if pair.lastSeen.Before(cutoff) {
			delete(i.ips, ip)
			removed++
		}
	}
	return removed
}

// clientIP strips the port from a RemoteAddr
func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func isReadOnly(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

// Middleware enforces the limiter. A request carrying bypassKey in
// X-API-Key skips both tiers.
func (i *IPRateLimiter) Middleware(bypassKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key := r.Header.Get("X-API-Key"); key != "" && bypassKey != "" && key == bypassKey {
				w.Header().Set("X-RateLimit-Bypass", "true")
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r.RemoteAddr)
			limiters := i.GetLimiter(ip)

			tier, limiter, limit := "normal", limiters.Control, i.controlBurst
			if isReadOnly(r.Method) {
				tier, limiter, limit = "read", limiters.Read, i.readBurst
			}

			if !limiter.Allow() {
				stats.Get().RecordRateLimit("exceeded")
				log.Warnf("%s IP %s exceeded the %s tier", logcolors.LogRateLimit, ip, tier)
				w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", "1")
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}

			stats.Get().RecordRateLimit(tier)
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", int(math.Floor(limiter.Tokens()))))
			w.Header().Set("X-RateLimit-Type", tier)
			next.ServeHTTP(w, r)
		})
	}
}
