package middleware

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterTTL = 5 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttler applies a token bucket per client IP. The client is the socket
// peer unless that peer is a trusted proxy, in which case the right-most
// untrusted X-Forwarded-For entry is used.
type Throttler struct {
	rps        float64
	burst      int
	retryAfter string
	trusted    []netip.Prefix
	now        func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
}

// NewThrottler returns a throttler. rps <= 0 disables it.
func NewThrottler(rps float64, burst int, trustedProxies []netip.Prefix) *Throttler {
	if burst < 1 {
		burst = int(math.Ceil(rps))
	}
	t := &Throttler{
		rps:      rps,
		burst:    burst,
		trusted:  trustedProxies,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
	if rps > 0 {
		t.retryAfter = strconv.Itoa(int(math.Max(1, math.Ceil(1/rps))))
	}
	return t
}

func (t *Throttler) Handler(next http.Handler) http.Handler {
	if t == nil || t.rps <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.limiter(ClientIP(r, t.trusted)).Allow() {
			throttledRequests.WithLabelValues(routePattern(r)).Inc()
			w.Header().Set("Retry-After", t.retryAfter)
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (t *Throttler) limiter(ip string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	v, ok := t.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(t.rps), t.burst)}
		t.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// Run drops idle buckets every interval until ctx is done.
func (t *Throttler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.prune()
		}
	}
}

func (t *Throttler) prune() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for ip, v := range t.visitors {
		if now.Sub(v.lastSeen) > limiterTTL {
			delete(t.visitors, ip)
		}
	}
}

// Len returns the number of tracked clients.
func (t *Throttler) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.visitors)
}

// ClientIP returns the socket peer of r, or the right-most X-Forwarded-For
// hop not in trusted when the peer itself is trusted.
func ClientIP(r *http.Request, trusted []netip.Prefix) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil || !isTrusted(peer, trusted) {
		return host
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			break
		}
		if !isTrusted(hop, trusted) {
			return hop.String()
		}
	}
	return host
}

func isTrusted(addr netip.Addr, trusted []netip.Prefix) bool {
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ParseTrustedProxies parses a list of CIDRs or bare addresses.
func ParseTrustedProxies(values []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(values))
	for _, v := range values {
		if strings.Contains(v, "/") {
			p, err := netip.ParsePrefix(v)
			if err != nil {
				return nil, err
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return nil, err
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}
