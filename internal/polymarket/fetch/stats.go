package fetch

import (
	"math"
	"sync"
	"time"
)

// Stats counts the requests made by one Client. Each analysis invocation owns
// its own Client and therefore its own Stats.
type Stats struct {
	mu           sync.Mutex
	startedAt    time.Time
	httpRequests int
	cacheHits    int
	cacheMisses  int
	httpTime     time.Duration
	byHost       map[string]int
}

// StatsSnapshot is a point-in-time copy of Stats
type StatsSnapshot struct {
	HTTPRequests int            `json:"http_requests"`
	CacheHits    int            `json:"cache_hits"`
	CacheMisses  int            `json:"cache_misses"`
	HTTPTimeS    float64        `json:"http_time_s"`
	ElapsedS     float64        `json:"elapsed_s"`
	ByHost       map[string]int `json:"by_host"`
}

func newStats() *Stats {
	return &Stats{startedAt: time.Now(), byHost: map[string]int{}}
}

func (s *Stats) recordHTTP(host string, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.httpRequests++
	if elapsed > 0 {
		s.httpTime += elapsed
	}
	s.byHost[host]++
}

func (s *Stats) recordCache(hit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hit {
		s.cacheHits++
	} else {
		s.cacheMisses++
	}
}

// Snapshot is safe to call at any time, including while requests are in flight.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	byHost := make(map[string]int, len(s.byHost))
	for host, n := range s.byHost {
		byHost[host] = n
	}
	return StatsSnapshot{
		HTTPRequests: s.httpRequests,
		CacheHits:    s.cacheHits,
		CacheMisses:  s.cacheMisses,
		HTTPTimeS:    round3(s.httpTime.Seconds()),
		ElapsedS:     round3(time.Since(s.startedAt).Seconds()),
		ByHost:       byHost,
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
