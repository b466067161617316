package engine

import (
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// frameWindow is how many recent frames feed the current-FPS estimate.
const frameWindow = 120

// PerformanceStats is a read-only snapshot of session counters.
type PerformanceStats struct {
	CurrentFPS           float64   `json:"current_fps"`
	AverageFPS           float64   `json:"average_fps"`
	DrawCount            uint64    `json:"draw_count"`
	FollowingUpdateCount uint64    `json:"following_update_count"`
	TotalDrawTimeMs      float64   `json:"total_draw_time_ms"`
	AvgDrawTimeMs        float64   `json:"avg_draw_time_ms"`
	MemoryBytes          uint64    `json:"memory_bytes"`
	StartTime            time.Time `json:"start_time"`
	LastUpdateTime       time.Time `json:"last_update_time"`
}

// statsCollector aggregates per-frame timings for one session. All methods
// are safe for concurrent use; reads never block on the render tick beyond
// the short mutex hold here.
type statsCollector struct {
	mu          sync.Mutex
	frameTimes  []time.Time
	drawCount   uint64
	repositions uint64
	totalDraw   time.Duration
	start       time.Time
	last        time.Time
}

func newStatsCollector() *statsCollector {
	return &statsCollector{frameTimes: make([]time.Time, 0, frameWindow)}
}

func (c *statsCollector) sessionStarted() {
	c.mu.Lock()
	c.start = time.Now()
	c.last = c.start
	c.mu.Unlock()
}

func (c *statsCollector) recordFrame(dur time.Duration) {
	now := time.Now()
	c.mu.Lock()
	c.drawCount++
	c.totalDraw += dur
	c.last = now
	c.frameTimes = append(c.frameTimes, now)
	if len(c.frameTimes) > frameWindow {
		c.frameTimes = c.frameTimes[len(c.frameTimes)-frameWindow:]
	}
	c.mu.Unlock()
}

func (c *statsCollector) recordReposition() {
	c.mu.Lock()
	c.repositions++
	c.mu.Unlock()
}

// reset clears per-session counters. Called on stop.
func (c *statsCollector) reset() {
	c.mu.Lock()
	c.frameTimes = c.frameTimes[:0]
	c.drawCount = 0
	c.repositions = 0
	c.totalDraw = 0
	c.start = time.Time{}
	c.last = time.Time{}
	c.mu.Unlock()
}

func (c *statsCollector) snapshot() PerformanceStats {
	c.mu.Lock()
	st := PerformanceStats{
		DrawCount:            c.drawCount,
		FollowingUpdateCount: c.repositions,
		TotalDrawTimeMs:      float64(c.totalDraw) / float64(time.Millisecond),
		StartTime:            c.start,
		LastUpdateTime:       c.last,
	}
	if c.drawCount > 0 {
		st.AvgDrawTimeMs = st.TotalDrawTimeMs / float64(c.drawCount)
	}
	if !c.start.IsZero() {
		elapsed := time.Since(c.start).Seconds()
		if elapsed > 0 {
			st.AverageFPS = float64(c.drawCount) / elapsed
		}
	}
	if n := len(c.frameTimes); n >= 2 {
		span := c.frameTimes[n-1].Sub(c.frameTimes[0]).Seconds()
		if span > 0 {
			st.CurrentFPS = float64(n-1) / span
		}
	}
	c.mu.Unlock()

	st.MemoryBytes = processMemory()
	return st
}

// processMemory reports resident memory of this process; zero when the
// platform query fails.
func processMemory() uint64 {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0
	}
	mem, err := p.MemoryInfo()
	if err != nil || mem == nil {
		return 0
	}
	return mem.RSS
}
