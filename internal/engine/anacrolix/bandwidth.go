package anacrolix

import (
	"time"

	"golang.org/x/time/rate"
)

// bandwidth enforces a per-torrent byte rate by reporting how long transfer
// must stay disallowed after the bytes observed in the last poll.
type bandwidth struct {
	limit int
	lim   *rate.Limiter
}

// set installs a limit in bytes per second; zero or less removes it.
func (b *bandwidth) set(limit int) {
	if limit <= 0 {
		b.limit = 0
		b.lim = nil
		return
	}
	b.limit = limit
	b.lim = rate.NewLimiter(rate.Limit(limit), limit)
}

// consume charges n bytes at now and returns the accumulated debt.
func (b *bandwidth) consume(now time.Time, n int64) time.Duration {
	if b.lim == nil || n <= 0 {
		return 0
	}
	burst := int64(b.lim.Burst())
	var delay time.Duration
	for n > 0 {
		k := min(n, burst)
		r := b.lim.ReserveN(now, int(k))
		if !r.OK() {
			break
		}
		delay = r.DelayFrom(now)
		n -= k
	}
	return delay
}

type speedSampler struct {
	at      time.Time
	read    int64
	written int64
}

// sample returns bytes per second since the previous sample.
func (s *speedSampler) sample(now time.Time, read, written int64) (down, up int64) {
	prev := *s
	s.at, s.read, s.written = now, read, written
	if prev.at.IsZero() {
		return 0, 0
	}
	dt := now.Sub(prev.at).Seconds()
	if dt <= 0 {
		return 0, 0
	}
	dr := max(read-prev.read, 0)
	dw := max(written-prev.written, 0)
	return int64(float64(dr) / dt), int64(float64(dw) / dt)
}

func (s *speedSampler) reset() {
	*s = speedSampler{}
}
