package module

import "time"

// Stats tracks per-adapter call counters. Updates are plain field writes: a
// single Engine drives its adapters from one goroutine, so there is nothing
// to synchronize against.
type Stats struct {
	Calls     int64         `json:"calls"`
	Errors    int64         `json:"errors"`
	TotalTime time.Duration `json:"total_time"`
}

// Observe records one call that started at start. Call it with the call's
// error, typically via defer.
func (s *Stats) Observe(start time.Time, err error) {
	s.Calls++
	s.TotalTime += time.Since(start)
	if err != nil {
		s.Errors++
	}
}

// AvgTime returns the mean call duration, zero when no calls were recorded.
func (s Stats) AvgTime() time.Duration {
	if s.Calls == 0 {
		return 0
	}
	return s.TotalTime / time.Duration(s.Calls)
}
