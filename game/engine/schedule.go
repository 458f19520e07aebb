package engine

// WindowSchedule changes spawn intervals during windows of simulated time.
// The first matching window wins; outside every window the tuning applies.
type WindowSchedule struct {
	windows []ScheduleWindow
}

// NewWindowSchedule returns nil when there are no windows
func NewWindowSchedule(windows []ScheduleWindow) *WindowSchedule {
	if len(windows) == 0 {
		return nil
	}
	return &WindowSchedule{windows: append([]ScheduleWindow(nil), windows...)}
}

// SpawnInterval implements traffic.Schedule
func (s *WindowSchedule) SpawnInterval(spawnerID string, elapsedMs float64) (float64, bool) {
	if s == nil {
		return 0, false
	}
	for _, w := range s.windows {
		if w.Spawner != "" && w.Spawner != spawnerID {
			continue
		}
		if elapsedMs >= w.FromMs && elapsedMs < w.ToMs {
			return w.IntervalMs, true
		}
	}
	return 0, false
}
