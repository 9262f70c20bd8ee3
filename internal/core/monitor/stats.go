package monitor

import "expvar"

// Stats 进程级处理计数，同时发布到 expvar 供指标接口读取
type Stats struct {
	FramesProcessed   *expvar.Int
	IncidentsDetected *expvar.Int
	ActiveSessions    *expvar.Int
}

func NewStats() *Stats {
	return &Stats{
		FramesProcessed:   newInt("monitor_frames_processed"),
		IncidentsDetected: newInt("monitor_incidents_detected"),
		ActiveSessions:    newInt("monitor_active_sessions"),
	}
}

// newInt 重复注册时复用已有变量，避免单测中多次构造 panic
func newInt(name string) *expvar.Int {
	if v := expvar.Get(name); v != nil {
		if i, ok := v.(*expvar.Int); ok {
			i.Set(0)
			return i
		}
	}
	return expvar.NewInt(name)
}
