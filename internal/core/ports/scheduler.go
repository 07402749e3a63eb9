package ports

type SchedulerService interface {
	Start()
	Stop()
	// AddNow returns the task timestamp delta seconds from now.
	AddNow(delta int64) int64
	// AfterNow reports whether at is still in the future.
	AfterNow(at int64) bool
	ScheduleTaskOnce(at int64, task func()) error
}
