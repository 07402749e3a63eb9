package timescheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/hongbao-labs/packetd/internal/core/ports"
)

type service struct {
	svc *gocron.Scheduler
}

func NewScheduler() ports.SchedulerService {
	svc := gocron.NewScheduler(time.UTC)
	return &service{svc}
}

func (s *service) Start() {
	s.svc.StartAsync()
}

func (s *service) Stop() {
	s.svc.Stop()
}

func (s *service) AddNow(delta int64) int64 {
	return time.Now().Unix() + delta
}

func (s *service) AfterNow(at int64) bool {
	return at > time.Now().Unix()
}

func (s *service) ScheduleTaskOnce(at int64, task func()) error {
	delay := at - time.Now().Unix()
	if delay < 0 {
		return fmt.Errorf("cannot schedule task in the past")
	}
	if delay == 0 {
		delay = 1
	}

	_, err := s.svc.Every(int(delay)).Seconds().WaitForSchedule().LimitRunsTo(1).Do(task)
	return err
}
