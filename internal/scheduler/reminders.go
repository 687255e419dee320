package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/taskhub/backend/internal/mailer"
	"github.com/taskhub/backend/internal/repository"
)

// reminderWindow is how far ahead of the deadline a reminder is sent, and
// also the minimum gap between reminders for the same task.
const reminderWindow = 24 * time.Hour

// ReminderScheduler periodically scans for tasks with upcoming deadlines and
// emails their assignees. Each successful send is recorded on the task so a
// rescan (or a process restart) does not produce duplicate reminders.
type ReminderScheduler struct {
	cron     *cron.Cron
	taskRepo repository.TaskRepository
	userRepo repository.UserRepository
	notifier mailer.Notifier
	logger   *zap.Logger
}

// NewReminderScheduler creates a new ReminderScheduler.
func NewReminderScheduler(taskRepo repository.TaskRepository, userRepo repository.UserRepository, notifier mailer.Notifier, logger *zap.Logger) *ReminderScheduler {
	return &ReminderScheduler{
		cron:     cron.New(),
		taskRepo: taskRepo,
		userRepo: userRepo,
		notifier: notifier,
		logger:   logger,
	}
}

// Start registers the scan on the given cron schedule and starts the scheduler.
func (s *ReminderScheduler) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		sent, err := s.RunScan(time.Now())
		if err != nil {
			s.logger.Error("reminder scan failed", zap.Error(err))
			return
		}
		s.logger.Info("reminder scan completed", zap.Int("sent", sent))
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reminder scan: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop halts the scheduler. Does not interrupt a running scan.
func (s *ReminderScheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// RunScan sends reminders for open assigned tasks due within the reminder
// window that have not been reminded within that window already. Individual
// send failures are logged and do not stop the scan. Returns the number of
// reminders sent.
func (s *ReminderScheduler) RunScan(now time.Time) (int, error) {
	tasks, err := s.taskRepo.FindDueBetween(now, now.Add(reminderWindow))
	if err != nil {
		return 0, fmt.Errorf("failed to fetch upcoming tasks: %w", err)
	}

	ids := make([]uint64, 0, len(tasks))
	for _, t := range tasks {
		if t.AssigneeID != nil {
			ids = append(ids, *t.AssigneeID)
		}
	}
	users, err := s.userRepo.FindByIDs(ids)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch assignees: %w", err)
	}

	sent := 0
	for _, task := range tasks {
		if task.AssigneeID == nil {
			continue
		}
		if task.LastRemindedAt != nil && now.Sub(*task.LastRemindedAt) < reminderWindow {
			continue
		}

		assignee, ok := users[*task.AssigneeID]
		if !ok {
			continue
		}

		if err := s.notifier.DeadlineReminder(assignee, task); err != nil {
			s.logger.Warn("deadline reminder failed",
				zap.Uint64("task_id", task.ID),
				zap.Uint64("assignee_id", assignee.ID),
				zap.Error(err),
			)
			continue
		}

		if err := s.taskRepo.MarkReminded(task.ID, now); err != nil {
			s.logger.Warn("failed to record reminder",
				zap.Uint64("task_id", task.ID),
				zap.Error(err),
			)
		}
		sent++
	}

	return sent, nil
}
