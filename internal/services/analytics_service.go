package services

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/taskhub/backend/internal/models"
	"github.com/taskhub/backend/internal/repository"
)

var (
	ErrInvalidPeriod = errors.New("period must be day, week or month")
	ErrInvalidCount  = errors.New("count must be a positive number")
)

// TrendPeriod is the bucketing granularity for trend reports.
type TrendPeriod string

const (
	PeriodDay   TrendPeriod = "day"
	PeriodWeek  TrendPeriod = "week"
	PeriodMonth TrendPeriod = "month"
)

const hoursPerDay = 24

// AnalyticsService derives reporting views from task and user records.
// Every method is a pure read; empty inputs yield empty results, never errors.
type AnalyticsService struct {
	taskRepo repository.TaskRepository
	userRepo repository.UserRepository
}

// NewAnalyticsService creates a new AnalyticsService.
func NewAnalyticsService(taskRepo repository.TaskRepository, userRepo repository.UserRepository) *AnalyticsService {
	return &AnalyticsService{
		taskRepo: taskRepo,
		userRepo: userRepo,
	}
}

// TrendPoint is one bucket of a single-series trend.
type TrendPoint struct {
	Period string `json:"period"`
	Count  int    `json:"count"`
}

// CompletionStats buckets completed tasks by completion time over the last
// count periods. Every bucket in the window is present, including empty ones.
func (s *AnalyticsService) CompletionStats(period TrendPeriod, count int, now time.Time) ([]TrendPoint, error) {
	if err := validateWindow(period, count); err != nil {
		return nil, err
	}

	tasks, err := s.taskRepo.FindCompletedSince(windowStart(period, count, now))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch completed tasks: %w", err)
	}

	counts := make(map[string]int)
	for _, t := range tasks {
		if t.CompletedAt == nil {
			continue
		}
		counts[bucketKey(*t.CompletedAt, period)]++
	}

	keys := windowKeys(period, count, now)
	points := make([]TrendPoint, len(keys))
	for i, key := range keys {
		points[i] = TrendPoint{Period: key, Count: counts[key]}
	}
	return points, nil
}

// TaskTrendPoint pairs created and completed counts for one bucket.
type TaskTrendPoint struct {
	Period    string `json:"period"`
	Created   int    `json:"created"`
	Completed int    `json:"completed"`
}

// TaskTrends buckets task creations (all tasks) and completions (completed
// tasks only) over the same window, as two parallel series for charting.
func (s *AnalyticsService) TaskTrends(period TrendPeriod, count int, now time.Time) ([]TaskTrendPoint, error) {
	if err := validateWindow(period, count); err != nil {
		return nil, err
	}

	start := windowStart(period, count, now)

	created, err := s.taskRepo.FindCreatedSince(start)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch created tasks: %w", err)
	}
	completed, err := s.taskRepo.FindCompletedSince(start)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch completed tasks: %w", err)
	}

	createdCounts := make(map[string]int)
	for _, t := range created {
		createdCounts[bucketKey(t.CreatedAt, period)]++
	}
	completedCounts := make(map[string]int)
	for _, t := range completed {
		if t.CompletedAt == nil {
			continue
		}
		completedCounts[bucketKey(*t.CompletedAt, period)]++
	}

	keys := windowKeys(period, count, now)
	points := make([]TaskTrendPoint, len(keys))
	for i, key := range keys {
		points[i] = TaskTrendPoint{
			Period:    key,
			Created:   createdCounts[key],
			Completed: completedCounts[key],
		}
	}
	return points, nil
}

// WorkloadEntry describes the open-task load of one assignee.
type WorkloadEntry struct {
	UserID            uint64                      `json:"user_id"`
	Name              string                      `json:"name"`
	Department        string                      `json:"department"`
	TotalTasks        int                         `json:"total_tasks"`
	PriorityCounts    map[models.TaskPriority]int `json:"priority_counts"`
	AvgCompletionDays float64                     `json:"avg_completion_days"`
}

// WorkloadDistribution groups open (pending/in_progress) assigned tasks per
// assignee. The completion-time average deliberately draws from the
// assignee's completed tasks, a different subset than the open-task counts.
func (s *AnalyticsService) WorkloadDistribution() ([]WorkloadEntry, error) {
	open, err := s.taskRepo.FindOpenAssigned()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch open tasks: %w", err)
	}
	completed, err := s.taskRepo.FindCompletedAssigned()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch completed tasks: %w", err)
	}

	users, err := s.joinAssignees(open)
	if err != nil {
		return nil, err
	}

	byUser := make(map[uint64]*WorkloadEntry)
	for _, t := range open {
		entry, ok := byUser[*t.AssigneeID]
		if !ok {
			entry = &WorkloadEntry{
				UserID:         *t.AssigneeID,
				PriorityCounts: make(map[models.TaskPriority]int),
			}
			if u, found := users[*t.AssigneeID]; found {
				entry.Name = u.Name
				entry.Department = u.Department
			}
			byUser[*t.AssigneeID] = entry
		}
		entry.TotalTasks++
		entry.PriorityCounts[t.Priority]++
	}

	for id, entry := range byUser {
		entry.AvgCompletionDays = avgCompletionDays(completed, func(t models.Task) bool {
			return *t.AssigneeID == id
		})
	}

	entries := make([]WorkloadEntry, 0, len(byUser))
	for _, entry := range byUser {
		entries = append(entries, *entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalTasks != entries[j].TotalTasks {
			return entries[i].TotalTasks > entries[j].TotalTasks
		}
		return entries[i].UserID < entries[j].UserID
	})
	return entries, nil
}

// DepartmentPerformanceEntry aggregates assigned tasks for one department.
type DepartmentPerformanceEntry struct {
	Department        string                    `json:"department"`
	TotalTasks        int                       `json:"total_tasks"`
	StatusCounts      map[models.TaskStatus]int `json:"status_counts"`
	OnTime            int                       `json:"on_time"`
	Overdue           int                       `json:"overdue"`
	AvgCompletionDays float64                   `json:"avg_completion_days"`
}

// DepartmentPerformance aggregates every assigned task by the assignee's
// department, falling back to "Unassigned" when the department is unknown.
// OnTime plus Overdue always equals the department's completed-task count.
func (s *AnalyticsService) DepartmentPerformance() ([]DepartmentPerformanceEntry, error) {
	tasks, err := s.taskRepo.FindAssigned()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assigned tasks: %w", err)
	}

	users, err := s.joinAssignees(tasks)
	if err != nil {
		return nil, err
	}

	type deptAccum struct {
		entry          DepartmentPerformanceEntry
		completionSum  float64
		completedCount int
	}

	byDept := make(map[string]*deptAccum)
	for _, t := range tasks {
		dept := "Unassigned"
		if u, ok := users[*t.AssigneeID]; ok && u.Department != "" {
			dept = u.Department
		}

		accum, ok := byDept[dept]
		if !ok {
			accum = &deptAccum{entry: DepartmentPerformanceEntry{
				Department:   dept,
				StatusCounts: make(map[models.TaskStatus]int),
			}}
			byDept[dept] = accum
		}

		accum.entry.TotalTasks++
		accum.entry.StatusCounts[t.Status]++

		if t.Status == models.TaskStatusCompleted && t.CompletedAt != nil {
			if t.CompletedAt.After(t.Deadline) {
				accum.entry.Overdue++
			} else {
				accum.entry.OnTime++
			}
			accum.completionSum += t.CompletedAt.Sub(t.CreatedAt).Hours() / hoursPerDay
			accum.completedCount++
		}
	}

	entries := make([]DepartmentPerformanceEntry, 0, len(byDept))
	for _, accum := range byDept {
		if accum.completedCount > 0 {
			accum.entry.AvgCompletionDays = accum.completionSum / float64(accum.completedCount)
		}
		entries = append(entries, accum.entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Department < entries[j].Department
	})
	return entries, nil
}

// UserPerformanceEntry summarizes completed-task performance for one user.
type UserPerformanceEntry struct {
	UserID           uint64  `json:"user_id"`
	Name             string  `json:"name"`
	Department       string  `json:"department"`
	TasksCompleted   int     `json:"tasks_completed"`
	OnTimePercentage float64 `json:"on_time_percentage"`
	// AverageCompletionSpeed is measured in days relative to the deadline;
	// negative values mean tasks finished early on average.
	AverageCompletionSpeed float64 `json:"average_completion_speed"`
}

// UserPerformance aggregates completed assigned tasks per assignee, sorted
// descending by on-time percentage.
func (s *AnalyticsService) UserPerformance() ([]UserPerformanceEntry, error) {
	tasks, err := s.taskRepo.FindCompletedAssigned()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch completed tasks: %w", err)
	}

	users, err := s.joinAssignees(tasks)
	if err != nil {
		return nil, err
	}

	type userAccum struct {
		entry    UserPerformanceEntry
		onTime   int
		speedSum float64
	}

	byUser := make(map[uint64]*userAccum)
	for _, t := range tasks {
		if t.CompletedAt == nil {
			continue
		}

		accum, ok := byUser[*t.AssigneeID]
		if !ok {
			accum = &userAccum{entry: UserPerformanceEntry{UserID: *t.AssigneeID}}
			if u, found := users[*t.AssigneeID]; found {
				accum.entry.Name = u.Name
				accum.entry.Department = u.Department
			}
			byUser[*t.AssigneeID] = accum
		}

		accum.entry.TasksCompleted++
		if !t.CompletedAt.After(t.Deadline) {
			accum.onTime++
		}
		accum.speedSum += t.CompletedAt.Sub(t.Deadline).Hours() / hoursPerDay
	}

	entries := make([]UserPerformanceEntry, 0, len(byUser))
	for _, accum := range byUser {
		n := accum.entry.TasksCompleted
		accum.entry.OnTimePercentage = float64(accum.onTime) / float64(n) * 100
		accum.entry.AverageCompletionSpeed = accum.speedSum / float64(n)
		entries = append(entries, accum.entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].OnTimePercentage != entries[j].OnTimePercentage {
			return entries[i].OnTimePercentage > entries[j].OnTimePercentage
		}
		return entries[i].UserID < entries[j].UserID
	})
	return entries, nil
}

// OverdueTaskSummary is one overdue task in a per-user breakdown.
type OverdueTaskSummary struct {
	ID          uint64              `json:"id"`
	Title       string              `json:"title"`
	Priority    models.TaskPriority `json:"priority"`
	Deadline    time.Time           `json:"deadline"`
	DaysOverdue float64             `json:"days_overdue"`
}

// OverdueDepartmentEntry aggregates overdue tasks for one department.
type OverdueDepartmentEntry struct {
	Department     string                      `json:"department"`
	Count          int                         `json:"count"`
	PriorityCounts map[models.TaskPriority]int `json:"priority_counts"`
	AvgDaysOverdue float64                     `json:"avg_days_overdue"`
}

// OverdueUserEntry lists one user's overdue tasks.
type OverdueUserEntry struct {
	UserID uint64               `json:"user_id"`
	Name   string               `json:"name"`
	Count  int                  `json:"count"`
	Tasks  []OverdueTaskSummary `json:"tasks"`
}

// OverdueAnalysis is the combined overdue report.
type OverdueAnalysis struct {
	TotalOverdue int                      `json:"total_overdue"`
	ByDepartment []OverdueDepartmentEntry `json:"by_department"`
	ByUser       []OverdueUserEntry       `json:"by_user"`
}

// AnalyzeOverdue reports tasks past their deadline that are neither completed
// nor archived, grouped per department and per user. Users are sorted
// descending by overdue count.
func (s *AnalyticsService) AnalyzeOverdue(now time.Time) (*OverdueAnalysis, error) {
	tasks, err := s.taskRepo.FindOverdue(now)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch overdue tasks: %w", err)
	}

	users, err := s.joinAssignees(tasks)
	if err != nil {
		return nil, err
	}

	type deptAccum struct {
		entry      OverdueDepartmentEntry
		overdueSum float64
	}

	byDept := make(map[string]*deptAccum)
	byUser := make(map[uint64]*OverdueUserEntry)

	for _, t := range tasks {
		daysOverdue := now.Sub(t.Deadline).Hours() / hoursPerDay

		dept := "Unassigned"
		var assignee *models.User
		if t.AssigneeID != nil {
			if u, ok := users[*t.AssigneeID]; ok {
				assignee = &u
				if u.Department != "" {
					dept = u.Department
				}
			}
		}

		accum, ok := byDept[dept]
		if !ok {
			accum = &deptAccum{entry: OverdueDepartmentEntry{
				Department:     dept,
				PriorityCounts: make(map[models.TaskPriority]int),
			}}
			byDept[dept] = accum
		}
		accum.entry.Count++
		accum.entry.PriorityCounts[t.Priority]++
		accum.overdueSum += daysOverdue

		if assignee != nil {
			entry, ok := byUser[assignee.ID]
			if !ok {
				entry = &OverdueUserEntry{UserID: assignee.ID, Name: assignee.Name}
				byUser[assignee.ID] = entry
			}
			entry.Count++
			entry.Tasks = append(entry.Tasks, OverdueTaskSummary{
				ID:          t.ID,
				Title:       t.Title,
				Priority:    t.Priority,
				Deadline:    t.Deadline,
				DaysOverdue: daysOverdue,
			})
		}
	}

	analysis := &OverdueAnalysis{TotalOverdue: len(tasks)}
	for _, accum := range byDept {
		if accum.entry.Count > 0 {
			accum.entry.AvgDaysOverdue = accum.overdueSum / float64(accum.entry.Count)
		}
		analysis.ByDepartment = append(analysis.ByDepartment, accum.entry)
	}
	sort.Slice(analysis.ByDepartment, func(i, j int) bool {
		return analysis.ByDepartment[i].Department < analysis.ByDepartment[j].Department
	})

	for _, entry := range byUser {
		analysis.ByUser = append(analysis.ByUser, *entry)
	}
	sort.Slice(analysis.ByUser, func(i, j int) bool {
		if analysis.ByUser[i].Count != analysis.ByUser[j].Count {
			return analysis.ByUser[i].Count > analysis.ByUser[j].Count
		}
		return analysis.ByUser[i].UserID < analysis.ByUser[j].UserID
	})

	return analysis, nil
}

// StatusCount is a per-status count inside a priority group.
type StatusCount struct {
	Status models.TaskStatus `json:"status"`
	Count  int               `json:"count"`
}

// PriorityGroup is the per-priority slice of the priority distribution.
type PriorityGroup struct {
	Priority models.TaskPriority `json:"priority"`
	Total    int                 `json:"total"`
	Statuses []StatusCount       `json:"statuses"`
}

// PriorityDistribution counts tasks by (priority, status) and regroups the
// result per priority with a nested status breakdown.
func (s *AnalyticsService) PriorityDistribution() ([]PriorityGroup, error) {
	tasks, err := s.taskRepo.FindAll()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tasks: %w", err)
	}

	counts := make(map[models.TaskPriority]map[models.TaskStatus]int)
	for _, t := range tasks {
		if counts[t.Priority] == nil {
			counts[t.Priority] = make(map[models.TaskStatus]int)
		}
		counts[t.Priority][t.Status]++
	}

	priorities := []models.TaskPriority{models.TaskPriorityHigh, models.TaskPriorityMedium, models.TaskPriorityLow}
	statuses := []models.TaskStatus{
		models.TaskStatusPending,
		models.TaskStatusInProgress,
		models.TaskStatusCompleted,
		models.TaskStatusArchived,
	}

	groups := make([]PriorityGroup, 0, len(priorities))
	for _, p := range priorities {
		byStatus, ok := counts[p]
		if !ok {
			continue
		}
		group := PriorityGroup{Priority: p}
		for _, st := range statuses {
			if n := byStatus[st]; n > 0 {
				group.Statuses = append(group.Statuses, StatusCount{Status: st, Count: n})
				group.Total += n
			}
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// joinAssignees batch-fetches the users referenced by the tasks' assignees.
func (s *AnalyticsService) joinAssignees(tasks []models.Task) (map[uint64]models.User, error) {
	seen := make(map[uint64]struct{})
	ids := make([]uint64, 0)
	for _, t := range tasks {
		if t.AssigneeID == nil {
			continue
		}
		if _, ok := seen[*t.AssigneeID]; ok {
			continue
		}
		seen[*t.AssigneeID] = struct{}{}
		ids = append(ids, *t.AssigneeID)
	}

	users, err := s.userRepo.FindByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assignees: %w", err)
	}
	return users, nil
}

// avgCompletionDays averages completedAt-createdAt in days over the tasks
// matching the filter. Returns 0 when nothing matches.
func avgCompletionDays(tasks []models.Task, match func(models.Task) bool) float64 {
	var sum float64
	var n int
	for _, t := range tasks {
		if t.CompletedAt == nil || t.AssigneeID == nil || !match(t) {
			continue
		}
		sum += t.CompletedAt.Sub(t.CreatedAt).Hours() / hoursPerDay
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func validateWindow(period TrendPeriod, count int) error {
	switch period {
	case PeriodDay, PeriodWeek, PeriodMonth:
	default:
		return ErrInvalidPeriod
	}
	if count < 1 {
		return ErrInvalidCount
	}
	return nil
}

// windowStart returns the start of the oldest bucket in the window, so the
// fetch covers exactly the rows the bucket keys can hold.
func windowStart(period TrendPeriod, count int, now time.Time) time.Time {
	switch period {
	case PeriodWeek:
		ref := now.AddDate(0, 0, -7*(count-1))
		// Back up to the Monday opening the ISO week.
		ref = ref.AddDate(0, 0, -((int(ref.Weekday()) + 6) % 7))
		return time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, now.Location())
	case PeriodMonth:
		return monthBucketStart(now, count-1)
	default:
		ref := now.AddDate(0, 0, -(count - 1))
		return time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, now.Location())
	}
}

// windowKeys returns the bucket keys covering the window in chronological
// order, oldest first, ending at the bucket containing now.
func windowKeys(period TrendPeriod, count int, now time.Time) []string {
	keys := make([]string, 0, count)
	for i := count - 1; i >= 0; i-- {
		var ref time.Time
		switch period {
		case PeriodWeek:
			ref = now.AddDate(0, 0, -7*i)
		case PeriodMonth:
			ref = monthBucketStart(now, i)
		default:
			ref = now.AddDate(0, 0, -i)
		}
		keys = append(keys, bucketKey(ref, period))
	}
	return keys
}

// monthBucketStart returns the first day of the month monthsBack before now's
// month. Anchoring to day 1 keeps AddDate-style normalization (Feb 31 turning
// into Mar 3) out of the bucket sequence when now falls on day 29-31.
func monthBucketStart(now time.Time, monthsBack int) time.Time {
	return time.Date(now.Year(), now.Month()-time.Month(monthsBack), 1, 0, 0, 0, 0, now.Location())
}

// bucketKey formats a timestamp as its period bucket label.
func bucketKey(t time.Time, period TrendPeriod) string {
	switch period {
	case PeriodWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case PeriodMonth:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}
