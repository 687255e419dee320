package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/taskhub/backend/internal/models"
	"github.com/taskhub/backend/internal/repository"
)

// recordingNotifier captures dispatched notifications instead of sending them.
type recordingNotifier struct {
	assigned []uint64
	reminded []uint64
	fail     bool
}

func (n *recordingNotifier) TaskAssigned(user models.User, task models.Task) error {
	if n.fail {
		return errors.New("smtp unavailable")
	}
	n.assigned = append(n.assigned, user.ID)
	return nil
}

func (n *recordingNotifier) DeadlineReminder(user models.User, task models.Task) error {
	if n.fail {
		return errors.New("smtp unavailable")
	}
	n.reminded = append(n.reminded, user.ID)
	return nil
}

// TaskServiceTestSuite defines the test suite for TaskService
type TaskServiceTestSuite struct {
	suite.Suite
	db       *gorm.DB
	service  *TaskService
	taskRepo repository.TaskRepository
	notifier *recordingNotifier
	admin    *models.User
	member   *models.User
}

// SetupTest runs before each test
func (suite *TaskServiceTestSuite) SetupTest() {
	var err error
	suite.db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.Require().NoError(err)

	err = suite.db.AutoMigrate(
		&models.User{},
		&models.Task{},
		&models.Comment{},
		&models.Attachment{},
	)
	suite.Require().NoError(err)

	suite.taskRepo = repository.NewTaskRepository(suite.db)
	suite.notifier = &recordingNotifier{}
	suite.service = NewTaskService(
		suite.taskRepo,
		repository.NewUserRepository(suite.db),
		suite.notifier,
		zap.NewNop(),
	)

	suite.admin = suite.seedUser("Admin", "admin@example.com", models.RoleAdmin)
	suite.member = suite.seedUser("Member", "member@example.com", models.RoleTeamMember)
}

// TearDownTest runs after each test
func (suite *TaskServiceTestSuite) TearDownTest() {
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.Close()
}

func (suite *TaskServiceTestSuite) seedUser(name, email string, role models.UserRole) *models.User {
	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: "hashedpassword",
		Role:         role,
		Active:       true,
	}
	suite.db.Create(user)
	return user
}

func (suite *TaskServiceTestSuite) seedTask(assigneeID *uint64, status models.TaskStatus) *models.Task {
	task := &models.Task{
		Title:      "Seeded Task",
		Status:     status,
		Priority:   models.TaskPriorityMedium,
		CreatorID:  suite.admin.ID,
		AssigneeID: assigneeID,
		Deadline:   time.Now().AddDate(0, 0, 7),
	}
	suite.db.Create(task)
	return task
}

// TestCreateTask_Success creates a pending task with defaults applied
func (suite *TaskServiceTestSuite) TestCreateTask_Success() {
	task, err := suite.service.CreateTask(suite.admin, CreateTaskInput{
		Title:    "Write report",
		Deadline: time.Now().AddDate(0, 0, 3),
		Tags:     []string{"reporting", "q2"},
	})

	suite.Require().NoError(err)
	assert.Equal(suite.T(), models.TaskStatusPending, task.Status)
	assert.Equal(suite.T(), models.TaskPriorityMedium, task.Priority)
	assert.Equal(suite.T(), suite.admin.ID, task.CreatorID)
	assert.Nil(suite.T(), task.CompletedAt)
	assert.Empty(suite.T(), suite.notifier.assigned)
}

// TestCreateTask_CompletedStampsTimestamp sets completedAt when a task is
// created already completed.
func (suite *TaskServiceTestSuite) TestCreateTask_CompletedStampsTimestamp() {
	task, err := suite.service.CreateTask(suite.admin, CreateTaskInput{
		Title:    "Retroactive task",
		Status:   models.TaskStatusCompleted,
		Deadline: time.Now().AddDate(0, 0, 1),
	})

	suite.Require().NoError(err)
	suite.Require().NotNil(task.CompletedAt)
	assert.False(suite.T(), task.CompletedAt.Before(task.CreatedAt))
}

// TestCreateTask_NotifiesAssignee dispatches an assignment email
func (suite *TaskServiceTestSuite) TestCreateTask_NotifiesAssignee() {
	_, err := suite.service.CreateTask(suite.admin, CreateTaskInput{
		Title:      "Assigned task",
		AssigneeID: &suite.member.ID,
		Deadline:   time.Now().AddDate(0, 0, 3),
	})

	suite.Require().NoError(err)
	assert.Equal(suite.T(), []uint64{suite.member.ID}, suite.notifier.assigned)
}

// TestCreateTask_NotificationFailureDoesNotFailCreate keeps the created task
// even when the email cannot be sent.
func (suite *TaskServiceTestSuite) TestCreateTask_NotificationFailureDoesNotFailCreate() {
	suite.notifier.fail = true

	task, err := suite.service.CreateTask(suite.admin, CreateTaskInput{
		Title:      "Assigned task",
		AssigneeID: &suite.member.ID,
		Deadline:   time.Now().AddDate(0, 0, 3),
	})

	suite.Require().NoError(err)
	assert.NotZero(suite.T(), task.ID)
}

// TestCreateTask_ValidationErrors rejects bad input
func (suite *TaskServiceTestSuite) TestCreateTask_ValidationErrors() {
	_, err := suite.service.CreateTask(suite.admin, CreateTaskInput{
		Deadline: time.Now(),
	})
	assert.ErrorIs(suite.T(), err, ErrTitleRequired)

	_, err = suite.service.CreateTask(suite.admin, CreateTaskInput{
		Title: "No deadline",
	})
	assert.ErrorIs(suite.T(), err, ErrDeadlineRequired)

	_, err = suite.service.CreateTask(suite.admin, CreateTaskInput{
		Title:    "Bad status",
		Status:   "doing",
		Deadline: time.Now(),
	})
	assert.ErrorIs(suite.T(), err, ErrInvalidStatus)

	unknown := uint64(9999)
	_, err = suite.service.CreateTask(suite.admin, CreateTaskInput{
		Title:      "Ghost assignee",
		AssigneeID: &unknown,
		Deadline:   time.Now(),
	})
	assert.ErrorIs(suite.T(), err, ErrInvalidAssignee)
}

// TestListTasks_MemberScopedToOwnAssignments hides other users' tasks from
// team members.
func (suite *TaskServiceTestSuite) TestListTasks_MemberScopedToOwnAssignments() {
	mine := suite.seedTask(&suite.member.ID, models.TaskStatusPending)
	suite.seedTask(&suite.admin.ID, models.TaskStatusPending)
	suite.seedTask(nil, models.TaskStatusPending)

	tasks, total, err := suite.service.ListTasks(suite.member, ListTasksInput{})

	suite.Require().NoError(err)
	assert.Equal(suite.T(), int64(1), total)
	suite.Require().Len(tasks, 1)
	assert.Equal(suite.T(), mine.ID, tasks[0].ID)
}

// TestListTasks_AdminSeesAll returns every task for admins
func (suite *TaskServiceTestSuite) TestListTasks_AdminSeesAll() {
	suite.seedTask(&suite.member.ID, models.TaskStatusPending)
	suite.seedTask(nil, models.TaskStatusInProgress)

	_, total, err := suite.service.ListTasks(suite.admin, ListTasksInput{})

	suite.Require().NoError(err)
	assert.Equal(suite.T(), int64(2), total)
}

// TestGetTask_MemberForbiddenOnForeignTask denies reads of unassigned tasks
func (suite *TaskServiceTestSuite) TestGetTask_MemberForbiddenOnForeignTask() {
	foreign := suite.seedTask(&suite.admin.ID, models.TaskStatusPending)

	_, err := suite.service.GetTask(suite.member, foreign.ID)
	assert.ErrorIs(suite.T(), err, ErrTaskForbidden)
}

// TestUpdateTask_MemberPatchNarrowedToStatus drops every field except status
// from a team member's patch.
func (suite *TaskServiceTestSuite) TestUpdateTask_MemberPatchNarrowedToStatus() {
	task := suite.seedTask(&suite.member.ID, models.TaskStatusPending)

	newTitle := "Hijacked title"
	newPriority := models.TaskPriorityHigh
	newStatus := models.TaskStatusInProgress

	updated, err := suite.service.UpdateTask(suite.member, task.ID, TaskPatch{
		Title:    &newTitle,
		Priority: &newPriority,
		Status:   &newStatus,
	})

	suite.Require().NoError(err)
	assert.Equal(suite.T(), models.TaskStatusInProgress, updated.Status)
	assert.Equal(suite.T(), "Seeded Task", updated.Title)
	assert.Equal(suite.T(), models.TaskPriorityMedium, updated.Priority)
}

// TestUpdateTask_MemberForbiddenOnForeignTask rejects patches from non-assignees
func (suite *TaskServiceTestSuite) TestUpdateTask_MemberForbiddenOnForeignTask() {
	foreign := suite.seedTask(&suite.admin.ID, models.TaskStatusPending)

	status := models.TaskStatusCompleted
	_, err := suite.service.UpdateTask(suite.member, foreign.ID, TaskPatch{Status: &status})
	assert.ErrorIs(suite.T(), err, ErrTaskForbidden)
}

// TestUpdateTask_MemberCannotArchive keeps archiving admin-only
func (suite *TaskServiceTestSuite) TestUpdateTask_MemberCannotArchive() {
	task := suite.seedTask(&suite.member.ID, models.TaskStatusPending)

	status := models.TaskStatusArchived
	_, err := suite.service.UpdateTask(suite.member, task.ID, TaskPatch{Status: &status})
	assert.ErrorIs(suite.T(), err, ErrArchiveForbidden)
}

// TestUpdateTask_CompletionStampsAndClears stamps completedAt when entering
// completed and clears it when leaving.
func (suite *TaskServiceTestSuite) TestUpdateTask_CompletionStampsAndClears() {
	task := suite.seedTask(&suite.member.ID, models.TaskStatusInProgress)

	completed := models.TaskStatusCompleted
	updated, err := suite.service.UpdateTask(suite.member, task.ID, TaskPatch{Status: &completed})
	suite.Require().NoError(err)
	suite.Require().NotNil(updated.CompletedAt)

	reopened := models.TaskStatusInProgress
	updated, err = suite.service.UpdateTask(suite.member, task.ID, TaskPatch{Status: &reopened})
	suite.Require().NoError(err)
	assert.Nil(suite.T(), updated.CompletedAt)
}

// TestUpdateTask_ReassignmentNotifiesNewAssignee emails only on an actual change
func (suite *TaskServiceTestSuite) TestUpdateTask_ReassignmentNotifiesNewAssignee() {
	task := suite.seedTask(&suite.admin.ID, models.TaskStatusPending)

	_, err := suite.service.UpdateTask(suite.admin, task.ID, TaskPatch{AssigneeID: &suite.member.ID})
	suite.Require().NoError(err)
	assert.Equal(suite.T(), []uint64{suite.member.ID}, suite.notifier.assigned)

	// Same assignee again: no second email.
	_, err = suite.service.UpdateTask(suite.admin, task.ID, TaskPatch{AssigneeID: &suite.member.ID})
	suite.Require().NoError(err)
	assert.Len(suite.T(), suite.notifier.assigned, 1)
}

// TestUpdateTask_ClearAssignee removes the assignee
func (suite *TaskServiceTestSuite) TestUpdateTask_ClearAssignee() {
	task := suite.seedTask(&suite.member.ID, models.TaskStatusPending)

	updated, err := suite.service.UpdateTask(suite.admin, task.ID, TaskPatch{ClearAssignee: true})

	suite.Require().NoError(err)
	assert.Nil(suite.T(), updated.AssigneeID)
}

// TestDeleteTask_RemovesTaskAndChildren hard deletes the task with its
// comments, and a later read misses.
func (suite *TaskServiceTestSuite) TestDeleteTask_RemovesTaskAndChildren() {
	task := suite.seedTask(&suite.member.ID, models.TaskStatusPending)
	_, err := suite.service.AddComment(suite.member, task.ID, "on it")
	suite.Require().NoError(err)

	err = suite.service.DeleteTask(task.ID)
	suite.Require().NoError(err)

	_, err = suite.service.GetTask(suite.admin, task.ID)
	assert.ErrorIs(suite.T(), err, ErrTaskNotFound)

	var commentCount int64
	suite.db.Model(&models.Comment{}).Where("task_id = ?", task.ID).Count(&commentCount)
	assert.Equal(suite.T(), int64(0), commentCount)
}

// TestDeleteTask_NotFound surfaces a missing task
func (suite *TaskServiceTestSuite) TestDeleteTask_NotFound() {
	err := suite.service.DeleteTask(9999)
	assert.ErrorIs(suite.T(), err, ErrTaskNotFound)
}

// TestAddComment_ForbiddenNotPersisted rejects comments on unreadable tasks
// and leaves nothing behind.
func (suite *TaskServiceTestSuite) TestAddComment_ForbiddenNotPersisted() {
	foreign := suite.seedTask(&suite.admin.ID, models.TaskStatusPending)

	_, err := suite.service.AddComment(suite.member, foreign.ID, "drive-by")
	assert.ErrorIs(suite.T(), err, ErrTaskForbidden)

	var commentCount int64
	suite.db.Model(&models.Comment{}).Count(&commentCount)
	assert.Equal(suite.T(), int64(0), commentCount)
}

// TestAddComment_EmptyText rejects blank comments
func (suite *TaskServiceTestSuite) TestAddComment_EmptyText() {
	task := suite.seedTask(&suite.member.ID, models.TaskStatusPending)

	_, err := suite.service.AddComment(suite.member, task.ID, "")
	assert.ErrorIs(suite.T(), err, ErrCommentRequired)
}

// TestTaskStats_ZeroFilledAndScoped reports every status and respects
// member visibility.
func (suite *TaskServiceTestSuite) TestTaskStats_ZeroFilledAndScoped() {
	suite.seedTask(&suite.member.ID, models.TaskStatusPending)
	suite.seedTask(&suite.member.ID, models.TaskStatusPending)
	suite.seedTask(&suite.admin.ID, models.TaskStatusInProgress)

	counts, err := suite.service.TaskStats(suite.member)

	suite.Require().NoError(err)
	assert.Equal(suite.T(), int64(2), counts[models.TaskStatusPending])
	assert.Equal(suite.T(), int64(0), counts[models.TaskStatusInProgress])
	assert.Equal(suite.T(), int64(0), counts[models.TaskStatusCompleted])
	assert.Equal(suite.T(), int64(0), counts[models.TaskStatusArchived])
}

// TestCalendarTasks_FiltersByMonth returns only tasks due inside the month
func (suite *TaskServiceTestSuite) TestCalendarTasks_FiltersByMonth() {
	inMonth := &models.Task{
		Title:      "June task",
		Status:     models.TaskStatusPending,
		Priority:   models.TaskPriorityMedium,
		CreatorID:  suite.admin.ID,
		AssigneeID: &suite.member.ID,
		Deadline:   time.Date(2026, 6, 20, 10, 0, 0, 0, time.UTC),
	}
	suite.db.Create(inMonth)
	outOfMonth := &models.Task{
		Title:      "July task",
		Status:     models.TaskStatusPending,
		Priority:   models.TaskPriorityMedium,
		CreatorID:  suite.admin.ID,
		AssigneeID: &suite.member.ID,
		Deadline:   time.Date(2026, 7, 2, 10, 0, 0, 0, time.UTC),
	}
	suite.db.Create(outOfMonth)

	tasks, err := suite.service.CalendarTasks(suite.member, 2026, time.June)

	suite.Require().NoError(err)
	suite.Require().Len(tasks, 1)
	assert.Equal(suite.T(), inMonth.ID, tasks[0].ID)
}

func TestTaskServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TaskServiceTestSuite))
}
