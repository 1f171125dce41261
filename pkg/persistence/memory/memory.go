// Package memory provides the in-memory persistence implementation used for
// tests and single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/carelane/careflow/pkg/models"
	"github.com/carelane/careflow/pkg/persistence"
)

// Persistence implements persistence.Persistence with mutex-guarded maps.
type Persistence struct {
	workflows  *workflowRepository
	executions *executionRepository
	tasks      *taskRepository
	reminders  *reminderRepository
	approvals  *approvalRepository
	rules      *ruleRepository
	schedules  *scheduleRepository
}

// NewPersistence creates an empty in-memory persistence layer.
func NewPersistence() *Persistence {
	return &Persistence{
		workflows:  &workflowRepository{store: newStore[models.Workflow]()},
		executions: &executionRepository{store: newStore[models.WorkflowExecution]()},
		tasks:      &taskRepository{store: newStore[models.Task]()},
		reminders:  &reminderRepository{store: newStore[models.Reminder]()},
		approvals:  &approvalRepository{store: newStore[models.Approval]()},
		rules:      &ruleRepository{store: newStore[models.AutomationRule]()},
		schedules:  &scheduleRepository{store: newStore[models.Schedule]()},
	}
}

func (p *Persistence) Workflows() persistence.WorkflowRepository   { return p.workflows }
func (p *Persistence) Executions() persistence.ExecutionRepository { return p.executions }
func (p *Persistence) Tasks() persistence.TaskRepository           { return p.tasks }
func (p *Persistence) Reminders() persistence.ReminderRepository   { return p.reminders }
func (p *Persistence) Approvals() persistence.ApprovalRepository   { return p.approvals }
func (p *Persistence) Rules() persistence.RuleRepository           { return p.rules }
func (p *Persistence) Schedules() persistence.ScheduleRepository   { return p.schedules }

func (p *Persistence) HealthCheck(_ context.Context) error { return nil }
func (p *Persistence) Close(_ context.Context) error       { return nil }

// store holds one entity kind keyed by id. Values are copied on the way in
// and out so callers never share the stored struct itself.
type store[T any] struct {
	mu    sync.RWMutex
	items map[string]*T
}

func newStore[T any]() *store[T] {
	return &store[T]{items: make(map[string]*T)}
}

func (s *store[T]) save(id string, item *T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *item
	s.items[id] = &copied
}

func (s *store[T]) get(id string, notFound error) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, notFound
	}

	copied := *item

	return &copied, nil
}

func (s *store[T]) list(filter func(*T) bool) []*T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*T, 0, len(s.items))

	for _, item := range s.items {
		if filter == nil || filter(item) {
			copied := *item
			result = append(result, &copied)
		}
	}

	return result
}

func (s *store[T]) delete(id string, notFound error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return notFound
	}

	delete(s.items, id)

	return nil
}

type workflowRepository struct {
	*store[models.Workflow]
}

func (r *workflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	r.save(workflow.ID, workflow)

	return nil
}

func (r *workflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	return r.get(id, persistence.ErrWorkflowNotFound)
}

func (r *workflowRepository) List(_ context.Context) ([]*models.Workflow, error) {
	workflows := r.list(nil)
	sort.Slice(workflows, func(i, j int) bool { return workflows[i].ID < workflows[j].ID })

	return workflows, nil
}

func (r *workflowRepository) Delete(_ context.Context, id string) error {
	return r.delete(id, persistence.ErrWorkflowNotFound)
}

type executionRepository struct {
	*store[models.WorkflowExecution]
}

func (r *executionRepository) Save(_ context.Context, execution *models.WorkflowExecution) error {
	r.save(execution.ID, execution)

	return nil
}

func (r *executionRepository) GetByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	return r.get(id, persistence.ErrExecutionNotFound)
}

func (r *executionRepository) ListByWorkflow(_ context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	executions := r.list(func(e *models.WorkflowExecution) bool { return e.WorkflowID == workflowID })
	sort.Slice(executions, func(i, j int) bool { return executions[i].StartTime.Before(executions[j].StartTime) })

	return executions, nil
}

func (r *executionRepository) DeleteTerminalBefore(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0

	for id, execution := range r.items {
		if execution.Terminal() && execution.EndTime != nil && execution.EndTime.Before(cutoff) {
			delete(r.items, id)

			removed++
		}
	}

	return removed, nil
}

type taskRepository struct {
	*store[models.Task]
}

func (r *taskRepository) Save(_ context.Context, task *models.Task) error {
	r.save(task.ID, task)

	return nil
}

func (r *taskRepository) GetByID(_ context.Context, id string) (*models.Task, error) {
	return r.get(id, persistence.ErrTaskNotFound)
}

func (r *taskRepository) List(_ context.Context) ([]*models.Task, error) {
	tasks := r.list(nil)
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })

	return tasks, nil
}

func (r *taskRepository) ListByStatus(_ context.Context, status models.TaskStatus) ([]*models.Task, error) {
	tasks := r.list(func(t *models.Task) bool { return t.Status == status })
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })

	return tasks, nil
}

type reminderRepository struct {
	*store[models.Reminder]
}

func (r *reminderRepository) Save(_ context.Context, reminder *models.Reminder) error {
	r.save(reminder.ID, reminder)

	return nil
}

func (r *reminderRepository) GetByID(_ context.Context, id string) (*models.Reminder, error) {
	return r.get(id, persistence.ErrReminderNotFound)
}

func (r *reminderRepository) List(_ context.Context) ([]*models.Reminder, error) {
	reminders := r.list(nil)
	sort.Slice(reminders, func(i, j int) bool { return reminders[i].TriggerDate.Before(reminders[j].TriggerDate) })

	return reminders, nil
}

func (r *reminderRepository) ListDue(_ context.Context, now time.Time) ([]*models.Reminder, error) {
	reminders := r.list(func(rm *models.Reminder) bool { return rm.IsDue(now) })
	sort.Slice(reminders, func(i, j int) bool { return reminders[i].TriggerDate.Before(reminders[j].TriggerDate) })

	return reminders, nil
}

func (r *reminderRepository) MarkSent(_ context.Context, id string, sentAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reminder, ok := r.items[id]
	if !ok {
		return false, persistence.ErrReminderNotFound
	}

	if reminder.Status != models.ReminderStatusPending {
		return false, nil
	}

	reminder.Status = models.ReminderStatusSent
	reminder.SentDate = &sentAt

	return true, nil
}

func (r *reminderRepository) DeleteSentBefore(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0

	for id, reminder := range r.items {
		if reminder.Status == models.ReminderStatusSent && reminder.SentDate != nil && reminder.SentDate.Before(cutoff) {
			delete(r.items, id)

			removed++
		}
	}

	return removed, nil
}

type approvalRepository struct {
	*store[models.Approval]
}

func (r *approvalRepository) Save(_ context.Context, approval *models.Approval) error {
	r.save(approval.ID, approval)

	return nil
}

func (r *approvalRepository) GetByID(_ context.Context, id string) (*models.Approval, error) {
	return r.get(id, persistence.ErrApprovalNotFound)
}

func (r *approvalRepository) MarkDecided(_ context.Context, approval *models.Approval) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.items[approval.ID]
	if !ok {
		return false, persistence.ErrApprovalNotFound
	}

	if stored.Status != models.ApprovalStatusPending {
		return false, nil
	}

	copied := *approval
	r.items[approval.ID] = &copied

	return true, nil
}

func (r *approvalRepository) List(_ context.Context) ([]*models.Approval, error) {
	approvals := r.list(nil)
	sort.Slice(approvals, func(i, j int) bool { return approvals[i].CreatedAt.Before(approvals[j].CreatedAt) })

	return approvals, nil
}

type ruleRepository struct {
	*store[models.AutomationRule]
}

func (r *ruleRepository) Save(_ context.Context, rule *models.AutomationRule) error {
	r.save(rule.ID, rule)

	return nil
}

func (r *ruleRepository) GetByID(_ context.Context, id string) (*models.AutomationRule, error) {
	return r.get(id, persistence.ErrRuleNotFound)
}

func (r *ruleRepository) List(_ context.Context) ([]*models.AutomationRule, error) {
	rules := r.list(nil)
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })

	return rules, nil
}

func (r *ruleRepository) ListByTrigger(_ context.Context, trigger string) ([]*models.AutomationRule, error) {
	rules := r.list(func(rule *models.AutomationRule) bool {
		return rule.Trigger == trigger && rule.Status == models.RuleStatusActive
	})
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })

	return rules, nil
}

type scheduleRepository struct {
	*store[models.Schedule]
}

func (r *scheduleRepository) Save(_ context.Context, schedule *models.Schedule) error {
	r.save(schedule.ID, schedule)

	return nil
}

func (r *scheduleRepository) GetByID(_ context.Context, id string) (*models.Schedule, error) {
	return r.get(id, persistence.ErrScheduleNotFound)
}

func (r *scheduleRepository) List(_ context.Context) ([]*models.Schedule, error) {
	schedules := r.list(nil)
	sort.Slice(schedules, func(i, j int) bool { return schedules[i].ID < schedules[j].ID })

	return schedules, nil
}

func (r *scheduleRepository) ListDue(_ context.Context, now time.Time) ([]*models.Schedule, error) {
	schedules := r.list(func(s *models.Schedule) bool { return s.IsDue(now) })
	sort.Slice(schedules, func(i, j int) bool { return schedules[i].NextRun.Before(schedules[j].NextRun) })

	return schedules, nil
}
