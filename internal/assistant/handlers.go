package assistant

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aashrith/task-away-assistant/internal/intent"
	"github.com/aashrith/task-away-assistant/internal/tasks"
)

const (
	actionMarkDone = "marking as done"
	actionDelete   = "deleting"
	actionRename   = "renaming"
	actionUpdate   = "updating"

	defaultTopLimit = 3
	maxTopLimit     = intent.MaxLimit
)

// vanished reports a task that resolved but disappeared before the mutation.
func vanished(id string) error {
	return fmt.Errorf("%w: task %s no longer exists", ErrInternal, id)
}

func storeFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}

const bulkConcurrency = 4

type addResult struct {
	task    tasks.Task
	created bool
	message string
}

func (d *Dispatcher) addTask(ctx context.Context, cmd intent.Command, ec *ExecutionContext) (Outcome, error) {
	titles := append([]string{cmd.Title}, cmd.AdditionalTitles...)
	if len(titles) == 1 {
		res, err := d.addOne(ctx, cmd, cmd.Title, ec)
		if err != nil {
			return Outcome{}, err
		}
		if !res.created {
			return clarify(res.message), nil
		}
		ec.SetLastAffected(res.task.ID)
		return respond(res.message), nil
	}

	// Slots are claimed and filled in title order. Refusals fall on the
	// trailing titles and the store keeps the submitted order.
	reservations := make([]*Reservation, len(titles))
	results := make([]addResult, len(titles))
	defer func() {
		for _, r := range reservations {
			r.Release()
		}
	}()
	for i, title := range titles {
		r, refusal, err := d.reserve(ctx, title, ec)
		if err != nil {
			return Outcome{}, err
		}
		reservations[i] = r
		results[i].message = refusal
	}

	lines := make([]string, 0, len(titles))
	for i, title := range titles {
		if reservations[i] != nil {
			created, err := d.insert(ctx, cmd, title)
			reservations[i].Release()
			if err != nil {
				return Outcome{}, err
			}
			results[i] = created
			ec.SetLastAffected(created.task.ID)
		}
		lines = append(lines, results[i].message)
	}
	return respond(strings.Join(lines, "\n")), nil
}

// addOne reserves through the guard, then inserts. A refusal is not an error.
func (d *Dispatcher) addOne(ctx context.Context, cmd intent.Command, title string, ec *ExecutionContext) (addResult, error) {
	reservation, refusal, err := d.reserve(ctx, title, ec)
	if err != nil {
		return addResult{}, err
	}
	if reservation == nil {
		return addResult{message: refusal}, nil
	}
	defer reservation.Release()
	return d.insert(ctx, cmd, title)
}

// reserve returns either a held slot or the refusal message for title.
func (d *Dispatcher) reserve(ctx context.Context, title string, ec *ExecutionContext) (*Reservation, string, error) {
	reservation, err := d.guard.Reserve(ctx, ec)
	if err != nil {
		var refusal *GuardrailError
		if errors.As(err, &refusal) {
			d.observer.ObserveGuardrail(refusal.Limit)
			d.logger.Info("add refused", zap.String("limit", refusal.Limit), zap.String("title", title))
			return nil, refusal.Message, nil
		}
		return nil, "", storeFailure("reserve", err)
	}
	return reservation, "", nil
}

func (d *Dispatcher) insert(ctx context.Context, cmd intent.Command, title string) (addResult, error) {
	task := tasks.Task{
		Title:       title,
		Description: cmd.Description,
		Priority:    cmd.Priority,
		DueDate:     cmd.DueDate,
		Source:      tasks.SourceAssistant,
	}
	created, err := d.store.Add(ctx, task)
	if err != nil {
		return addResult{}, storeFailure("add task", err)
	}
	return addResult{task: created, created: true, message: TaskCreatedMessage(created.Title)}, nil
}

func (d *Dispatcher) listTasks(ctx context.Context, _ intent.Command, _ *ExecutionContext) (Outcome, error) {
	all, err := d.store.List(ctx)
	if err != nil {
		return Outcome{}, storeFailure("list tasks", err)
	}
	return respond(d.composer.TaskList(all)), nil
}

func (d *Dispatcher) listOverdueTasks(ctx context.Context, _ intent.Command, _ *ExecutionContext) (Outcome, error) {
	all, err := d.store.List(ctx)
	if err != nil {
		return Outcome{}, storeFailure("list tasks", err)
	}
	now := d.now()
	overdue := make([]tasks.Task, 0, len(all))
	for _, t := range all {
		if t.Overdue(now) {
			overdue = append(overdue, t)
		}
	}
	return respond(d.composer.OverdueList(overdue)), nil
}

func (d *Dispatcher) listTopPriorities(ctx context.Context, cmd intent.Command, _ *ExecutionContext) (Outcome, error) {
	all, err := d.store.List(ctx)
	if err != nil {
		return Outcome{}, storeFailure("list tasks", err)
	}
	limit := cmd.Limit
	if limit <= 0 {
		limit = defaultTopLimit
	}
	if limit > maxTopLimit {
		limit = maxTopLimit
	}
	return respond(d.composer.TopPriorityList(TopPriorities(all, cmd.Timeframe, d.now(), d.composer.Location(), limit))), nil
}

// TopPriorities keeps open tasks due within timeframe, ordered by priority,
// then due date, then store order. "this week" runs Sunday through Saturday;
// any other timeframe means today.
func TopPriorities(all []tasks.Task, timeframe string, now time.Time, loc *time.Location, limit int) []tasks.Task {
	start, end := timeframeWindow(timeframe, now, loc)
	out := make([]tasks.Task, 0, len(all))
	for _, t := range all {
		if t.Completed() || t.DueDate == nil {
			continue
		}
		if t.DueDate.Before(start) || !t.DueDate.Before(end) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		return a.DueDate.Before(*b.DueDate)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// timeframeWindow returns the half-open interval [start, end).
func timeframeWindow(timeframe string, now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	if timeframe == "this week" {
		start := day.AddDate(0, 0, -int(now.Weekday()))
		return start, start.AddDate(0, 0, 7)
	}
	return day, day.AddDate(0, 0, 1)
}

func (d *Dispatcher) markTaskDone(ctx context.Context, cmd intent.Command, ec *ExecutionContext) (Outcome, error) {
	res, err := d.resolver.Resolve(ctx, cmd.TaskIdentifier, actionMarkDone, ec)
	if err != nil {
		return Outcome{}, storeFailure("resolve", err)
	}
	if res.Kind != Resolved {
		return clarify(res.Message), nil
	}

	task := res.Task
	task.Status = tasks.StatusCompleted
	updated, err := d.store.Update(ctx, task)
	if errors.Is(err, tasks.ErrNotFound) {
		return Outcome{}, vanished(task.ID)
	}
	if err != nil {
		return Outcome{}, storeFailure("update task", err)
	}
	ec.SetLastAffected(updated.ID)
	return respond(TaskCompletedMessage(updated.Title)), nil
}

func (d *Dispatcher) deleteTask(ctx context.Context, cmd intent.Command, ec *ExecutionContext) (Outcome, error) {
	res, err := d.resolver.Resolve(ctx, cmd.TaskIdentifier, actionDelete, ec)
	if err != nil {
		return Outcome{}, storeFailure("resolve", err)
	}
	if res.Kind != Resolved {
		return clarify(res.Message), nil
	}

	ec.SetLastAffected(res.Task.ID)
	deleted, err := d.store.Delete(ctx, res.Task.ID)
	if err != nil {
		return Outcome{}, storeFailure("delete task", err)
	}
	if !deleted {
		return Outcome{}, vanished(res.Task.ID)
	}
	return respond(TaskDeletedMessage), nil
}

func (d *Dispatcher) renameTask(ctx context.Context, cmd intent.Command, ec *ExecutionContext) (Outcome, error) {
	res, err := d.resolver.Resolve(ctx, cmd.TaskIdentifier, actionRename, ec)
	if err != nil {
		return Outcome{}, storeFailure("resolve", err)
	}
	if res.Kind != Resolved {
		return clarify(res.Message), nil
	}

	task := res.Task
	task.Title = cmd.NewTitle
	updated, err := d.store.Update(ctx, task)
	if errors.Is(err, tasks.ErrNotFound) {
		return Outcome{}, vanished(task.ID)
	}
	if err != nil {
		return Outcome{}, storeFailure("update task", err)
	}
	ec.SetLastAffected(updated.ID)
	return respond(TaskRenamedMessage(updated.Title)), nil
}

func (d *Dispatcher) updateTask(ctx context.Context, cmd intent.Command, ec *ExecutionContext) (Outcome, error) {
	res, err := d.resolver.Resolve(ctx, cmd.TaskIdentifier, actionUpdate, ec)
	if err != nil {
		return Outcome{}, storeFailure("resolve", err)
	}
	if res.Kind != Resolved {
		return clarify(res.Message), nil
	}

	task := res.Task
	var parts []string
	if cmd.Priority != "" {
		task.Priority = cmd.Priority
		parts = append(parts, "priority to "+string(cmd.Priority))
	}
	if cmd.DueDate != nil {
		due := *cmd.DueDate
		task.DueDate = &due
		parts = append(parts, "due date")
	}
	if cmd.Description != nil {
		desc := *cmd.Description
		task.Description = &desc
		parts = append(parts, "description")
	}

	updated, err := d.store.Update(ctx, task)
	if errors.Is(err, tasks.ErrNotFound) {
		return Outcome{}, vanished(task.ID)
	}
	if err != nil {
		return Outcome{}, storeFailure("update task", err)
	}
	ec.SetLastAffected(updated.ID)
	return respond(TaskUpdatedMessage(updated.Title, parts)), nil
}

// Bulk handlers count only mutations the store confirmed. A task removed by
// a concurrent turn is skipped.

func (d *Dispatcher) deleteAllTasks(ctx context.Context, _ intent.Command, _ *ExecutionContext) (Outcome, error) {
	n, err := d.deleteWhere(ctx, func(tasks.Task) bool { return true })
	if err != nil {
		return Outcome{}, err
	}
	return respond(DeletedAllMessage(n)), nil
}

func (d *Dispatcher) clearCompletedTasks(ctx context.Context, _ intent.Command, _ *ExecutionContext) (Outcome, error) {
	n, err := d.deleteWhere(ctx, tasks.Task.Completed)
	if err != nil {
		return Outcome{}, err
	}
	return respond(ClearedCompletedMessage(n)), nil
}

func (d *Dispatcher) completeAllTasks(ctx context.Context, _ intent.Command, _ *ExecutionContext) (Outcome, error) {
	n, err := d.updateWhere(ctx,
		func(t tasks.Task) bool { return !t.Completed() },
		func(t *tasks.Task) { t.Status = tasks.StatusCompleted },
	)
	if err != nil {
		return Outcome{}, err
	}
	return respond(CompletedAllMessage(n)), nil
}

func (d *Dispatcher) updateAllTasksPriority(ctx context.Context, cmd intent.Command, _ *ExecutionContext) (Outcome, error) {
	n, err := d.updateWhere(ctx,
		func(tasks.Task) bool { return true },
		func(t *tasks.Task) { t.Priority = cmd.Priority },
	)
	if err != nil {
		return Outcome{}, err
	}
	return respond(UpdatedAllPriorityMessage(cmd.Priority, n)), nil
}

func (d *Dispatcher) deleteWhere(ctx context.Context, match func(tasks.Task) bool) (int, error) {
	all, err := d.store.List(ctx)
	if err != nil {
		return 0, storeFailure("list tasks", err)
	}
	var count atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkConcurrency)
	for _, t := range all {
		if !match(t) {
			continue
		}
		g.Go(func() error {
			deleted, err := d.store.Delete(gctx, t.ID)
			if err != nil {
				return storeFailure("delete task", err)
			}
			if deleted {
				count.Add(1)
			}
			return nil
		})
	}
	err = g.Wait()
	return int(count.Load()), err
}

func (d *Dispatcher) updateWhere(ctx context.Context, match func(tasks.Task) bool, apply func(*tasks.Task)) (int, error) {
	all, err := d.store.List(ctx)
	if err != nil {
		return 0, storeFailure("list tasks", err)
	}
	var count atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkConcurrency)
	for _, t := range all {
		if !match(t) {
			continue
		}
		apply(&t)
		g.Go(func() error {
			if _, err := d.store.Update(gctx, t); err != nil {
				if errors.Is(err, tasks.ErrNotFound) {
					return nil
				}
				return storeFailure("update task", err)
			}
			count.Add(1)
			return nil
		})
	}
	err = g.Wait()
	return int(count.Load()), err
}
