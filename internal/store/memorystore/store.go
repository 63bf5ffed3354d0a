// Package memorystore keeps tasks in process memory. It honours the same
// contract as the SQL store and is meant for tests and throwaway runs.
package memorystore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"solstice/internal/model"
)

type TaskStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]model.Task
	now   func() time.Time
}

func NewTaskStore() *TaskStore {
	return NewTaskStoreWithClock(nil)
}

func NewTaskStoreWithClock(now func() time.Time) *TaskStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &TaskStore{
		tasks: make(map[uuid.UUID]model.Task),
		now:   now,
	}
}

func (s *TaskStore) Create(ctx context.Context, title string) (model.Task, error) {
	if err := ctx.Err(); err != nil {
		return model.Task{}, model.Fault("create", err)
	}
	now := s.now().UTC().Round(0)
	t := model.Task{
		ID:        uuid.New(),
		Title:     title,
		Completed: false,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t
	return t, nil
}

func (s *TaskStore) List(ctx context.Context) ([]model.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.Fault("list", err)
	}
	s.mu.RLock()
	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return out, nil
}

func (s *TaskStore) Get(ctx context.Context, id uuid.UUID) (model.Task, error) {
	if err := ctx.Err(); err != nil {
		return model.Task{}, model.Fault("get", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return model.Task{}, model.ErrNotFound
	}
	return t, nil
}

func (s *TaskStore) Patch(ctx context.Context, id uuid.UUID, p model.TaskPatch) (model.Task, error) {
	if err := ctx.Err(); err != nil {
		return model.Task{}, model.Fault("patch", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return model.Task{}, model.ErrNotFound
	}

	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if now := s.now().UTC().Round(0); now.After(t.UpdatedAt) {
		t.UpdatedAt = now
	}

	s.tasks[id] = t
	return t, nil
}

func (s *TaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return model.Fault("delete", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return model.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *TaskStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *TaskStore) Migrate(context.Context) error {
	return nil
}

func (s *TaskStore) Close() error {
	return nil
}
