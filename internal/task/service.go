package task

import (
	"context"
	"time"

	"github.com/google/uuid"

	"solstice/internal/events"
	"solstice/internal/model"
)

type Service struct {
	repo   TaskRepository
	events Emitter
	now    func() time.Time
}

type noopEmitter struct{}

func (noopEmitter) Emit(events.Event) {}

// NewService wires the repository and an optional emitter; nil disables events.
func NewService(repo TaskRepository, emitter Emitter) *Service {
	if emitter == nil {
		emitter = noopEmitter{}
	}
	return &Service{
		repo:   repo,
		events: emitter,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Create(ctx context.Context, title string) (model.Task, error) {
	valid, err := ValidateTitle(title)
	if err != nil {
		return model.Task{}, err
	}
	t, err := s.repo.Create(ctx, valid)
	if err != nil {
		return model.Task{}, err
	}
	s.emit(events.TaskCreated, t.ID, &t)
	return t, nil
}

func (s *Service) List(ctx context.Context) ([]model.Task, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (model.Task, error) {
	return s.repo.Get(ctx, id)
}

// Patch validates a supplied title and applies the patch. A patch with no
// fields is allowed and only refreshes updated_at.
func (s *Service) Patch(ctx context.Context, id uuid.UUID, p model.TaskPatch) (model.Task, error) {
	if p.Title != nil {
		valid, err := ValidateTitle(*p.Title)
		if err != nil {
			return model.Task{}, err
		}
		p.Title = &valid
	}
	t, err := s.repo.Patch(ctx, id, p)
	if err != nil {
		return model.Task{}, err
	}
	s.emit(events.TaskUpdated, t.ID, &t)
	return t, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.emit(events.TaskDeleted, id, nil)
	return nil
}

func (s *Service) emit(typ events.Type, id uuid.UUID, t *model.Task) {
	s.events.Emit(events.Event{Type: typ, TaskID: id, Task: t, At: s.now()})
}
