package task

import (
	"context"

	"github.com/google/uuid"

	"solstice/internal/events"
	"solstice/internal/model"
)

// TaskRepository is the task store contract. Implementations return
// model.ErrNotFound for missing ids and *model.StorageError for anything
// the backing store rejects.
type TaskRepository interface {
	Create(ctx context.Context, title string) (model.Task, error)
	List(ctx context.Context) ([]model.Task, error)
	Get(ctx context.Context, id uuid.UUID) (model.Task, error)
	Patch(ctx context.Context, id uuid.UUID, p model.TaskPatch) (model.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Emitter receives change events after successful mutations.
type Emitter interface {
	Emit(ev events.Event)
}
