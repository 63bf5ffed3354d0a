// Package storetest holds the behaviour every task store must share. Store
// packages call Run from their own tests with a constructor for a fresh,
// empty store.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"solstice/internal/model"
)

type Store interface {
	Create(ctx context.Context, title string) (model.Task, error)
	List(ctx context.Context) ([]model.Task, error)
	Get(ctx context.Context, id uuid.UUID) (model.Task, error)
	Patch(ctx context.Context, id uuid.UUID, p model.TaskPatch) (model.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Factory returns an empty store that reads time from clock.
type Factory func(t *testing.T, clock *Clock) Store

// Clock is a manually driven time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2026, 2, 25, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// SameTask reports whether a and b agree field for field.
func SameTask(a, b model.Task) bool {
	return a.ID == b.ID &&
		a.Title == b.Title &&
		a.Completed == b.Completed &&
		a.CreatedAt.Equal(b.CreatedAt) &&
		a.UpdatedAt.Equal(b.UpdatedAt)
}

func ptr[T any](v T) *T { return &v }

func Run(t *testing.T, newStore Factory) {
	t.Run("CreateDefaults", func(t *testing.T) { testCreateDefaults(t, newStore) })
	t.Run("CreateAcceptsEmptyTitle", func(t *testing.T) { testCreateEmptyTitle(t, newStore) })
	t.Run("GetAfterCreate", func(t *testing.T) { testGetAfterCreate(t, newStore) })
	t.Run("PatchCompleted", func(t *testing.T) { testPatchCompleted(t, newStore) })
	t.Run("PatchTitleKeepsCompleted", func(t *testing.T) { testPatchTitle(t, newStore) })
	t.Run("PatchWithoutFieldsRefreshesUpdatedAt", func(t *testing.T) { testEmptyPatch(t, newStore) })
	t.Run("PatchNeverMovesUpdatedAtBack", func(t *testing.T) { testClockBackwards(t, newStore) })
	t.Run("MissingIDsAreNotFound", func(t *testing.T) { testMissing(t, newStore) })
	t.Run("DeleteThenGet", func(t *testing.T) { testDelete(t, newStore) })
	t.Run("ListNewestFirst", func(t *testing.T) { testListOrder(t, newStore) })
	t.Run("ListEmpty", func(t *testing.T) { testListEmpty(t, newStore) })
	t.Run("ReadsAreIdempotent", func(t *testing.T) { testIdempotentReads(t, newStore) })
	t.Run("ConcurrentPatchesKeepBothFields", func(t *testing.T) { testConcurrentPatches(t, newStore) })
	t.Run("BuyMilkScenario", func(t *testing.T) { testScenario(t, newStore) })
}

func testCreateDefaults(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, NewClock())

	seen := make(map[uuid.UUID]bool)
	for i := 0; i < 5; i++ {
		task, err := s.Create(ctx, "write tests")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if task.Completed {
			t.Fatalf("expected completed=false")
		}
		if !task.CreatedAt.Equal(task.UpdatedAt) {
			t.Fatalf("created_at=%s updated_at=%s", task.CreatedAt, task.UpdatedAt)
		}
		if task.ID == uuid.Nil {
			t.Fatalf("expected non-nil id")
		}
		if seen[task.ID] {
			t.Fatalf("duplicate id %s", task.ID)
		}
		seen[task.ID] = true
	}
}

func testCreateEmptyTitle(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, NewClock())

	task, err := s.Create(ctx, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := s.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "" {
		t.Fatalf("title=%q", got.Title)
	}
}

func testGetAfterCreate(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, NewClock())

	created, err := s.Create(ctx, "buy milk")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !SameTask(got, created) {
		t.Fatalf("got=%+v want=%+v", got, created)
	}
}

func testPatchCompleted(t *testing.T, newStore Factory) {
	ctx := context.Background()
	clock := NewClock()
	s := newStore(t, clock)

	created, err := s.Create(ctx, "buy milk")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	clock.Advance(time.Second)

	patched, err := s.Patch(ctx, created.ID, model.TaskPatch{Completed: ptr(true)})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if !patched.Completed {
		t.Fatalf("expected completed=true")
	}
	if patched.ID != created.ID || patched.Title != created.Title || !patched.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("unexpected change: got=%+v was=%+v", patched, created)
	}
	if !patched.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("updated_at did not advance: %s -> %s", created.UpdatedAt, patched.UpdatedAt)
	}

	got, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !SameTask(got, patched) {
		t.Fatalf("persisted=%+v returned=%+v", got, patched)
	}
}

func testPatchTitle(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, NewClock())

	created, err := s.Create(ctx, "draft")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Patch(ctx, created.ID, model.TaskPatch{Completed: ptr(true)}); err != nil {
		t.Fatalf("patch completed: %v", err)
	}
	patched, err := s.Patch(ctx, created.ID, model.TaskPatch{Title: ptr("final")})
	if err != nil {
		t.Fatalf("patch title: %v", err)
	}
	if patched.Title != "final" || !patched.Completed {
		t.Fatalf("unexpected task: %+v", patched)
	}
}

func testEmptyPatch(t *testing.T, newStore Factory) {
	ctx := context.Background()
	clock := NewClock()
	s := newStore(t, clock)

	created, err := s.Create(ctx, "same")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	clock.Advance(time.Minute)

	patched, err := s.Patch(ctx, created.ID, model.TaskPatch{Title: ptr("same"), Completed: ptr(false)})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if !patched.UpdatedAt.Equal(created.UpdatedAt.Add(time.Minute)) {
		t.Fatalf("updated_at=%s want %s", patched.UpdatedAt, created.UpdatedAt.Add(time.Minute))
	}

	clock.Advance(time.Minute)
	patched2, err := s.Patch(ctx, created.ID, model.TaskPatch{})
	if err != nil {
		t.Fatalf("empty patch: %v", err)
	}
	if !patched2.UpdatedAt.After(patched.UpdatedAt) {
		t.Fatalf("empty patch did not refresh updated_at")
	}
}

func testClockBackwards(t *testing.T, newStore Factory) {
	ctx := context.Background()
	clock := NewClock()
	s := newStore(t, clock)

	created, err := s.Create(ctx, "time travel")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	clock.Advance(-time.Hour)

	patched, err := s.Patch(ctx, created.ID, model.TaskPatch{Completed: ptr(true)})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if patched.UpdatedAt.Before(created.UpdatedAt) {
		t.Fatalf("updated_at went backwards: %s -> %s", created.UpdatedAt, patched.UpdatedAt)
	}
	if patched.UpdatedAt.Before(patched.CreatedAt) {
		t.Fatalf("updated_at before created_at")
	}
}

func testMissing(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, NewClock())

	for _, id := range []uuid.UUID{uuid.Nil, uuid.New()} {
		if _, err := s.Get(ctx, id); !errors.Is(err, model.ErrNotFound) {
			t.Fatalf("get %s: err=%v", id, err)
		}
		if _, err := s.Patch(ctx, id, model.TaskPatch{Completed: ptr(true)}); !errors.Is(err, model.ErrNotFound) {
			t.Fatalf("patch %s: err=%v", id, err)
		}
		if err := s.Delete(ctx, id); !errors.Is(err, model.ErrNotFound) {
			t.Fatalf("delete %s: err=%v", id, err)
		}
	}
}

func testDelete(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, NewClock())

	keep, err := s.Create(ctx, "keep")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	gone, err := s.Create(ctx, "gone")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.Delete(ctx, gone.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, gone.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("get after delete: err=%v", err)
	}
	if err := s.Delete(ctx, gone.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("second delete: err=%v", err)
	}
	if _, err := s.Patch(ctx, gone.ID, model.TaskPatch{}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("patch after delete: err=%v", err)
	}

	if _, err := s.Get(ctx, keep.ID); err != nil {
		t.Fatalf("other task affected: %v", err)
	}
}

func testListOrder(t *testing.T, newStore Factory) {
	ctx := context.Background()
	clock := NewClock()
	s := newStore(t, clock)

	var created []model.Task
	for _, title := range []string{"A", "B", "C"} {
		task, err := s.Create(ctx, title)
		if err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
		created = append(created, task)
		clock.Advance(time.Millisecond)
	}

	items, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(items))
	}
	want := []string{"C", "B", "A"}
	for i, task := range items {
		if task.Title != want[i] {
			t.Fatalf("position %d: got %q want %q", i, task.Title, want[i])
		}
	}
	if !SameTask(items[2], created[0]) {
		t.Fatalf("listed=%+v created=%+v", items[2], created[0])
	}
}

func testListEmpty(t *testing.T, newStore Factory) {
	s := newStore(t, NewClock())

	items, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", items)
	}
}

func testIdempotentReads(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, NewClock())

	created, err := s.Create(ctx, "read me")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	second, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("lens=%d,%d", len(first), len(second))
	}
	if !SameTask(first[0], created) || !SameTask(second[0], created) {
		t.Fatalf("reads differ: %+v %+v created=%+v", first[0], second[0], created)
	}
}

func testConcurrentPatches(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, NewClock())

	created, err := s.Create(ctx, "race")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := s.Patch(ctx, created.ID, model.TaskPatch{Title: ptr("renamed")})
		errs <- err
	}()
	go func() {
		defer wg.Done()
		_, err := s.Patch(ctx, created.ID, model.TaskPatch{Completed: ptr(true)})
		errs <- err
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("patch: %v", err)
		}
	}

	got, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "renamed" || !got.Completed {
		t.Fatalf("lost update: %+v", got)
	}
}

func testScenario(t *testing.T, newStore Factory) {
	ctx := context.Background()
	clock := NewClock()
	s := newStore(t, clock)

	created, err := s.Create(ctx, "buy milk")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Completed {
		t.Fatalf("expected completed=false")
	}

	clock.Advance(time.Second)
	patched, err := s.Patch(ctx, created.ID, model.TaskPatch{Completed: ptr(true)})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if !patched.Completed || patched.ID != created.ID || patched.Title != "buy milk" || !patched.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("unexpected patch result: %+v", patched)
	}

	if err := s.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, created.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("get after delete: err=%v", err)
	}
}
