package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/pavelanni/tutor/internal/model"
)

type fakeRemote struct {
	mu       sync.Mutex
	appended []model.ExamAttempt
	list     []model.ExamAttempt
	err      error
}

func (f *fakeRemote) AppendAttempt(_ context.Context, a model.ExamAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.appended = append(f.appended, a)
	return nil
}

func (f *fakeRemote) ListAttempts(_ context.Context, _ model.Student) ([]model.ExamAttempt, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.list, nil
}

func TestAttemptsAppend(t *testing.T) {
	local := newTestStore(t)
	remote := &fakeRemote{}
	store := NewAttempts(local, remote)
	ctx := context.Background()

	known := testAttempt("k", "Science", 1, 62, 80, intp(78))
	anon := testAttempt("n", "Science", 2, 10, 20, intp(50))
	anon.Student = model.Student{Name: "Asha"}

	store.Append(ctx, known)
	store.Append(ctx, anon)

	if len(remote.appended) != 1 || remote.appended[0].ID != "k" {
		t.Errorf("remote should only get known students, got %+v", remote.appended)
	}
	if n, _ := local.AttemptCount(ctx); n != 2 {
		t.Errorf("local count = %d, want 2", n)
	}
}

func TestAttemptsAppendSwallowsFailures(t *testing.T) {
	local := newTestStore(t)
	remote := &fakeRemote{err: errors.New("connection reset")}
	store := NewAttempts(local, remote)
	ctx := context.Background()

	a := testAttempt("x", "Maths", 1, 1, 2, intp(50))
	store.Append(ctx, a)
	// Duplicate id fails locally too; neither failure surfaces.
	store.Append(ctx, a)

	if n, _ := local.AttemptCount(ctx); n != 1 {
		t.Errorf("local count = %d, want 1", n)
	}
}

func TestAttemptsAppendDetachesFromCaller(t *testing.T) {
	local := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	NewAttempts(local, nil).Append(ctx, testAttempt("late", "Science", 1, 8, 10, intp(80)))

	if n, _ := local.AttemptCount(context.Background()); n != 1 {
		t.Errorf("local count = %d, want 1", n)
	}
}

func TestAttemptsList(t *testing.T) {
	ctx := context.Background()
	student := model.Student{Name: "Asha", Class: "10"}

	t.Run("remote preferred", func(t *testing.T) {
		local := newTestStore(t)
		_ = local.AppendAttempt(ctx, testAttempt("local", "Science", 1, 1, 2, intp(50)))
		remote := &fakeRemote{list: []model.ExamAttempt{testAttempt("remote", "Maths", 1, 2, 2, intp(100))}}

		got := NewAttempts(local, remote).List(ctx, student)
		if len(got) != 1 || got[0].ID != "remote" {
			t.Errorf("got %+v, want remote history", got)
		}
	})

	t.Run("remote error falls back", func(t *testing.T) {
		local := newTestStore(t)
		_ = local.AppendAttempt(ctx, testAttempt("local", "Science", 1, 1, 2, intp(50)))
		remote := &fakeRemote{err: errors.New("timeout")}

		got := NewAttempts(local, remote).List(ctx, student)
		if len(got) != 1 || got[0].ID != "local" {
			t.Errorf("got %+v, want local fallback", got)
		}
	})

	t.Run("unknown identity uses local", func(t *testing.T) {
		local := newTestStore(t)
		_ = local.AppendAttempt(ctx, testAttempt("local", "Science", 1, 1, 2, intp(50)))
		remote := &fakeRemote{list: []model.ExamAttempt{testAttempt("remote", "Maths", 1, 2, 2, intp(100))}}

		got := NewAttempts(local, remote).List(ctx, model.Student{})
		if len(got) != 1 || got[0].ID != "local" {
			t.Errorf("got %+v, want local collection", got)
		}
	})

	t.Run("no remote", func(t *testing.T) {
		local := newTestStore(t)
		got := NewAttempts(local, nil).List(ctx, student)
		if len(got) != 0 {
			t.Errorf("got %+v, want empty", got)
		}
	})

	t.Run("local history is per student", func(t *testing.T) {
		local := newTestStore(t)
		_ = local.AppendAttempt(ctx, testAttempt("asha-1", "Science", 1, 1, 2, intp(50)))
		ravi := testAttempt("ravi-1", "Science", 2, 2, 2, intp(100))
		ravi.Student = model.Student{Name: "Ravi", Class: "9"}
		_ = local.AppendAttempt(ctx, ravi)

		for _, remote := range []Remote{nil, &fakeRemote{err: errors.New("timeout")}} {
			got := NewAttempts(local, remote).List(ctx, student)
			if len(got) != 1 || got[0].ID != "asha-1" {
				t.Errorf("remote %T: got %+v, want only asha-1", remote, got)
			}
		}
		if got := NewAttempts(local, nil).List(ctx, model.Student{}); len(got) != 2 {
			t.Errorf("unknown student got %d attempts, want the whole collection", len(got))
		}
	})

	t.Run("closed local store", func(t *testing.T) {
		local, err := New(":memory:")
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		local.Close()
		if got := NewAttempts(local, nil).List(ctx, student); got != nil {
			t.Errorf("got %+v, want nil", got)
		}
	})
}
