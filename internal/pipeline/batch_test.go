package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nao1215/gerbenv/internal/model"
)

// countingFactory returns a pipeline factory whose single step records
// the directories it saw and the peak number of concurrent executions.
func countingFactory(active, peak *int64, mu *sync.Mutex, seen *[]string) func(string) *Pipeline {
	return func(dir string) *Pipeline {
		p := New()
		p.AddStep(&mockStep{
			name: "count",
			doFunc: func(_ context.Context, _ *model.Report) error {
				cur := atomic.AddInt64(active, 1)
				for {
					old := atomic.LoadInt64(peak)
					if cur <= old || atomic.CompareAndSwapInt64(peak, old, cur) {
						break
					}
				}

				mu.Lock()
				*seen = append(*seen, dir)
				mu.Unlock()

				atomic.AddInt64(active, -1)
				return nil
			},
		})
		return p
	}
}

func TestNewBatchProcessor(t *testing.T) {
	t.Parallel()

	t.Run("default concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func(string) *Pipeline { return New() })
		if bp.concurrency != 4 {
			t.Errorf("concurrency = %d, want 4", bp.concurrency)
		}
	})

	t.Run("WithConcurrency overrides default", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func(string) *Pipeline { return New() }, WithConcurrency(2))
		if bp.concurrency != 2 {
			t.Errorf("concurrency = %d, want 2", bp.concurrency)
		}
	})

	t.Run("WithConcurrency ignores non-positive values", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func(string) *Pipeline { return New() }, WithConcurrency(0))
		if bp.concurrency != 4 {
			t.Errorf("concurrency = %d, want default 4", bp.concurrency)
		}
	})

	t.Run("nil logger falls back to default", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func(string) *Pipeline { return New() }, WithBatchLogger(nil))
		if bp.logger == nil {
			t.Error("expected non-nil logger")
		}
	})
}

func TestProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("converts every project and keeps order", func(t *testing.T) {
		t.Parallel()

		var active, peak int64
		var mu sync.Mutex
		var seen []string

		bp := NewBatchProcessor(countingFactory(&active, &peak, &mu, &seen))

		dirs := []string{"/work/a", "/work/b", "/work/c"}
		reports, err := bp.ProcessBatch(context.Background(), dirs)
		if err != nil {
			t.Fatalf("ProcessBatch returned error: %v", err)
		}

		if len(reports) != 3 {
			t.Fatalf("got %d reports, want 3", len(reports))
		}
		wantProjects := []string{"a", "b", "c"}
		for i, r := range reports {
			if r == nil {
				t.Fatalf("report %d is nil", i)
			}
			if r.Project != wantProjects[i] {
				t.Errorf("report %d project = %s, want %s", i, r.Project, wantProjects[i])
			}
		}

		mu.Lock()
		defer mu.Unlock()
		if len(seen) != 3 {
			t.Errorf("factory pipeline ran %d times, want 3", len(seen))
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var active, peak int64
		var mu sync.Mutex
		var seen []string

		bp := NewBatchProcessor(
			countingFactory(&active, &peak, &mu, &seen),
			WithConcurrency(1),
		)

		dirs := []string{"/work/a", "/work/b", "/work/c", "/work/d"}
		if _, err := bp.ProcessBatch(context.Background(), dirs); err != nil {
			t.Fatalf("ProcessBatch returned error: %v", err)
		}

		if got := atomic.LoadInt64(&peak); got > 1 {
			t.Errorf("peak concurrency = %d, want at most 1", got)
		}
	})

	t.Run("failed conversions still produce reports", func(t *testing.T) {
		t.Parallel()

		stepErr := errors.New("conversion broke")
		factory := func(dir string) *Pipeline {
			p := New()
			p.AddStep(&mockStep{
				name: "fail",
				doFunc: func(_ context.Context, _ *model.Report) error {
					if dir == "/work/bad" {
						return stepErr
					}
					return nil
				},
			})
			return p
		}

		bp := NewBatchProcessor(factory)
		reports, err := bp.ProcessBatch(context.Background(), []string{"/work/good", "/work/bad"})
		if err != nil {
			t.Fatalf("ProcessBatch returned error: %v", err)
		}

		if len(reports) != 2 {
			t.Fatalf("got %d reports, want 2", len(reports))
		}
		if reports[0].Error != nil {
			t.Errorf("good project has error: %v", reports[0].Error)
		}
		if reports[1].Error == nil {
			t.Error("bad project should record its error")
		}
		if reports[1].ErrorMessage != stepErr.Error() {
			t.Errorf("ErrorMessage = %q, want %q", reports[1].ErrorMessage, stepErr.Error())
		}
	})

	t.Run("cancelled context stops the batch", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var ran int64
		factory := func(string) *Pipeline {
			p := New()
			p.AddStep(&mockStep{
				name: "run",
				doFunc: func(_ context.Context, _ *model.Report) error {
					atomic.AddInt64(&ran, 1)
					return nil
				},
			})
			return p
		}

		bp := NewBatchProcessor(factory)
		_, err := bp.ProcessBatch(ctx, []string{"/work/a", "/work/b"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if atomic.LoadInt64(&ran) != 0 {
			t.Errorf("%d steps ran after cancellation", ran)
		}
	})
}

func TestProcessBatchWithCallback(t *testing.T) {
	t.Parallel()

	t.Run("callback fires once per project", func(t *testing.T) {
		t.Parallel()

		factory := func(string) *Pipeline { return New() }
		bp := NewBatchProcessor(factory)

		var mu sync.Mutex
		got := make(map[int]string)

		dirs := []string{"/work/a", "/work/b", "/work/c"}
		err := bp.ProcessBatchWithCallback(context.Background(), dirs, func(report *model.Report, index int) {
			mu.Lock()
			got[index] = report.Project
			mu.Unlock()
		})
		if err != nil {
			t.Fatalf("ProcessBatchWithCallback returned error: %v", err)
		}

		mu.Lock()
		defer mu.Unlock()
		if len(got) != 3 {
			t.Fatalf("callback fired %d times, want 3", len(got))
		}
		want := map[int]string{0: "a", 1: "b", 2: "c"}
		for i, project := range want {
			if got[i] != project {
				t.Errorf("index %d project = %s, want %s", i, got[i], project)
			}
		}
	})

	t.Run("callback still fires on conversion failure", func(t *testing.T) {
		t.Parallel()

		factory := func(string) *Pipeline {
			p := New()
			p.AddStep(&mockStep{
				name: "fail",
				doFunc: func(_ context.Context, _ *model.Report) error {
					return errors.New("broken")
				},
			})
			return p
		}

		bp := NewBatchProcessor(factory)

		var called int64
		err := bp.ProcessBatchWithCallback(context.Background(), []string{"/work/a"}, func(report *model.Report, _ int) {
			atomic.AddInt64(&called, 1)
			if report.Error == nil {
				t.Error("expected error recorded in report")
			}
		})
		if err != nil {
			t.Fatalf("ProcessBatchWithCallback returned error: %v", err)
		}
		if atomic.LoadInt64(&called) != 1 {
			t.Errorf("callback fired %d times, want 1", called)
		}
	})
}
