package stage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/shaiso/stagerun/internal/telemetry"
)

func stepIndices(states []StreamState[int]) []int {
	out := make([]int, len(states))
	for i, s := range states {
		out[i] = s.StepIndex
	}
	return out
}

func TestRunInBatches_PauseCount(t *testing.T) {
	tests := []struct {
		steps     int
		batchSize int
		pauses    float64
	}{
		{0, 3, 0},
		{1, 3, 0},
		{3, 3, 0},
		{4, 3, 1},
		{9, 2, 4},
		{10, 1, 9},
		{10, 20, 0},
	}

	for _, tt := range tests {
		metrics := telemetry.NewMetrics(prometheus.NewRegistry())

		result, err := quietEngine(Config{Metrics: metrics}).RunInBatches(context.Background(), makePlan(tt.steps), increment, nil,
			BatchOptions[int]{BatchSize: tt.batchSize})
		if err != nil {
			t.Fatalf("N=%d b=%d: unexpected error: %v", tt.steps, tt.batchSize, err)
		}
		if result != tt.steps {
			t.Errorf("N=%d b=%d: expected %d, got %d", tt.steps, tt.batchSize, tt.steps, result)
		}
		if got := testutil.ToFloat64(metrics.BatchPauses()); got != tt.pauses {
			t.Errorf("N=%d b=%d: expected %v pauses, got %v", tt.steps, tt.batchSize, tt.pauses, got)
		}
	}
}

func TestRunInBatches_MatchesSequentialRun(t *testing.T) {
	fc := clockwork.NewFakeClock()
	started := fc.Now()
	engine := quietEngine(Config{Clock: fc})

	sequential := NewBuffer[int]()
	if _, err := engine.Run(context.Background(), makePlan(10), increment, NewBufferSink(sequential), Options[int]{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	batched := NewBuffer[int]()
	done := make(chan error, 1)
	go func() {
		_, err := engine.RunInBatches(context.Background(), makePlan(10), increment, NewBufferSink(batched),
			BatchOptions[int]{BatchSize: 3, InterBatchDelay: time.Second})
		done <- err
	}()

	// 10 шагов по 3 → батчи [0-2] [3-5] [6-8] [9] → 3 паузы
	for i := 0; i < 3; i++ {
		if err := blockUntil(fc, 1); err != nil {
			t.Fatal(err)
		}
		fc.Advance(time.Second)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("batched run did not finish")
	}

	if elapsed := fc.Since(started); elapsed != 3*time.Second {
		t.Errorf("expected 3s of pauses, got %s", elapsed)
	}

	want := stepIndices(sequential.States())
	got := stepIndices(batched.States())
	if !equalInts(want, got) {
		t.Errorf("step indices differ: sequential %v, batched %v", want, got)
	}

	last, _ := batched.Last()
	if !last.IsComplete || last.Result != 10 {
		t.Errorf("unexpected completion state: %+v", last)
	}
}

func TestRunInBatches_CancelBetweenBatches(t *testing.T) {
	token := NewManual()
	rec := &hookRecorder{}
	hooks := rec.hooks()
	hooks.OnStepEnd = func(i int, _ int) {
		rec.ends = append(rec.ends, i)
		if i == 2 {
			token.Cancel("enough")
		}
	}

	started := time.Now()
	_, err := quietEngine(Config{}).RunInBatches(context.Background(), makePlan(9), increment, nil,
		BatchOptions[int]{
			Options:         Options[int]{Token: token, Hooks: hooks},
			BatchSize:       3,
			InterBatchDelay: time.Hour,
		})

	runErr, ok := AsRunError(err)
	if !ok || runErr.Kind != KindCancelled {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if runErr.StepIndex != 3 {
		t.Errorf("expected cancellation at first step of second batch, got %d", runErr.StepIndex)
	}
	// Отмена прерывает паузу между батчами
	if time.Since(started) > time.Second {
		t.Error("pause was not interrupted by cancellation")
	}
	if !equalInts(rec.ends, []int{0, 1, 2}) {
		t.Errorf("unexpected step ends: %v", rec.ends)
	}
}

func TestRunInBatches_FailureInLaterBatch(t *testing.T) {
	fn := func(_ context.Context, prev int, _ string) (int, error) {
		if prev == 4 {
			return 0, errors.New("bad step")
		}
		return prev + 1, nil
	}

	buf := NewBuffer[int]()
	result, err := quietEngine(Config{}).RunInBatches(context.Background(), makePlan(8), fn, NewBufferSink(buf),
		BatchOptions[int]{BatchSize: 3})

	runErr, ok := AsRunError(err)
	if !ok || runErr.Kind != KindStepFailed || runErr.StepIndex != 4 {
		t.Fatalf("expected failure at step 4, got %v", err)
	}
	if result != 4 {
		t.Errorf("expected last good result 4, got %d", result)
	}
	if last, _ := buf.Last(); last.Err == nil || last.StepIndex != 4 {
		t.Errorf("expected error state for step 4, got %+v", last)
	}
}

func TestRunInBatches_RetriesInsideBatch(t *testing.T) {
	attempts := 0
	rec := &hookRecorder{}

	result, err := quietEngine(Config{}).RunInBatches(context.Background(), makePlan(6), flaky(4, 1, &attempts), nil,
		BatchOptions[int]{
			Options:   Options[int]{Hooks: rec.hooks()},
			BatchSize: 2,
			Retry:     RetryPolicy{MaxRetries: 1},
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 6 {
		t.Errorf("expected 6, got %d", result)
	}
	if !equalInts(rec.errs, []int{4}) {
		t.Errorf("expected one failed attempt at step 4, got %v", rec.errs)
	}
}

func TestRunInBatches_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts BatchOptions[int]
	}{
		{"zero batch size", BatchOptions[int]{BatchSize: 0}},
		{"negative batch size", BatchOptions[int]{BatchSize: -2}},
		{"negative delay", BatchOptions[int]{BatchSize: 2, InterBatchDelay: -time.Millisecond}},
		{"invalid retry", BatchOptions[int]{BatchSize: 2, Retry: RetryPolicy{MaxRetries: -1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewBuffer[int]()
			_, err := quietEngine(Config{}).RunInBatches(context.Background(), makePlan(3), increment, NewBufferSink(buf), tt.opts)
			if !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("expected ErrInvalidOptions, got %v", err)
			}
			if buf.Len() != 0 {
				t.Error("nothing must be emitted for invalid options")
			}
		})
	}
}
