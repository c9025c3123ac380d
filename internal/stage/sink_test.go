package stage

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLogSink(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}))

	fn := func(_ context.Context, prev int, _ string) (int, error) {
		if prev == 1 {
			return 0, errors.New("broken")
		}
		return prev + 1, nil
	}

	quietEngine(Config{}).Run(context.Background(), makePlan(3), fn, NewLogSink[int](logger), Options[int]{})

	logs := out.String()
	if !strings.Contains(logs, `"msg":"step completed"`) {
		t.Errorf("expected step completed record, got %s", logs)
	}
	if !strings.Contains(logs, `"msg":"step failed"`) || !strings.Contains(logs, "broken") {
		t.Errorf("expected step failed record, got %s", logs)
	}
}

func TestLogSink_Completion(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&out, nil))

	if _, err := quietEngine(Config{}).Run(context.Background(), makePlan(2), increment, NewLogSink[int](logger), Options[int]{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logs := out.String()
	if !strings.Contains(logs, "run completed") || !strings.Contains(logs, "result=2") {
		t.Errorf("expected completion record, got %s", logs)
	}
	// Debug-записи шагов отфильтрованы уровнем INFO
	if strings.Contains(logs, "step completed") {
		t.Errorf("step records must be debug level, got %s", logs)
	}
}

func TestHookSink(t *testing.T) {
	rec := &hookRecorder{}

	fn := func(_ context.Context, prev int, _ string) (int, error) {
		return prev + 10, nil
	}

	// Хуки только в sink: OnStepEnd и OnComplete приходят через снимки
	_, err := quietEngine(Config{}).Run(context.Background(), makePlan(3), fn, NewHookSink(rec.hooks()), Options[int]{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !equalInts(rec.ends, []int{0, 1, 2}) {
		t.Errorf("unexpected step ends: %v", rec.ends)
	}
	if !equalInts(rec.completes, []int{30}) {
		t.Errorf("expected OnComplete(30), got %v", rec.completes)
	}
	if len(rec.starts) != 0 {
		t.Errorf("sink never produces step starts, got %v", rec.starts)
	}
}

func TestHookSink_Error(t *testing.T) {
	rec := &hookRecorder{}
	sink := NewHookSink(rec.hooks())

	sink.Emit(StreamState[int]{StepIndex: 4, Err: errors.New("x")})

	if !equalInts(rec.errs, []int{4}) {
		t.Errorf("expected error hook for step 4, got %v", rec.errs)
	}
}

func TestMultiSink(t *testing.T) {
	first := NewBuffer[int]()
	second := NewBuffer[int]()
	var seen []int

	sink := MultiSink[int]{
		NewBufferSink(first),
		nil,
		SinkFunc[int](func(s StreamState[int]) { seen = append(seen, s.Result) }),
		NewBufferSink(second),
	}

	if _, err := quietEngine(Config{}).Run(context.Background(), makePlan(2), increment, sink, Options[int]{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.Len() != 3 || second.Len() != 3 {
		t.Errorf("expected 3 states in each buffer, got %d and %d", first.Len(), second.Len())
	}
	if !equalInts(seen, []int{1, 2, 2}) {
		t.Errorf("unexpected results: %v", seen)
	}
}

func TestBuffer_SharedBetweenRuns(t *testing.T) {
	buf := NewBuffer[int]()
	engine := quietEngine(Config{})

	for i := 0; i < 2; i++ {
		if _, err := engine.Run(context.Background(), makePlan(2), increment, NewBufferSink(buf), Options[int]{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	states := buf.States()
	if len(states) != 6 {
		t.Fatalf("expected 6 states, got %d", len(states))
	}
	if states[0].RunID == states[3].RunID {
		t.Error("runs must have distinct ids")
	}
}

func TestBuffer_Empty(t *testing.T) {
	buf := NewBuffer[string]()
	if _, ok := buf.Last(); ok {
		t.Error("empty buffer has no last state")
	}
	if buf.Len() != 0 || len(buf.States()) != 0 {
		t.Error("empty buffer must be empty")
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusIdle, false},
		{StatusRunning, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusCancelled, true},
	}

	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.terminal {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestRunError(t *testing.T) {
	cause := errors.New("disk full")
	stepErr := newStepError(3, cause)

	if stepErr.Error() != "step 3: disk full" {
		t.Errorf("unexpected message: %q", stepErr.Error())
	}
	if !errors.Is(stepErr, ErrStepFailed) || errors.Is(stepErr, ErrCancelled) {
		t.Error("step error must match only ErrStepFailed")
	}
	if errors.Unwrap(stepErr) != cause {
		t.Error("step error must unwrap to cause")
	}

	cancelErr := newCancelError(1, "timeout")
	if cancelErr.Error() != "step 1: cancelled: timeout" {
		t.Errorf("unexpected message: %q", cancelErr.Error())
	}
	if !IsCancelled(cancelErr) {
		t.Error("cancel error must match ErrCancelled")
	}

	if _, ok := AsRunError(errors.New("plain")); ok {
		t.Error("plain error is not a RunError")
	}
}
