package episode

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/tutu-network/tutu-gym/internal/domain"
	"github.com/tutu-network/tutu-gym/internal/grader"
)

const (
	goodFix = "function add(a, b) { return a + b; }"
	badFix  = "function subtract(a, b) { return a - b; }"
)

func newTestEnv(opts ...Option) *Env {
	return New("", nil, opts...)
}

// ─── Construction & Reset ───────────────────────────────────────────────────

func TestNew_Initial(t *testing.T) {
	e := newTestEnv()

	if e.Task() != DefaultTask {
		t.Errorf("Task() = %q, want %q", e.Task(), DefaultTask)
	}
	if e.Observation() != e.Task() {
		t.Errorf("Observation() = %q, want task", e.Observation())
	}
	if e.Turn() != 0 {
		t.Errorf("Turn() = %d, want 0", e.Turn())
	}
	if e.Done() {
		t.Error("new episode should not be done")
	}
	if e.State() != StateActive {
		t.Errorf("State() = %s, want active", e.State())
	}
	if e.MaxTurns() != DefaultMaxTurns {
		t.Errorf("MaxTurns() = %d, want %d", e.MaxTurns(), DefaultMaxTurns)
	}
}

func TestWithMaxTurns(t *testing.T) {
	if got := newTestEnv(WithMaxTurns(3)).MaxTurns(); got != 3 {
		t.Errorf("MaxTurns() = %d, want 3", got)
	}
	if got := newTestEnv(WithMaxTurns(0)).MaxTurns(); got != DefaultMaxTurns {
		t.Errorf("MaxTurns() with 0 = %d, want default", got)
	}
}

func TestReset_AfterSteps(t *testing.T) {
	for _, steps := range []int{0, 1, 3, 5} {
		t.Run(fmt.Sprintf("steps=%d", steps), func(t *testing.T) {
			e := newTestEnv()
			for i := 0; i < steps; i++ {
				e.Step("some action")
			}

			obs := e.Reset()
			if obs != e.Task() {
				t.Errorf("Reset() = %q, want task", obs)
			}
			if e.Turn() != 0 {
				t.Errorf("Turn() = %d, want 0", e.Turn())
			}
			if e.Done() {
				t.Error("reset episode should not be done")
			}
			if len(e.Transcript()) != 0 {
				t.Errorf("Transcript() len = %d, want 0", len(e.Transcript()))
			}
		})
	}
}

func TestReset_Idempotent(t *testing.T) {
	e := newTestEnv()
	e.Step(goodFix)
	first := e.Reset()
	second := e.Reset()
	if first != second || e.Turn() != 0 || e.State() != StateActive {
		t.Errorf("repeated Reset() changed state: %q vs %q", first, second)
	}
}

// ─── Step ───────────────────────────────────────────────────────────────────

func TestStep_Correct(t *testing.T) {
	e := newTestEnv()
	r := e.Step(goodFix)

	if r.Reward != 1.0 {
		t.Errorf("Reward = %v, want 1.0", r.Reward)
	}
	if !r.Done {
		t.Error("Done = false, want true")
	}
	if !strings.Contains(r.Observation, "LGTM! [APPROVED]") {
		t.Errorf("Observation missing approval: %q", r.Observation)
	}
	if e.State() != StateApproved {
		t.Errorf("State() = %s, want approved", e.State())
	}
}

func TestStep_Incorrect(t *testing.T) {
	e := newTestEnv()
	r := e.Step(badFix)

	if r.Reward != 0.0 {
		t.Errorf("Reward = %v, want 0.0", r.Reward)
	}
	if r.Done {
		t.Error("Done = true, want false")
	}
	if !strings.Contains(r.Observation, "The code is not correct") {
		t.Errorf("Observation missing rejection: %q", r.Observation)
	}
	if e.State() != StateActive {
		t.Errorf("State() = %s, want active", e.State())
	}
}

func TestStep_Exhausted(t *testing.T) {
	e := newTestEnv(WithMaxTurns(5))
	for i := 1; i <= 4; i++ {
		r := e.Step(badFix)
		if r.Done || r.Reward != 0 {
			t.Fatalf("turn %d: done=%v reward=%v, want false/0", i, r.Done, r.Reward)
		}
	}

	r := e.Step(badFix)
	if !r.Done {
		t.Error("fifth failing step should be done")
	}
	if r.Reward != 0.0 {
		t.Errorf("Reward = %v, want 0.0", r.Reward)
	}
	if e.State() != StateExhausted {
		t.Errorf("State() = %s, want exhausted", e.State())
	}
	if e.Turn() != e.MaxTurns() {
		t.Errorf("Turn() = %d, want %d", e.Turn(), e.MaxTurns())
	}
}

func TestStep_ApprovedOnLastTurn(t *testing.T) {
	e := newTestEnv(WithMaxTurns(3))
	e.Step(badFix)
	e.Step(badFix)

	r := e.Step(goodFix)
	if r.Reward != 1.0 || !r.Done {
		t.Errorf("approval on last turn: reward=%v done=%v", r.Reward, r.Done)
	}
	if e.State() != StateApproved {
		t.Errorf("State() = %s, want approved", e.State())
	}
}

func TestStep_ApprovedAtAnyTurn(t *testing.T) {
	for prior := 0; prior < DefaultMaxTurns; prior++ {
		e := newTestEnv()
		for i := 0; i < prior; i++ {
			e.Step(badFix)
		}
		r := e.Step(goodFix)
		if r.Reward != 1.0 || !r.Done {
			t.Errorf("after %d failures: reward=%v done=%v, want 1/true", prior, r.Reward, r.Done)
		}
	}
}

func TestStep_ObservationFormat(t *testing.T) {
	e := newTestEnv()
	r := e.Step(badFix)

	want := "Task: " + DefaultTask + "\nPrevious Code:\n" + badFix + "\nFeedback:\n" + grader.RejectedFeedback
	if r.Observation != want {
		t.Errorf("Observation =\n%q\nwant\n%q", r.Observation, want)
	}

	taskAt := strings.Index(r.Observation, DefaultTask)
	codeAt := strings.Index(r.Observation, badFix)
	feedbackAt := strings.Index(r.Observation, grader.RejectedFeedback)
	if !(taskAt < codeAt && codeAt < feedbackAt) {
		t.Error("observation sections out of order")
	}
}

func TestStep_InfoEmptyMap(t *testing.T) {
	r := newTestEnv().Step(badFix)
	if r.Info == nil {
		t.Fatal("Info should be a non-nil map")
	}
	if len(r.Info) != 0 {
		t.Errorf("Info = %v, want empty", r.Info)
	}
}

func TestStep_AfterTerminalIsIgnored(t *testing.T) {
	e := newTestEnv(WithMaxTurns(1))
	e.Step(badFix)
	before := e.Observation()

	r := e.Step(goodFix)
	if !r.Done || r.Reward != 0 {
		t.Errorf("ignored step: done=%v reward=%v, want true/0", r.Done, r.Reward)
	}
	if r.Info["ignored"] != true {
		t.Errorf("Info = %v, want ignored", r.Info)
	}
	if e.Turn() != 1 {
		t.Errorf("Turn() = %d, want 1 (unchanged)", e.Turn())
	}
	if r.Observation != before {
		t.Error("ignored step should not change the observation")
	}
	if len(e.Transcript()) != 1 {
		t.Errorf("Transcript() len = %d, want 1", len(e.Transcript()))
	}
}

func TestStep_TurnNeverExceedsBudget(t *testing.T) {
	e := newTestEnv(WithMaxTurns(2))
	for i := 0; i < 10; i++ {
		e.Step(badFix)
		if e.Turn() > e.MaxTurns() {
			t.Fatalf("Turn() = %d exceeds MaxTurns() = %d", e.Turn(), e.MaxTurns())
		}
	}
}

// ─── Transcript, Grader, Render ─────────────────────────────────────────────

func TestTranscript(t *testing.T) {
	e := newTestEnv()
	e.Step(badFix)
	e.Step(goodFix)

	tr := e.Transcript()
	if len(tr) != 2 {
		t.Fatalf("Transcript() len = %d, want 2", len(tr))
	}
	if tr[0].Artifact != badFix || tr[0].Passed {
		t.Errorf("tr[0] = %+v", tr[0])
	}
	if tr[1].Artifact != goodFix || !tr[1].Passed || tr[1].Feedback != grader.ApprovedFeedback {
		t.Errorf("tr[1] = %+v", tr[1])
	}

	// Returned slice is a copy.
	tr[0].Artifact = "mutated"
	if e.Transcript()[0].Artifact != badFix {
		t.Error("Transcript() should return a copy")
	}
}

func TestStep_UsesPluggableGrader(t *testing.T) {
	var calls int
	g := grader.Func(func(task, artifact string) domain.Verdict {
		calls++
		if task != "Write hello" {
			t.Errorf("grader saw task %q", task)
		}
		return domain.Verdict{Passed: strings.Contains(artifact, "hello"), Feedback: "custom"}
	})
	e := New("Write hello", g, WithMaxTurns(2))

	r := e.Step("goodbye")
	if r.Done || !strings.HasSuffix(r.Observation, "custom") {
		t.Errorf("first step = %+v", r)
	}
	r = e.Step("hello")
	if !r.Done || r.Reward != 1 {
		t.Errorf("second step = %+v", r)
	}
	if calls != 2 {
		t.Errorf("grader calls = %d, want 2", calls)
	}
}

func TestRender(t *testing.T) {
	e := newTestEnv()
	e.Step(badFix)

	var buf bytes.Buffer
	if err := e.Render(&buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if buf.String() != e.Observation()+"\n" {
		t.Errorf("Render wrote %q", buf.String())
	}
	if e.Turn() != 1 {
		t.Error("Render should not change state")
	}
}

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		terminal bool
	}{
		{StateActive, false},
		{StateApproved, true},
		{StateExhausted, true},
	}
	for _, tt := range tests {
		if got := tt.state.IsTerminal(); got != tt.terminal {
			t.Errorf("IsTerminal(%s) = %v, want %v", tt.state, got, tt.terminal)
		}
	}
}
