package memory

import (
	"errors"
	"sync"
	"testing"

	"ai-animator-be/pkg/store"
)

func newTestParams() CreateParams {
	return CreateParams{
		Prompt:        "Draw a spinning cube",
		Model:         "gpt-4o-mini",
		Temperature:   0.7,
		MaxTokens:     4000,
		MaxIterations: 3,
	}
}

func validIteration(n int) store.CodeIteration {
	return store.CodeIteration{
		IterationNumber: n,
		GeneratedCode:   "from manim import *\n\nclass GeneratedScene(Scene):\n    def construct(self):\n        self.wait(1)\n",
		ValidationResult: store.ValidationResult{
			IsValid:  true,
			Errors:   []string{},
			Warnings: []string{},
		},
		Status: store.StatusSuccess,
	}
}

func invalidIteration(n int) store.CodeIteration {
	iter := validIteration(n)
	iter.ValidationResult = store.ValidationResult{
		IsValid:  false,
		Errors:   []string{"Syntax Error at line 1: unexpected ')'"},
		Warnings: []string{},
	}
	iter.Status = store.StatusFailed
	return iter
}

func TestCreateAndGet(t *testing.T) {
	repo := NewSessionRepository()

	created := repo.Create(newTestParams())
	if created.ID == "" {
		t.Fatal("expected a generated session id")
	}
	if created.Status != store.StatusGenerating {
		t.Errorf("new session status = %q, want %q", created.Status, store.StatusGenerating)
	}
	if created.CurrentIteration != 0 || len(created.Iterations) != 0 {
		t.Error("new session must start with an empty iteration history")
	}

	got, err := repo.Get(created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Prompt != "Draw a spinning cube" || got.MaxIterations != 3 {
		t.Errorf("stored session lost create params: %+v", got)
	}
}

func TestGetUnknownSession(t *testing.T) {
	repo := NewSessionRepository()

	_, err := repo.Get("nope")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestSnapshotsAreIsolated(t *testing.T) {
	repo := NewSessionRepository()
	s := repo.Create(newTestParams())

	if _, err := repo.AppendIteration(s.ID, invalidIteration(1)); err != nil {
		t.Fatalf("AppendIteration: %v", err)
	}

	snap, _ := repo.Get(s.ID)
	snap.Status = "tampered"
	snap.Iterations[0].ValidationResult.Errors[0] = "tampered"

	fresh, _ := repo.Get(s.ID)
	if fresh.Status == "tampered" {
		t.Error("mutating a snapshot leaked into the store")
	}
	if fresh.Iterations[0].ValidationResult.Errors[0] == "tampered" {
		t.Error("mutating nested snapshot state leaked into the store")
	}
}

func TestAppendIterationOrdering(t *testing.T) {
	repo := NewSessionRepository()
	s := repo.Create(newTestParams())

	if _, err := repo.AppendIteration(s.ID, invalidIteration(2)); err == nil {
		t.Error("expected out-of-order iteration to be rejected")
	}
	if _, err := repo.AppendIteration(s.ID, invalidIteration(1)); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if _, err := repo.AppendIteration(s.ID, invalidIteration(1)); err == nil {
		t.Error("expected duplicate iteration number to be rejected")
	}

	snap, _ := repo.AppendIteration(s.ID, invalidIteration(2))
	if snap.CurrentIteration != 2 {
		t.Errorf("CurrentIteration = %d, want 2", snap.CurrentIteration)
	}
}

func TestAppendIterationCeiling(t *testing.T) {
	params := newTestParams()
	params.MaxIterations = 2
	repo := NewSessionRepository()
	s := repo.Create(params)

	repo.AppendIteration(s.ID, invalidIteration(1))
	repo.AppendIteration(s.ID, invalidIteration(2))

	if _, err := repo.AppendIteration(s.ID, invalidIteration(3)); err == nil {
		t.Error("expected append beyond the iteration ceiling to be rejected")
	}
}

func TestAppendAfterTerminalRejected(t *testing.T) {
	repo := NewSessionRepository()
	s := repo.Create(newTestParams())

	repo.AppendIteration(s.ID, validIteration(1))
	if _, err := repo.SetTerminal(s.ID, store.StatusSuccess, "code"); err != nil {
		t.Fatalf("SetTerminal: %v", err)
	}

	if _, err := repo.AppendIteration(s.ID, validIteration(2)); !errors.Is(err, ErrSessionTerminal) {
		t.Errorf("err = %v, want ErrSessionTerminal", err)
	}
	if _, err := repo.SetStatus(s.ID, store.StatusRefining); !errors.Is(err, ErrSessionTerminal) {
		t.Errorf("SetStatus after terminal err = %v, want ErrSessionTerminal", err)
	}
	if _, err := repo.SetTerminal(s.ID, store.StatusFailed, ""); !errors.Is(err, ErrSessionTerminal) {
		t.Errorf("second SetTerminal err = %v, want ErrSessionTerminal", err)
	}
}

func TestSetTerminalRequiresTerminalStatus(t *testing.T) {
	repo := NewSessionRepository()
	s := repo.Create(newTestParams())

	if _, err := repo.SetTerminal(s.ID, store.StatusRefining, "code"); err == nil {
		t.Error("expected non-terminal status to be rejected")
	}
}

func TestManualUpdateOnTerminalSession(t *testing.T) {
	repo := NewSessionRepository()
	s := repo.Create(newTestParams())

	repo.AppendIteration(s.ID, invalidIteration(1))
	repo.SetTerminal(s.ID, store.StatusMaxIterationsReached, "broken code")

	snap, err := repo.ManualUpdate(s.ID, validIteration(0))
	if err != nil {
		t.Fatalf("ManualUpdate: %v", err)
	}
	if snap.Status != store.StatusSuccess {
		t.Errorf("status after valid manual code = %q, want success", snap.Status)
	}
	if snap.CurrentIteration != 2 {
		t.Errorf("manual iteration number = %d, want 2", snap.CurrentIteration)
	}
	if snap.FinalCode == "broken code" {
		t.Error("final code not replaced by manual update")
	}
}

func TestManualUpdateOnFreshSession(t *testing.T) {
	repo := NewSessionRepository()
	s := repo.Create(newTestParams())

	snap, err := repo.ManualUpdate(s.ID, validIteration(0))
	if err != nil {
		t.Fatalf("ManualUpdate: %v", err)
	}
	if len(snap.Iterations) != 1 || snap.CurrentIteration != 1 {
		t.Errorf("expected exactly one iteration, got %d", len(snap.Iterations))
	}
	if snap.Status != store.StatusSuccess || snap.FinalCode == "" {
		t.Errorf("status=%q finalCode set=%v, want success with final code", snap.Status, snap.FinalCode != "")
	}
}

func TestManualUpdateInvalidCode(t *testing.T) {
	repo := NewSessionRepository()
	s := repo.Create(newTestParams())

	snap, err := repo.ManualUpdate(s.ID, invalidIteration(0))
	if err != nil {
		t.Fatalf("ManualUpdate: %v", err)
	}
	if snap.Status != store.StatusFailed {
		t.Errorf("status after invalid manual code = %q, want failed", snap.Status)
	}
	if snap.FinalCode != "" {
		t.Error("invalid manual code must not become final code")
	}
}

func TestManualUpdateInvalidKeepsAcceptedResult(t *testing.T) {
	repo := NewSessionRepository()
	s := repo.Create(newTestParams())

	good := validIteration(1)
	repo.AppendIteration(s.ID, good)
	repo.SetTerminal(s.ID, store.StatusSuccess, good.GeneratedCode)

	snap, err := repo.ManualUpdate(s.ID, invalidIteration(0))
	if err != nil {
		t.Fatalf("ManualUpdate: %v", err)
	}
	if snap.Status != store.StatusSuccess {
		t.Errorf("status after botched hand edit = %q, want success kept", snap.Status)
	}
	if snap.FinalCode != good.GeneratedCode {
		t.Errorf("final code = %q, want accepted code kept", snap.FinalCode)
	}
	if len(snap.Iterations) != 2 {
		t.Errorf("iterations = %d, want the failed edit recorded", len(snap.Iterations))
	}

	// the previously validated code must still render
	if _, err := repo.BeginRender(s.ID, "mp4", "medium"); err != nil {
		t.Errorf("BeginRender after botched hand edit: %v", err)
	}
}

func TestBeginRenderGates(t *testing.T) {
	repo := NewSessionRepository()

	// generation still running
	s := repo.Create(newTestParams())
	if _, err := repo.BeginRender(s.ID, "mp4", "medium"); !errors.Is(err, ErrGenerationActive) {
		t.Errorf("err = %v, want ErrGenerationActive", err)
	}

	// terminal but no final code
	s2 := repo.Create(newTestParams())
	repo.AppendIteration(s2.ID, invalidIteration(1))
	repo.SetTerminal(s2.ID, store.StatusMaxIterationsReached, "")
	if _, err := repo.BeginRender(s2.ID, "mp4", "medium"); !errors.Is(err, ErrNoFinalCode) {
		t.Errorf("err = %v, want ErrNoFinalCode", err)
	}

	// terminal with code but last validation invalid
	s3 := repo.Create(newTestParams())
	repo.AppendIteration(s3.ID, invalidIteration(1))
	repo.SetTerminal(s3.ID, store.StatusMaxIterationsReached, "broken code")
	if _, err := repo.BeginRender(s3.ID, "mp4", "medium"); !errors.Is(err, ErrInvalidFinalCode) {
		t.Errorf("err = %v, want ErrInvalidFinalCode", err)
	}

	// happy path
	s4 := repo.Create(newTestParams())
	repo.AppendIteration(s4.ID, validIteration(1))
	repo.SetTerminal(s4.ID, store.StatusSuccess, "code")
	snap, err := repo.BeginRender(s4.ID, "mp4", "medium")
	if err != nil {
		t.Fatalf("BeginRender: %v", err)
	}
	if snap.Render == nil || snap.Render.Status != store.RenderQueued {
		t.Fatalf("render state = %+v, want queued", snap.Render)
	}

	// second render while the first is in flight
	if _, err := repo.BeginRender(s4.ID, "mp4", "medium"); !errors.Is(err, ErrRenderInFlight) {
		t.Errorf("err = %v, want ErrRenderInFlight", err)
	}
}

func TestRenderLifecycle(t *testing.T) {
	repo := NewSessionRepository()
	s := repo.Create(newTestParams())
	repo.AppendIteration(s.ID, validIteration(1))
	repo.SetTerminal(s.ID, store.StatusSuccess, "code")
	repo.BeginRender(s.ID, "webm", "high")

	snap, err := repo.UpdateRender(s.ID, store.RenderProgress{Status: store.RenderRendering, Message: "Rendering"})
	if err != nil {
		t.Fatalf("UpdateRender: %v", err)
	}
	if snap.Render.Status != store.RenderRendering {
		t.Errorf("render status = %q, want rendering", snap.Render.Status)
	}
	if len(snap.Render.Progress) != 2 {
		t.Errorf("progress entries = %d, want 2", len(snap.Render.Progress))
	}

	snap, err = repo.CompleteRender(s.ID, "/media/out.webm", "")
	if err != nil {
		t.Fatalf("CompleteRender: %v", err)
	}
	if snap.Render.Status != store.RenderCompleted || snap.Render.ArtifactPath != "/media/out.webm" {
		t.Errorf("completed render = %+v", snap.Render)
	}
	if snap.Render.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}

	if _, err := repo.UpdateRender(s.ID, store.RenderProgress{Status: store.RenderEncoding}); err == nil {
		t.Error("expected progress after terminal render to be rejected")
	}

	// retry after completion is allowed
	if _, err := repo.BeginRender(s.ID, "mp4", "low"); err != nil {
		t.Errorf("BeginRender after completed render: %v", err)
	}
}

func TestCompleteRenderKeepsErrorVerbatim(t *testing.T) {
	repo := NewSessionRepository()
	s := repo.Create(newTestParams())
	repo.AppendIteration(s.ID, validIteration(1))
	repo.SetTerminal(s.ID, store.StatusSuccess, "code")
	repo.BeginRender(s.ID, "mp4", "medium")

	engineErr := "manim render failed: exit status 1: NameError: name 'Circel' is not defined"
	snap, err := repo.CompleteRender(s.ID, "", engineErr)
	if err != nil {
		t.Fatalf("CompleteRender: %v", err)
	}
	if snap.Render.Status != store.RenderFailed {
		t.Errorf("render status = %q, want failed", snap.Render.Status)
	}
	if snap.Render.Error != engineErr {
		t.Errorf("render error %q, want engine error verbatim", snap.Render.Error)
	}

	// a failed render can be retried
	if _, err := repo.BeginRender(s.ID, "mp4", "medium"); err != nil {
		t.Errorf("BeginRender after failed render: %v", err)
	}
}

func TestManualUpdateRejectedWhileRenderInFlight(t *testing.T) {
	repo := NewSessionRepository()
	s := repo.Create(newTestParams())
	repo.AppendIteration(s.ID, validIteration(1))
	repo.SetTerminal(s.ID, store.StatusSuccess, "code")
	repo.BeginRender(s.ID, "mp4", "medium")

	if _, err := repo.ManualUpdate(s.ID, validIteration(0)); !errors.Is(err, ErrRenderInFlight) {
		t.Errorf("err = %v, want ErrRenderInFlight", err)
	}
}

func TestListAndDelete(t *testing.T) {
	repo := NewSessionRepository()
	a := repo.Create(newTestParams())
	b := repo.Create(newTestParams())

	if got := len(repo.List()); got != 2 {
		t.Errorf("List() returned %d sessions, want 2", got)
	}

	if err := repo.Delete(a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(a.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second delete err = %v, want ErrSessionNotFound", err)
	}
	if got := len(repo.List()); got != 1 {
		t.Errorf("List() after delete returned %d sessions, want 1", got)
	}
	if _, err := repo.Get(b.ID); err != nil {
		t.Errorf("unrelated session lost after delete: %v", err)
	}
}

func TestConcurrentReadersDuringWrites(t *testing.T) {
	repo := NewSessionRepository()
	s := repo.Create(newTestParams())

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 1; i <= 3; i++ {
			repo.AppendIteration(s.ID, invalidIteration(i))
		}
		repo.SetTerminal(s.ID, store.StatusMaxIterationsReached, "code")
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			snap, err := repo.Get(s.ID)
			if err != nil {
				t.Errorf("Get during writes: %v", err)
				return
			}
			// A snapshot is internally consistent: the iteration count never
			// lags the reported current iteration.
			if snap.CurrentIteration != len(snap.Iterations) {
				t.Errorf("torn snapshot: current=%d history=%d", snap.CurrentIteration, len(snap.Iterations))
				return
			}
		}
	}()

	wg.Wait()
}
