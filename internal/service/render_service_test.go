package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-animator-be/internal/dto"
	"ai-animator-be/internal/repository/memory"
	"ai-animator-be/pkg/renderer"
	"ai-animator-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine reports scripted stages and then an artifact or an error.
type fakeEngine struct {
	mu       sync.Mutex
	artifact string
	err      error
	lastOpts renderer.RenderOptions
}

func (f *fakeEngine) Render(ctx context.Context, code string, opts renderer.RenderOptions, progress renderer.ProgressFunc) (string, error) {
	f.mu.Lock()
	f.lastOpts = opts
	f.mu.Unlock()

	progress(store.RenderPreparing, "Creating temporary render workspace")
	progress(store.RenderRendering, "Rendering scene")
	if f.err != nil {
		return "", f.err
	}
	progress(store.RenderEncoding, "Collecting rendered artifact")
	return f.artifact, nil
}

func (f *fakeEngine) options() renderer.RenderOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastOpts
}

func newRenderableSession(t *testing.T, repo memory.ISessionRepository) string {
	t.Helper()
	s := repo.Create(memory.CreateParams{Prompt: "Draw a circle", MaxIterations: 3})
	_, err := repo.AppendIteration(s.ID, store.CodeIteration{
		IterationNumber:  1,
		GeneratedCode:    "code",
		ValidationResult: store.ValidationResult{IsValid: true, Errors: []string{}, Warnings: []string{}},
		Status:           store.StatusSuccess,
	})
	require.NoError(t, err)
	_, err = repo.SetTerminal(s.ID, store.StatusSuccess, "code")
	require.NoError(t, err)
	return s.ID
}

func waitForRenderTerminal(t *testing.T, repo memory.ISessionRepository, id string) *store.Session {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s, err := repo.Get(id)
		require.NoError(t, err)
		if s.Render != nil && store.IsRenderTerminal(s.Render.Status) {
			return s
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("render never reached a terminal state")
	return nil
}

func TestStartRenderHappyPath(t *testing.T) {
	repo := memory.NewSessionRepository()
	engine := &fakeEngine{artifact: "/media/render_abc.mp4"}
	pub := &recordingPublisher{}
	svc := NewRenderService(repo, engine, pub, nopLogger{}, 0)

	id := newRenderableSession(t, repo)

	res, err := svc.StartRender(context.Background(), id, &dto.RenderRequest{})
	require.NoError(t, err)
	assert.Equal(t, store.RenderQueued, res.Status)
	assert.Equal(t, "mp4", res.Format)
	assert.Equal(t, "medium", res.Quality)

	final := waitForRenderTerminal(t, repo, id)
	assert.Equal(t, store.RenderCompleted, final.Render.Status)
	assert.Equal(t, "/media/render_abc.mp4", final.Render.ArtifactPath)

	// queued -> preparing -> rendering -> encoding -> completed
	require.Len(t, final.Render.Progress, 5)
	assert.Equal(t, store.RenderQueued, final.Render.Progress[0].Status)
	assert.Equal(t, store.RenderCompleted, final.Render.Progress[4].Status)

	assert.Contains(t, pub.seen(), store.EventRenderQueued)
}

func TestStartRenderAppliesOptions(t *testing.T) {
	repo := memory.NewSessionRepository()
	engine := &fakeEngine{artifact: "/media/out.gif"}
	svc := NewRenderService(repo, engine, &recordingPublisher{}, nopLogger{}, 0)

	id := newRenderableSession(t, repo)

	_, err := svc.StartRender(context.Background(), id, &dto.RenderRequest{
		Format:          "gif",
		Quality:         "low",
		BackgroundColor: "#1e1e2e",
	})
	require.NoError(t, err)
	waitForRenderTerminal(t, repo, id)

	opts := engine.options()
	assert.Equal(t, "gif", opts.Format)
	assert.Equal(t, "low", opts.Quality)
	assert.Equal(t, "#1e1e2e", opts.BackgroundColor)
}

func TestStartRenderRejectsBadOptions(t *testing.T) {
	repo := memory.NewSessionRepository()
	svc := NewRenderService(repo, &fakeEngine{}, &recordingPublisher{}, nopLogger{}, 0)
	id := newRenderableSession(t, repo)

	_, err := svc.StartRender(context.Background(), id, &dto.RenderRequest{Format: "avi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestStartRenderGateErrors(t *testing.T) {
	repo := memory.NewSessionRepository()
	svc := NewRenderService(repo, &fakeEngine{artifact: "/media/out.mp4"}, &recordingPublisher{}, nopLogger{}, 0)

	_, err := svc.StartRender(context.Background(), "missing", &dto.RenderRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	active := repo.Create(memory.CreateParams{Prompt: "p", MaxIterations: 3})
	_, err = svc.StartRender(context.Background(), active.ID, &dto.RenderRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not finished")
}

func TestRenderFailureKeepsEngineError(t *testing.T) {
	repo := memory.NewSessionRepository()
	engine := &fakeEngine{err: errors.New("manim render failed: exit status 1: NameError: name 'Circel' is not defined")}
	pub := &recordingPublisher{}
	svc := NewRenderService(repo, engine, pub, nopLogger{}, 0)

	id := newRenderableSession(t, repo)
	_, err := svc.StartRender(context.Background(), id, &dto.RenderRequest{})
	require.NoError(t, err)

	final := waitForRenderTerminal(t, repo, id)
	assert.Equal(t, store.RenderFailed, final.Render.Status)
	assert.Contains(t, final.Render.Error, "NameError: name 'Circel'")

	// session generation phase is untouched by a failed render
	assert.Equal(t, store.StatusSuccess, final.Status)

	// and a retry is possible
	_, err = svc.StartRender(context.Background(), id, &dto.RenderRequest{})
	require.NoError(t, err)
}

func TestGetArtifact(t *testing.T) {
	repo := memory.NewSessionRepository()
	engine := &fakeEngine{artifact: "/media/render_xyz.webm"}
	svc := NewRenderService(repo, engine, &recordingPublisher{}, nopLogger{}, 0)

	id := newRenderableSession(t, repo)

	_, err := svc.GetArtifact(context.Background(), id)
	require.Error(t, err, "no artifact before any render")

	_, err = svc.StartRender(context.Background(), id, &dto.RenderRequest{Format: "webm"})
	require.NoError(t, err)
	waitForRenderTerminal(t, repo, id)

	artifact, err := svc.GetArtifact(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "/media/render_xyz.webm", artifact.Path)
	assert.Equal(t, "video/webm", artifact.ContentType)
	assert.Contains(t, artifact.Filename, id)
}
