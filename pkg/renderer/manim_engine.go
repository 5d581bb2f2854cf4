package renderer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"ai-animator-be/pkg/manim"

	"github.com/google/uuid"
)

// ManimEngine renders scenes by shelling out to the manim CLI.
type ManimEngine struct {
	Binary   string
	MediaDir string
	Timeout  time.Duration
}

var _ Engine = &ManimEngine{}

func NewManimEngine(binary, mediaDir string, timeoutSeconds int) *ManimEngine {
	if binary == "" {
		binary = "manim"
	}
	if mediaDir == "" {
		mediaDir = "media"
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = 600
	}
	return &ManimEngine{
		Binary:   binary,
		MediaDir: mediaDir,
		Timeout:  time.Duration(timeoutSeconds) * time.Second,
	}
}

func (e *ManimEngine) Render(ctx context.Context, code string, opts RenderOptions, progress ProgressFunc) (string, error) {
	if progress == nil {
		progress = func(string, string) {}
	}
	if err := ValidateOptions(&opts); err != nil {
		return "", err
	}

	progress("preparing", "Creating temporary render workspace")

	workDir, err := os.MkdirTemp("", "manim_render_")
	if err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}

	scriptPath := filepath.Join(workDir, "scene.py")
	if err := os.WriteFile(scriptPath, []byte(code), 0644); err != nil {
		os.RemoveAll(workDir)
		return "", fmt.Errorf("write scene: %w", err)
	}

	// Background color goes through a local manim.cfg, the only way the CLI
	// accepts it without patching the scene source.
	if opts.BackgroundColor != "" {
		cfg := fmt.Sprintf("[CLI]\nbackground_color = %s\n", opts.BackgroundColor)
		if err := os.WriteFile(filepath.Join(workDir, "manim.cfg"), []byte(cfg), 0644); err != nil {
			os.RemoveAll(workDir)
			return "", fmt.Errorf("write config: %w", err)
		}
	}

	preset := QualityPresets[opts.Quality]
	outputName := "output." + opts.Format

	runCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.Binary,
		"render",
		scriptPath,
		manim.EntryPointClass,
		"-q", preset.Flag,
		"-o", outputName,
		"--format", opts.Format,
	)
	cmd.Dir = workDir

	progress("rendering", fmt.Sprintf("Rendering %s scene at %s quality", opts.Format, opts.Quality))

	out, err := cmd.CombinedOutput()
	if err != nil {
		os.RemoveAll(workDir)
		if runCtx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("render timed out after %s", e.Timeout)
		}
		return "", fmt.Errorf("manim render failed: %w: %s", err, condense(string(out)))
	}

	progress("encoding", "Collecting rendered artifact")

	artifact, err := findArtifact(workDir, outputName)
	if err != nil {
		os.RemoveAll(workDir)
		return "", err
	}

	final, err := e.collect(artifact, opts.Format)
	os.RemoveAll(workDir)
	if err != nil {
		return "", err
	}

	return final, nil
}

// collect moves the artifact out of the temporary workspace into the media
// directory under a unique name, so the workspace can be discarded.
func (e *ManimEngine) collect(artifact, format string) (string, error) {
	if err := os.MkdirAll(e.MediaDir, 0755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	final := filepath.Join(e.MediaDir, fmt.Sprintf("render_%s.%s", uuid.NewString(), format))
	if err := os.Rename(artifact, final); err != nil {
		// Rename fails across filesystems; fall back to copy.
		data, readErr := os.ReadFile(artifact)
		if readErr != nil {
			return "", fmt.Errorf("collect artifact: %w", readErr)
		}
		if writeErr := os.WriteFile(final, data, 0644); writeErr != nil {
			return "", fmt.Errorf("collect artifact: %w", writeErr)
		}
	}
	return final, nil
}

// findArtifact walks the media tree the CLI creates; the file name is fixed
// but the directory layout depends on the CLI version and quality preset.
func findArtifact(workDir, outputName string) (string, error) {
	var found string
	err := filepath.Walk(workDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() && info.Name() == outputName {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil && err != filepath.SkipAll {
		return "", fmt.Errorf("scan render output: %w", err)
	}
	if found == "" {
		return "", fmt.Errorf("render produced no %s artifact", outputName)
	}
	return found, nil
}

// condense trims CLI output to the error-bearing tail for log and API messages.
func condense(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	var interesting []string
	for _, line := range lines {
		if strings.Contains(line, "Error") || strings.Contains(line, "Exception") || strings.Contains(line, "Traceback") {
			interesting = append(interesting, strings.TrimSpace(line))
		}
	}
	if len(interesting) > 0 {
		return strings.Join(interesting, "; ")
	}
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, "; ")
}
