package renderer

import (
	"strings"
	"testing"
)

func TestValidateOptions(t *testing.T) {
	tests := []struct {
		name        string
		opts        RenderOptions
		wantErr     bool
		wantFormat  string
		wantQuality string
	}{
		{
			name:        "defaults applied",
			opts:        RenderOptions{},
			wantFormat:  "mp4",
			wantQuality: "medium",
		},
		{
			name:        "explicit values kept",
			opts:        RenderOptions{Format: "gif", Quality: "4k"},
			wantFormat:  "gif",
			wantQuality: "4k",
		},
		{
			name:    "unsupported format",
			opts:    RenderOptions{Format: "avi"},
			wantErr: true,
		},
		{
			name:    "unsupported quality",
			opts:    RenderOptions{Quality: "ultra"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOptions(&tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if tt.opts.Format != tt.wantFormat || tt.opts.Quality != tt.wantQuality {
				t.Errorf("normalized opts = %+v, want %s/%s", tt.opts, tt.wantFormat, tt.wantQuality)
			}
		})
	}
}

func TestQualityPresetsCoverSpec(t *testing.T) {
	want := map[string]string{"low": "l", "medium": "m", "high": "h", "4k": "k"}
	for name, flag := range want {
		preset, ok := QualityPresets[name]
		if !ok {
			t.Errorf("missing preset %q", name)
			continue
		}
		if preset.Flag != flag {
			t.Errorf("preset %q flag = %q, want %q", name, preset.Flag, flag)
		}
	}
}

func TestContentType(t *testing.T) {
	if ct, ok := ContentType("mp4"); !ok || ct != "video/mp4" {
		t.Errorf("ContentType(mp4) = %q, %v", ct, ok)
	}
	if ct, ok := ContentType("gif"); !ok || ct != "image/gif" {
		t.Errorf("ContentType(gif) = %q, %v", ct, ok)
	}
	if _, ok := ContentType("avi"); ok {
		t.Error("ContentType(avi) should be unknown")
	}
}

func TestCondenseExtractsErrorLines(t *testing.T) {
	out := "Manim Community v0.18.0\nloading fonts\nTraceback (most recent call last):\n  File \"scene.py\", line 5\nNameError: name 'Circel' is not defined\n"
	got := condense(out)
	if got == "" {
		t.Fatal("condense returned nothing")
	}
	if want := "NameError: name 'Circel' is not defined"; !strings.Contains(got, want) {
		t.Errorf("condense() = %q, missing %q", got, want)
	}
	if strings.Contains(got, "loading fonts") {
		t.Errorf("condense() kept noise line: %q", got)
	}
}

func TestCondenseFallsBackToTail(t *testing.T) {
	out := "a\nb\nc\nd\ne\nf\ng"
	got := condense(out)
	if strings.Contains(got, "a;") {
		t.Errorf("condense() kept more than the tail: %q", got)
	}
	if !strings.Contains(got, "g") {
		t.Errorf("condense() dropped the last line: %q", got)
	}
}
