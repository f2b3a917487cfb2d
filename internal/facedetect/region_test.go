package facedetect

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
)

func TestLargestPicksMaxArea(t *testing.T) {
	regions := []Region{
		{X: 0, Y: 0, Width: 10, Height: 10},
		{X: 5, Y: 5, Width: 30, Height: 20},
		{X: 2, Y: 2, Width: 20, Height: 20},
	}
	got, ok := Largest(regions)
	if !ok {
		t.Fatal("expected a region")
	}
	if got != regions[1] {
		t.Fatalf("expected %+v, got %+v", regions[1], got)
	}
}

func TestLargestTieKeepsFirst(t *testing.T) {
	regions := []Region{
		{X: 40, Y: 40, Width: 10, Height: 20},
		{X: 0, Y: 0, Width: 20, Height: 10},
	}
	got, _ := Largest(regions)
	if got != regions[0] {
		t.Fatalf("expected first region on tie, got %+v", got)
	}
}

func TestLargestEmpty(t *testing.T) {
	if _, ok := Largest(nil); ok {
		t.Fatal("expected no region for empty input")
	}
}

func TestPadCentresMargin(t *testing.T) {
	bounds := image.Rect(0, 0, 200, 200)
	got := Pad(Region{X: 50, Y: 60, Width: 50, Height: 40}, 1.2, bounds)
	want := image.Rect(45, 56, 105, 104)
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestPadClampsAtEveryEdge(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 80)
	cases := map[string]Region{
		"top-left":     {X: 0, Y: 0, Width: 30, Height: 30},
		"top-right":    {X: 70, Y: 0, Width: 30, Height: 30},
		"bottom-left":  {X: 0, Y: 50, Width: 30, Height: 30},
		"bottom-right": {X: 70, Y: 50, Width: 30, Height: 30},
		"whole-image":  {X: 0, Y: 0, Width: 100, Height: 80},
		"overhanging":  {X: -10, Y: 60, Width: 40, Height: 40},
	}
	for name, r := range cases {
		t.Run(name, func(t *testing.T) {
			got := Pad(r, 1.2, bounds)
			if !got.In(bounds) {
				t.Fatalf("padded region %v escapes bounds %v", got, bounds)
			}
			if got.Empty() {
				t.Fatalf("padded region %v is empty", got)
			}
		})
	}
}

func TestGroupHonoursMinNeighbors(t *testing.T) {
	face := []Region{
		{X: 10, Y: 10, Width: 40, Height: 40},
		{X: 12, Y: 11, Width: 40, Height: 40},
		{X: 9, Y: 12, Width: 42, Height: 42},
		{X: 11, Y: 9, Width: 38, Height: 38},
	}
	noise := []Region{{X: 150, Y: 150, Width: 20, Height: 20}}
	raw := append([]Region{noise[0]}, face...)

	got := group(raw, 0.2, 4)
	if len(got) != 1 {
		t.Fatalf("expected 1 grouped face, got %d (%+v)", len(got), got)
	}
	if got[0].X != 10 || got[0].Y != 10 || got[0].Width != 40 {
		t.Fatalf("unexpected merged region %+v", got[0])
	}

	if all := group(raw, 0.2, 0); len(all) != 2 {
		t.Fatalf("expected noise to survive with minNeighbors=0, got %d", len(all))
	}
}

func TestNewPigoDetectorRejectsEmptyCascade(t *testing.T) {
	if _, err := NewPigoDetector(nil, DefaultParams()); !errors.Is(err, ErrDetectionUnavailable) {
		t.Fatalf("expected ErrDetectionUnavailable, got %v", err)
	}
}

func TestLoadMissingCascade(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "facefinder"), DefaultParams())
	if !errors.Is(err, ErrDetectionUnavailable) {
		t.Fatalf("expected ErrDetectionUnavailable, got %v", err)
	}
}

func TestLoadEmptyCascadeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facefinder")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, DefaultParams()); !errors.Is(err, ErrDetectionUnavailable) {
		t.Fatalf("expected ErrDetectionUnavailable, got %v", err)
	}
}

func TestParamsDefaults(t *testing.T) {
	p := Params{MinNeighbors: 2}.withDefaults()
	if p.ScaleFactor != 1.1 || p.MinNeighbors != 2 || p.MaxSize != 0 {
		t.Fatalf("unexpected params %+v", p)
	}
}

func TestParamsNegativeMaxSizeIsUnbounded(t *testing.T) {
	if p := (Params{MaxSize: -1}).withDefaults(); p.MaxSize != 0 {
		t.Fatalf("expected unbounded max size, got %d", p.MaxSize)
	}
}
