package scenelayout

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r3"
)

func TestExtractObjects_CentroidAndLabel(t *testing.T) {
	// 2x2 frame; "box" covers the left column.
	frame := FrameInput{
		Width:  2,
		Height: 2,
		Points: []r3.Vector{
			{X: 0, Y: 0, Z: 1},
			{X: 1, Y: 0, Z: 1},
			{X: 0, Y: 1, Z: 3},
			{X: 1, Y: 1, Z: 3},
		},
		Valid: []bool{true, true, true, true},
	}
	masks := map[string][]bool{
		"box": {true, false, true, false},
	}

	obs, err := ExtractObjects(frame, masks)
	if err != nil {
		t.Fatalf("ExtractObjects failed: %v", err)
	}

	centroid, ok := obs.Centroids["box"]
	if !ok {
		t.Fatal("no centroid for box")
	}
	want := r3.Vector{X: 0, Y: 0.5, Z: 2}
	if centroid.Sub(want).Norm() > 1e-12 {
		t.Errorf("centroid = %v, want %v", centroid, want)
	}

	label, ok := obs.Labels["box"]
	if !ok {
		t.Fatal("no label for box")
	}
	if math.Abs(label.X-0) > 1e-12 || math.Abs(label.Y-0.5) > 1e-12 {
		t.Errorf("label = %v, want (0, 0.5)", label)
	}

	if obs.Clouds["box"] == nil || obs.Clouds["box"].Size() != 2 {
		t.Errorf("expected cloud of 2 points")
	}
}

func TestExtractObjects_InvalidDepthExcluded(t *testing.T) {
	frame := FrameInput{
		Width:  3,
		Height: 1,
		Points: []r3.Vector{
			{X: 1, Y: 0, Z: 1},
			{X: 100, Y: 100, Z: 100}, // garbage behind an invalid pixel
			{X: 3, Y: 0, Z: 1},
		},
		Valid: []bool{true, false, true},
	}
	masks := map[string][]bool{
		"rug": {true, true, true},
	}

	obs, err := ExtractObjects(frame, masks)
	if err != nil {
		t.Fatalf("ExtractObjects failed: %v", err)
	}

	centroid := obs.Centroids["rug"]
	want := r3.Vector{X: 2, Y: 0, Z: 1}
	if centroid.Sub(want).Norm() > 1e-12 {
		t.Errorf("centroid = %v, want %v (invalid pixel must not contribute)", centroid, want)
	}
	// The 2D label still averages over all mask pixels.
	if math.Abs(obs.Labels["rug"].X-1) > 1e-12 {
		t.Errorf("label X = %.3f, want 1", obs.Labels["rug"].X)
	}
}

func TestExtractObjects_MissingObject(t *testing.T) {
	frame := FrameInput{
		Width:  2,
		Height: 1,
		Points: []r3.Vector{{Z: 1}, {Z: 2}},
		Valid:  []bool{false, true},
	}
	masks := map[string][]bool{
		"ghost": {true, false}, // only invalid depth under the mask
		"solid": {false, true},
	}

	obs, err := ExtractObjects(frame, masks)
	if err != nil {
		t.Fatalf("ExtractObjects failed: %v", err)
	}
	if len(obs.Missing) != 1 || obs.Missing[0] != "ghost" {
		t.Errorf("Missing = %v, want [ghost]", obs.Missing)
	}
	if _, ok := obs.Centroids["ghost"]; ok {
		t.Error("ghost must not get a centroid")
	}
	if _, ok := obs.Labels["ghost"]; !ok {
		t.Error("ghost still has mask pixels, so it keeps a 2D label")
	}
	if _, ok := obs.Centroids["solid"]; !ok {
		t.Error("solid should have a centroid")
	}
}

func TestExtractObjects_DuplicatePoints(t *testing.T) {
	// Identical 3D points under one mask still each count toward the mean.
	frame := FrameInput{
		Width:  3,
		Height: 1,
		Points: []r3.Vector{{X: 1, Z: 1}, {X: 1, Z: 1}, {X: 4, Z: 1}},
		Valid:  []bool{true, true, true},
	}
	masks := map[string][]bool{"pair": {true, true, true}}

	obs, err := ExtractObjects(frame, masks)
	if err != nil {
		t.Fatalf("ExtractObjects failed: %v", err)
	}
	if got := obs.Centroids["pair"].X; math.Abs(got-2) > 1e-12 {
		t.Errorf("centroid X = %.3f, want 2", got)
	}
}

func TestExtractObjects_BadInputs(t *testing.T) {
	good := FrameInput{
		Width:  1,
		Height: 1,
		Points: []r3.Vector{{Z: 1}},
		Valid:  []bool{true},
	}

	if _, err := ExtractObjects(FrameInput{}, nil); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("empty frame: err = %v, want ErrEmptyFrame", err)
	}

	short := good
	short.Valid = nil
	if _, err := ExtractObjects(short, nil); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("missing valid flags: err = %v, want ErrEmptyFrame", err)
	}

	if _, err := ExtractObjects(good, map[string][]bool{"x": {true, true}}); !errors.Is(err, ErrMaskShape) {
		t.Errorf("oversized mask: err = %v, want ErrMaskShape", err)
	}
}
