package soilie

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/mikeCplus/SOILIE-3D/internal/manifest"
	scenelayout "github.com/mikeCplus/SOILIE-3D/scene_layout"
	"go.viam.com/rdk/logging"
)

// testScene builds a 4x1 frame: three objects with valid depth plus one
// whose only pixel has no depth reading.
func testScene(name string, frameIDs ...int) *Scene {
	scene := &Scene{Name: name}
	for _, id := range frameIDs {
		scene.Frames = append(scene.Frames, SceneFrame{
			ID: id,
			Input: scenelayout.FrameInput{
				Width:  4,
				Height: 1,
				Points: []r3.Vector{
					{X: 1, Y: 0, Z: 2},
					{X: 0, Y: 1, Z: 2},
					{X: -1, Y: 0.5, Z: 3},
					{},
				},
				Valid: []bool{true, true, true, false},
			},
			Masks: map[string][]bool{
				"desk":  {true, false, false, false},
				"lamp":  {false, true, false, false},
				"mug":   {false, false, true, false},
				"ghost": {false, false, false, true},
			},
			ObjectIDs: map[string]int{"desk": 1, "lamp": 2, "mug": 3, "ghost": 4},
		})
	}
	return scene
}

func TestProcessScene_Artifacts(t *testing.T) {
	outDir := t.TempDir()
	reg := scenelayout.NewRegistry(1)
	logger := logging.NewTestLogger(t)

	scene := testScene("kitchen", 0, 1)
	result, err := ProcessScene(context.Background(), scene, reg, outDir, SceneOptions{}, logger)
	if err != nil {
		t.Fatalf("ProcessScene failed: %v", err)
	}

	if result.FramesProcessed != 2 {
		t.Errorf("FramesProcessed = %d, want 2", result.FramesProcessed)
	}
	// 3 placed objects per frame -> 6 ordered triplets per frame.
	if len(result.Records) != 12 {
		t.Errorf("records = %d, want 12", len(result.Records))
	}

	for _, id := range []string{"0", "1"} {
		for _, ext := range []string{".csv", ".cen", ".3d"} {
			path := filepath.Join(outDir, "kitchen", id+ext)
			if _, err := os.Stat(path); err != nil {
				t.Errorf("missing artifact %s: %v", path, err)
			}
		}
	}

	// The depth-less object lands in the error log, once per frame.
	data, err := os.ReadFile(filepath.Join(outDir, "kitchen", "error.log"))
	if err != nil {
		t.Fatalf("error log: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("error log has %d lines, want 2:\n%s", len(lines), data)
	}
	if lines[0] != "0. ghost\tat kitchen" {
		t.Errorf("error log line = %q", lines[0])
	}

	// Every masked object is registered, ghost included.
	if reg.Len() != 4 {
		t.Errorf("registry has %d objects, want 4", reg.Len())
	}
	if reg.Lookup("desk").ID != 1 {
		t.Errorf("desk ID = %d, want 1", reg.Lookup("desk").ID)
	}
}

func TestProcessScene_ArtifactContents(t *testing.T) {
	outDir := t.TempDir()
	reg := scenelayout.NewRegistry(1)
	logger := logging.NewTestLogger(t)

	if _, err := ProcessScene(context.Background(), testScene("den", 7), reg, outDir, SceneOptions{}, logger); err != nil {
		t.Fatalf("ProcessScene failed: %v", err)
	}

	records, err := ReadTripletCSV(filepath.Join(outDir, "den", "7.csv"))
	if err != nil {
		t.Fatalf("reading per-frame CSV: %v", err)
	}
	if len(records) != 6 {
		t.Fatalf("per-frame CSV has %d records, want 6", len(records))
	}

	points, err := Read3D(filepath.Join(outDir, "den", "7.3d"))
	if err != nil {
		t.Fatalf("reading 3d dump: %v", err)
	}
	if len(points) != 3 {
		t.Errorf("3d dump has %d objects, want 3", len(points))
	}
	if len(points["desk"]) != 1 || points["desk"][0] != (r3.Vector{X: 1, Y: 0, Z: 2}) {
		t.Errorf("desk points = %v", points["desk"])
	}
}

func TestProcessScene_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reg := scenelayout.NewRegistry(1)
	_, err := ProcessScene(ctx, testScene("hall", 0), reg, t.TempDir(), SceneOptions{}, logging.NewTestLogger(t))
	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestSceneFromManifest(t *testing.T) {
	dir := t.TempDir()

	frameJSON := `{
		"width": 2, "height": 1,
		"points": [[1, 0, 2], [0, 1, 2]],
		"objects": {
			"desk": {"id": 3, "pixels": [0]},
			"lamp": {"id": 4, "pixels": [1]}
		}
	}`
	if err := os.WriteFile(filepath.Join(dir, "frame0.json"), []byte(frameJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	manifestJSON := `{"scenes": [{"name": "attic", "frames": [{"id": 0, "path": "frame0.json"}]}]}`
	manifestPath := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(manifestPath, []byte(manifestJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := manifest.Load(manifestPath)
	if err != nil {
		t.Fatalf("loading manifest: %v", err)
	}
	scene, err := SceneFromManifest(m.Scenes[0])
	if err != nil {
		t.Fatalf("SceneFromManifest failed: %v", err)
	}

	if scene.Name != "attic" || len(scene.Frames) != 1 {
		t.Fatalf("scene = %s with %d frames", scene.Name, len(scene.Frames))
	}
	frame := scene.Frames[0]
	if frame.Input.Width != 2 || frame.Input.Height != 1 {
		t.Errorf("dimensions = %dx%d", frame.Input.Width, frame.Input.Height)
	}
	// Omitted valid flags default to all-valid.
	if len(frame.Input.Valid) != 2 || !frame.Input.Valid[0] || !frame.Input.Valid[1] {
		t.Errorf("Valid = %v, want all true", frame.Input.Valid)
	}
	if !frame.Masks["desk"][0] || frame.Masks["desk"][1] {
		t.Errorf("desk mask = %v", frame.Masks["desk"])
	}
	if frame.ObjectIDs["lamp"] != 4 {
		t.Errorf("lamp ID = %d, want 4", frame.ObjectIDs["lamp"])
	}
}
