package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Manifest lists the scenes of a dataset and where their frame files
// live. Relative frame paths are resolved against the manifest's
// directory.
type Manifest struct {
	Scenes []SceneRef `json:"scenes"`
}

// SceneRef names one scene and its frames.
type SceneRef struct {
	Name   string     `json:"name"`
	Frames []FrameRef `json:"frames"`
}

// FrameRef points at a single frame file.
type FrameRef struct {
	ID   int    `json:"id"`
	Path string `json:"path"`
}

// Frame is the on-disk form of one capture: projected points in
// row-major image order plus per-object pixel memberships.
type Frame struct {
	Width  int          `json:"width"`
	Height int          `json:"height"`
	Points [][3]float64 `json:"points"`
	// Valid flags pixels with usable depth. Empty means all valid.
	Valid   []bool                 `json:"valid,omitempty"`
	Objects map[string]FrameObject `json:"objects"`
}

// FrameObject carries an object's dataset label and its pixel indices.
type FrameObject struct {
	ID     int   `json:"id"`
	Pixels []int `json:"pixels"`
}

// Load reads and parses a dataset manifest from a JSON file, resolving
// relative frame paths against the manifest's directory.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest file: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest file: %w", err)
	}
	base := filepath.Dir(path)
	for i := range m.Scenes {
		for j := range m.Scenes[i].Frames {
			ref := &m.Scenes[i].Frames[j]
			if !filepath.IsAbs(ref.Path) {
				ref.Path = filepath.Join(base, ref.Path)
			}
		}
	}
	return &m, nil
}

// LoadFrame reads and parses a single frame file.
func LoadFrame(path string) (*Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading frame file: %w", err)
	}
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing frame file: %w", err)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return nil, fmt.Errorf("frame file %s: invalid dimensions %dx%d", path, f.Width, f.Height)
	}
	if len(f.Points) != f.Width*f.Height {
		return nil, fmt.Errorf("frame file %s: %d points for %dx%d image",
			path, len(f.Points), f.Width, f.Height)
	}
	return &f, nil
}
