package soilie

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang/geo/r3"

	"github.com/mikeCplus/SOILIE-3D/internal/manifest"
	scenelayout "github.com/mikeCplus/SOILIE-3D/scene_layout"
	"go.viam.com/rdk/logging"
)

// SceneFrame is a single RGB-D capture: the projected points plus the
// per-object label masks, all in row-major image order.
type SceneFrame struct {
	ID    int
	Input scenelayout.FrameInput
	// Masks maps object names to per-pixel membership, same length as
	// Input.Points.
	Masks map[string][]bool
	// ObjectIDs carries the dataset's numeric label for each object,
	// when known. Missing entries default to 0.
	ObjectIDs map[string]int
}

// Scene is an ordered sequence of frames captured in one environment.
type Scene struct {
	Name   string
	Frames []SceneFrame
}

// SceneOptions controls optional per-scene artifacts.
type SceneOptions struct {
	// WritePCD additionally dumps each object's points as a binary PCD
	// file, downsampled when large.
	WritePCD bool
	// PCDTargetPoints bounds the size of each PCD dump. Zero means
	// DefaultPCDTargetPoints.
	PCDTargetPoints int
}

// DefaultPCDTargetPoints caps PCD dumps at a size viewers handle
// comfortably.
const DefaultPCDTargetPoints = 50000

// SceneResult summarizes one processed scene.
type SceneResult struct {
	Name            string
	Records         []scenelayout.TripletRecord
	FramesProcessed int
	TripletsSkipped int
}

// ProcessScene runs every frame of a scene through object extraction and
// triplet measurement, writing the per-frame artifacts (<id>.csv,
// <id>.cen, <id>.3d) under outDir/<scene name>/ and appending objects
// that produced no valid depth points to the scene's error log.
func ProcessScene(ctx context.Context, scene *Scene, reg *scenelayout.Registry, outDir string, opts SceneOptions, logger logging.Logger) (*SceneResult, error) {
	sceneDir := filepath.Join(outDir, scene.Name)
	if err := os.MkdirAll(sceneDir, 0o755); err != nil {
		return nil, fmt.Errorf("create scene dir: %w", err)
	}

	pcdTarget := opts.PCDTargetPoints
	if pcdTarget <= 0 {
		pcdTarget = DefaultPCDTargetPoints
	}

	result := &SceneResult{Name: scene.Name}
	var errorLines []string

	for _, frame := range scene.Frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		obs, err := scenelayout.ExtractObjects(frame.Input, frame.Masks)
		if err != nil {
			return nil, fmt.Errorf("scene %s frame %d: %w", scene.Name, frame.ID, err)
		}

		for name := range frame.Masks {
			reg.Observe(name, frame.ObjectIDs[name], scene.Name, frame.ID)
		}

		for _, name := range obs.Missing {
			errorLines = append(errorLines, fmt.Sprintf("%d. %s\tat %s\n", frame.ID, name, scene.Name))
		}

		records, skipped := scenelayout.Triplets(obs.Centroids)
		for _, sk := range skipped {
			logger.Debugf("scene %s frame %d: skipped triplet (%s,%s,%s): %s",
				scene.Name, frame.ID, sk.ObjectA, sk.ObjectB, sk.ObjectC, sk.Reason)
		}
		result.TripletsSkipped += len(skipped)

		base := filepath.Join(sceneDir, fmt.Sprintf("%d", frame.ID))
		if err := WriteTripletCSV(base+".csv", records); err != nil {
			return nil, fmt.Errorf("scene %s frame %d: %w", scene.Name, frame.ID, err)
		}
		if err := WriteCentroids(base+".cen", obs.Centroids); err != nil {
			return nil, fmt.Errorf("scene %s frame %d: %w", scene.Name, frame.ID, err)
		}
		if err := Write3D(base+".3d", obs.Clouds); err != nil {
			return nil, fmt.Errorf("scene %s frame %d: %w", scene.Name, frame.ID, err)
		}

		if opts.WritePCD {
			names := make([]string, 0, len(obs.Clouds))
			for name := range obs.Clouds {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				cloud := downsamplePointCloud(logger, obs.Clouds[name], pcdTarget)
				pcdPath := filepath.Join(sceneDir, fmt.Sprintf("%d_%s.pcd", frame.ID, sanitizeFilename(name)))
				if err := savePointCloudToPCD(cloud, pcdPath); err != nil {
					logger.Warnf("scene %s frame %d: failed to save PCD for %s: %v",
						scene.Name, frame.ID, name, err)
				}
			}
		}

		result.Records = append(result.Records, records...)
		result.FramesProcessed++
	}

	if len(errorLines) > 0 {
		if err := appendErrorLog(filepath.Join(sceneDir, "error.log"), errorLines); err != nil {
			return nil, fmt.Errorf("scene %s: %w", scene.Name, err)
		}
	}

	logger.Infof("scene %s: %d frames, %d triplets, %d skipped, %d objects without depth",
		scene.Name, result.FramesProcessed, len(result.Records), result.TripletsSkipped, len(errorLines))
	return result, nil
}

// SceneFromManifest loads every frame a manifest scene entry references
// into an in-memory Scene.
func SceneFromManifest(ref manifest.SceneRef) (*Scene, error) {
	scene := &Scene{Name: ref.Name}
	for _, fr := range ref.Frames {
		mf, err := manifest.LoadFrame(fr.Path)
		if err != nil {
			return nil, fmt.Errorf("scene %s frame %d: %w", ref.Name, fr.ID, err)
		}

		n := mf.Width * mf.Height
		points := make([]r3.Vector, n)
		for i, p := range mf.Points {
			points[i] = r3.Vector{X: p[0], Y: p[1], Z: p[2]}
		}
		valid := mf.Valid
		if len(valid) == 0 {
			valid = make([]bool, n)
			for i := range valid {
				valid[i] = true
			}
		} else if len(valid) != n {
			return nil, fmt.Errorf("scene %s frame %d: %d valid flags for %d pixels",
				ref.Name, fr.ID, len(valid), n)
		}

		masks := make(map[string][]bool, len(mf.Objects))
		ids := make(map[string]int, len(mf.Objects))
		for name, obj := range mf.Objects {
			mask := make([]bool, n)
			for _, px := range obj.Pixels {
				if px < 0 || px >= n {
					return nil, fmt.Errorf("scene %s frame %d: pixel index %d out of range for %s",
						ref.Name, fr.ID, px, name)
				}
				mask[px] = true
			}
			masks[name] = mask
			ids[name] = obj.ID
		}

		scene.Frames = append(scene.Frames, SceneFrame{
			ID: fr.ID,
			Input: scenelayout.FrameInput{
				Width:  mf.Width,
				Height: mf.Height,
				Points: points,
				Valid:  valid,
			},
			Masks:     masks,
			ObjectIDs: ids,
		})
	}
	return scene, nil
}

func appendErrorLog(path string, lines []string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open error log: %w", err)
	}
	defer f.Close()
	for _, line := range lines {
		if _, err := f.WriteString(line); err != nil {
			return fmt.Errorf("write error log: %w", err)
		}
	}
	return nil
}

func sanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', ':':
			return '_'
		}
		return r
	}, name)
}
