package scenelayout

import (
	"fmt"
	"image/color"
	"io"
	"math/rand"
	"sort"
)

// ObjectEntry is one object's corpus-wide identity: the stable name, the
// labeler's current numeric ID, every former ID it was renumbered from,
// a display color, and the (scene, frame) occurrences.
type ObjectEntry struct {
	Name   string
	ID     int
	OldIDs []int
	Color  color.NRGBA
	Scenes map[string][]int
}

// Registry accumulates object identity across every scene processed in a
// run. The name is the stable key; numeric IDs may be reassigned from
// frame to frame within a scene, and former IDs are kept as aliases
// rather than overwritten in place. A Registry is handed into each
// scene-processing call instead of living as package state.
type Registry struct {
	rng     *rand.Rand
	objects map[string]*ObjectEntry
	order   []string
}

// NewRegistry creates an empty registry. The seed drives display-color
// assignment only.
func NewRegistry(seed int64) *Registry {
	return &Registry{
		rng:     rand.New(rand.NewSource(seed)), //nolint:gosec
		objects: make(map[string]*ObjectEntry),
	}
}

// Observe records a sighting of the named object with the labeler's
// numeric ID in the given scene and frame, creating the entry on first
// sighting anywhere in the corpus. A changed ID is pushed onto the alias
// list.
func (r *Registry) Observe(name string, id int, scene string, frame int) *ObjectEntry {
	entry, ok := r.objects[name]
	if !ok {
		entry = &ObjectEntry{
			Name:   name,
			ID:     id,
			Color:  r.randomColor(),
			Scenes: make(map[string][]int),
		}
		r.objects[name] = entry
		r.order = append(r.order, name)
	} else if entry.ID != id {
		entry.OldIDs = append(entry.OldIDs, entry.ID)
		entry.ID = id
	}

	frames := entry.Scenes[scene]
	for _, f := range frames {
		if f == frame {
			return entry
		}
	}
	entry.Scenes[scene] = append(frames, frame)
	return entry
}

// Lookup returns the entry for a name, or nil.
func (r *Registry) Lookup(name string) *ObjectEntry {
	return r.objects[name]
}

// Len returns the number of distinct objects seen so far.
func (r *Registry) Len() int {
	return len(r.objects)
}

// Entries returns all entries in first-sighting order.
func (r *Registry) Entries() []*ObjectEntry {
	out := make([]*ObjectEntry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.objects[name])
	}
	return out
}

// randomColor picks a display color. Colors where every channel is dim
// get one random channel bumped so labels stay readable on dark
// backgrounds. Alpha is fixed for overlay blending.
func (r *Registry) randomColor() color.NRGBA {
	c := color.NRGBA{
		R: uint8(r.rng.Intn(256)),
		G: uint8(r.rng.Intn(256)),
		B: uint8(r.rng.Intn(256)),
		A: 140,
	}
	if c.R < 100 && c.G < 100 && c.B < 100 {
		switch r.rng.Intn(3) {
		case 0:
			c.R += 100
		case 1:
			c.G += 100
		default:
			c.B += 100
		}
	}
	return c
}

// WriteLog writes the corpus object summary table.
func (r *Registry) WriteLog(w io.Writer) error {
	if _, err := fmt.Fprint(w, "---- All Objects ----\n# - ID - name - RGB - Locations - Old IDs\n"); err != nil {
		return err
	}
	for i, name := range r.order {
		entry := r.objects[name]
		oldIDs := "N/A"
		if len(entry.OldIDs) > 0 {
			oldIDs = fmt.Sprint(entry.OldIDs)
		}
		_, err := fmt.Fprintf(w, "%d - %d - %s - (%d,%d,%d) - %d - %s\n",
			i+1, entry.ID, entry.Name,
			entry.Color.R, entry.Color.G, entry.Color.B,
			len(entry.Scenes), oldIDs)
		if err != nil {
			return err
		}
	}
	return nil
}

// SceneNames returns the sorted list of scenes an entry appeared in.
func (e *ObjectEntry) SceneNames() []string {
	names := make([]string, 0, len(e.Scenes))
	for scene := range e.Scenes {
		names = append(names, scene)
	}
	sort.Strings(names)
	return names
}
