// Package aoi tracks named rectangular screen regions and classifies gaze
// points against them.
package aoi

import (
	"sort"
	"sync"

	"github.com/banshee-data/gaze.report/internal/gaze"
)

// SearchEverywhere is the id of the global search/command popup. It
// overlays everything else while it is open.
const SearchEverywhere = "SearchEverywhere"

// Bounds is an axis-aligned region in absolute screen pixels.
type Bounds struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	ID     string `json:"id"`
}

// Contains reports whether p lies inside b. All four edges are inclusive.
func (b Bounds) Contains(p gaze.ScreenPoint) bool {
	return b.X <= p.X && p.X <= b.X+b.Width &&
		b.Y <= p.Y && p.Y <= b.Y+b.Height
}

// Area is the region's pixel area, used to break ties between overlaps.
func (b Bounds) Area() int64 {
	return int64(b.Width) * int64(b.Height)
}

// Registry maps region ids to bounds. Writers are UI lifecycle callbacks,
// readers are classification calls working from a Snapshot.
type Registry struct {
	mu      sync.RWMutex
	regions map[string]Bounds
}

func NewRegistry() *Registry {
	return &Registry{regions: make(map[string]Bounds)}
}

// Upsert inserts or replaces the region named by b.ID.
func (r *Registry) Upsert(b Bounds) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regions[b.ID] = b
}

// Remove deletes a region. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.regions, id)
}

func (r *Registry) Get(id string) (Bounds, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.regions[id]
	return b, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.regions)
}

// Snapshot returns a point-in-time copy that callers may iterate freely.
func (r *Registry) Snapshot() map[string]Bounds {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Bounds, len(r.regions))
	for id, b := range r.regions {
		out[id] = b
	}
	return out
}

// List returns the regions sorted by id.
func (r *Registry) List() []Bounds {
	snap := r.Snapshot()
	out := make([]Bounds, 0, len(snap))
	for _, b := range snap {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
