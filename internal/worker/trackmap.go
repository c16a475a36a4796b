package worker

import (
	"sort"
	"sync"

	"github.com/zsiec/xine-engine/internal/media"
)

// trackMap implements spec.md §4.6b's audio/spu track map: distinct
// codec families observed on the fifo are assigned ascending logical
// channel indices (stream 0, 1, 2, ...) in family-sorted order, so the UI
// always lists tracks by a stable ordering rather than arrival order.
type trackMap struct {
	mu       sync.Mutex
	kinds    []media.Kind
	selected int
}

func newTrackMap() *trackMap {
	return &trackMap{}
}

// observe registers kind's codec family (if new) at its sorted position
// and reports whether the insertion landed at-or-before the currently
// selected index — meaning the logical channel the caller thinks is
// selected now refers to a different family, so any decoder installed
// for it is stale and must be reinitialized. A selected index that named
// no track before the insertion (e.g. the very first observation) is not
// reported.
func (t *trackMap) observe(kind media.Kind) bool {
	family := kind.Family()

	t.mu.Lock()
	defer t.mu.Unlock()

	idx := sort.Search(len(t.kinds), func(i int) bool { return t.kinds[i] >= family })
	if idx < len(t.kinds) && t.kinds[idx] == family {
		return false
	}
	oldLen := len(t.kinds)
	t.kinds = append(t.kinds, 0)
	copy(t.kinds[idx+1:], t.kinds[idx:])
	t.kinds[idx] = family
	return idx <= t.selected && t.selected < oldLen
}

// selectedKind returns the codec family of the currently selected
// logical channel, or false if no tracks have been observed yet.
func (t *trackMap) selectedKind() (media.Kind, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.selected < 0 || t.selected >= len(t.kinds) {
		return 0, false
	}
	return t.kinds[t.selected], true
}

// setSelected changes the selected logical channel index, reporting
// whether it actually changed.
func (t *trackMap) setSelected(idx int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx == t.selected {
		return false
	}
	t.selected = idx
	return true
}

// reset clears all observed tracks and the selection, used on
// CONTROL_START.
func (t *trackMap) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.kinds = t.kinds[:0]
	t.selected = 0
}
