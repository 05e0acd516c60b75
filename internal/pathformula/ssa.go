package pathformula

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/exp/maps"
)

// DefaultIndex is the SSA index of a variable that has not been written on
// the path yet.
const DefaultIndex = 1

// SSAMap maps variable names to their current SSA index. The zero value is
// an empty map. SSAMaps are immutable: With returns a modified copy.
type SSAMap struct {
	indices map[string]int
}

// Index returns the current index of name.
func (m SSAMap) Index(name string) int {
	if idx, ok := m.indices[name]; ok {
		return idx
	}
	return DefaultIndex
}

// With returns a copy of m where name has index idx.
func (m SSAMap) With(name string, idx int) SSAMap {
	indices := maps.Clone(m.indices)
	if indices == nil {
		indices = make(map[string]int, 1)
	}
	indices[name] = idx
	return SSAMap{indices: indices}
}

// Fresh returns a copy of m where name has a new, unused index, together
// with that index.
func (m SSAMap) Fresh(name string) (SSAMap, int) {
	idx := m.Index(name) + 1
	return m.With(name, idx), idx
}

// Names returns the variables written on the path, sorted.
func (m SSAMap) Names() []string {
	names := maps.Keys(m.indices)
	sort.Strings(names)
	return names
}

func (m SSAMap) String() string {
	names := m.Names()
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s@%d", n, m.indices[n])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
