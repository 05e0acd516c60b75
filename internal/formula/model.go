package formula

import (
	"fmt"
	"strings"
)

// Model is a satisfying assignment. Boolean variables map to 0 or 1.
type Model map[Var]int64

// Vars returns the variables assigned by m, sorted by name and index.
func (m Model) Vars() []Var {
	set := make(map[Var]struct{}, len(m))
	for v := range m {
		set[v] = struct{}{}
	}
	return sortedVars(set)
}

// Lookup returns the value of name at SSA index idx.
func (m Model) Lookup(name string, idx int) (int64, bool) {
	for v, val := range m {
		if v.Name == name && v.Index == idx {
			return val, true
		}
	}
	return 0, false
}

func (m Model) String() string {
	vars := m.Vars()
	parts := make([]string, len(vars))
	for i, v := range vars {
		parts[i] = fmt.Sprintf("%s=%s", v, FormatValue(v.Sort, m[v]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// FormatValue renders a model value of the given sort.
func FormatValue(s Sort, val int64) string {
	if s == SortBool {
		if val != 0 {
			return "true"
		}
		return "false"
	}
	return fmt.Sprintf("%d", val)
}
