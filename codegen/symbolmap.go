package codegen

import (
	"sort"

	"github.com/beevik/prefixtree/v2"
)

// SymbolMap records the final address of every published label and
// republished struct field, and supports prefix search for the CLI's
// `symbols --prefix` command. Addresses are stored in the teacher's own
// github.com/beevik/prefixtree/v2, used the way host/settings.go indexes
// settings fields by name; Prefix scans the list of published names.
type SymbolMap struct {
	tree    *prefixtree.Tree[int]
	ordered []string
}

// NewSymbolMap creates an empty symbol map.
func NewSymbolMap() *SymbolMap {
	return &SymbolMap{tree: prefixtree.New[int]()}
}

// Set publishes name at address. Re-publishing the same name overwrites
// its address (struct field republishing can occur once per struct
// instance, by construction, so collisions here indicate a genuine
// duplicate name the evaluator should have already rejected).
func (m *SymbolMap) Set(name string, address int) {
	m.tree.Add(name, address)
	m.ordered = append(m.ordered, name)
}

// Get returns the address published under the exact name.
func (m *SymbolMap) Get(name string) (int, bool) {
	addr, err := m.tree.FindValue(name)
	if err != nil {
		return 0, false
	}
	// FindValue also accepts an unambiguous prefix; only an exact name counts.
	for _, published := range m.ordered {
		if published == name {
			return addr, true
		}
	}
	return 0, false
}

// Prefix returns every published name beginning with p, sorted.
func (m *SymbolMap) Prefix(p string) []string {
	var out []string
	for _, name := range m.ordered {
		if len(name) >= len(p) && name[:len(p)] == p {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Names returns every published name in publication order.
func (m *SymbolMap) Names() []string {
	return append([]string(nil), m.ordered...)
}
