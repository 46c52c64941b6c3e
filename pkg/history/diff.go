package history

import (
	"sort"

	"github.com/cgast/envcheck/pkg/check"
)

// ChangeType classifies one difference between two runs.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeRemoved  ChangeType = "removed"
	ChangeModified ChangeType = "modified"
)

// Change records how one requirement differs between two runs.
type Change struct {
	Name   string        `json:"name" yaml:"name"`
	Type   ChangeType    `json:"type" yaml:"type"`
	Before *check.Export `json:"before,omitempty" yaml:"before,omitempty"`
	After  *check.Export `json:"after,omitempty" yaml:"after,omitempty"`
}

// Diff compares two runs by requirement name. An entry counts as modified
// when its probed version, result or requirement changed. Changes are
// ordered by name.
func Diff(a, b Run) []Change {
	before := index(a.Results)
	after := index(b.Results)

	var changes []Change
	for name, x := range before {
		y, ok := after[name]
		switch {
		case !ok:
			changes = append(changes, Change{Name: name, Type: ChangeRemoved, Before: x})
		case x.Version != y.Version || x.Result != y.Result ||
			x.Required != y.Required || x.IsHardlyRequired != y.IsHardlyRequired:
			changes = append(changes, Change{Name: name, Type: ChangeModified, Before: x, After: y})
		}
	}
	for name, y := range after {
		if _, ok := before[name]; !ok {
			changes = append(changes, Change{Name: name, Type: ChangeAdded, After: y})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Name < changes[j].Name
	})
	return changes
}

func index(results []check.Export) map[string]*check.Export {
	m := make(map[string]*check.Export, len(results))
	for i := range results {
		m[results[i].Name] = &results[i]
	}
	return m
}
