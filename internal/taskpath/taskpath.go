// Package taskpath implements the dotted hierarchical address that identifies
// a node in a decomposition tree. The empty path denotes the original task.
package taskpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Root is the string form of the empty path.
const Root = "original"

// Errors returned by path mutations on the root path.
var (
	// ErrRootSibling is returned when stepping to a sibling of the original task.
	ErrRootSibling = errors.New("taskpath: original task has no siblings")

	// ErrRootAscend is returned when ascending above the original task.
	ErrRootAscend = errors.New("taskpath: cannot ascend above the original task")
)

// Path is an ordered sequence of positive integers addressing a node in the
// decomposition tree. The zero value is the root path.
type Path struct {
	parts []int
}

// New builds a path from the given components.
func New(parts ...int) Path {
	if len(parts) == 0 {
		return Path{}
	}
	p := Path{parts: make([]int, len(parts))}
	copy(p.parts, parts)
	return p
}

// IsRoot reports whether the path addresses the original task.
func (p Path) IsRoot() bool {
	return len(p.parts) == 0
}

// Depth returns the number of components, i.e. how many levels below the
// original task the node sits.
func (p Path) Depth() int {
	return len(p.parts)
}

// NextSibling advances the last component by one. It fails on the root path.
func (p *Path) NextSibling() error {
	if len(p.parts) == 0 {
		return ErrRootSibling
	}
	p.parts[len(p.parts)-1]++
	return nil
}

// Descend appends a first-child component.
func (p *Path) Descend() {
	p.parts = append(p.parts, 1)
}

// Ascend removes the last component. It fails on the root path.
func (p *Path) Ascend() error {
	if len(p.parts) == 0 {
		return ErrRootAscend
	}
	p.parts = p.parts[:len(p.parts)-1]
	return nil
}

// Clone returns an independent copy. Records stamp a clone so each keeps its
// own snapshot while the store's path keeps moving.
func (p Path) Clone() Path {
	return New(p.parts...)
}

// Equal reports component-wise equality.
func (p Path) Equal(o Path) bool {
	if len(p.parts) != len(o.parts) {
		return false
	}
	for i := range p.parts {
		if p.parts[i] != o.parts[i] {
			return false
		}
	}
	return true
}

// IsPrefixOf reports whether p is a (non-strict) prefix of o. The root path
// is a prefix of every path.
func (p Path) IsPrefixOf(o Path) bool {
	if len(p.parts) > len(o.parts) {
		return false
	}
	for i := range p.parts {
		if p.parts[i] != o.parts[i] {
			return false
		}
	}
	return true
}

// Head returns the first component, or false for the root path.
func (p Path) Head() (int, bool) {
	if len(p.parts) == 0 {
		return 0, false
	}
	return p.parts[0], true
}

// String renders the path as a dot-terminated component list, e.g. "1.2.",
// or the root sentinel for the empty path.
func (p Path) String() string {
	if len(p.parts) == 0 {
		return Root
	}
	var b strings.Builder
	for _, n := range p.parts {
		fmt.Fprintf(&b, "%d.", n)
	}
	return b.String()
}

// Parse is the inverse of String.
func Parse(s string) (Path, error) {
	if s == Root {
		return Path{}, nil
	}
	trimmed := strings.TrimSuffix(s, ".")
	if trimmed == "" {
		return Path{}, fmt.Errorf("taskpath: empty address %q", s)
	}
	fields := strings.Split(trimmed, ".")
	parts := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n <= 0 {
			return Path{}, fmt.Errorf("taskpath: invalid component %q in %q", f, s)
		}
		parts[i] = n
	}
	return Path{parts: parts}, nil
}
