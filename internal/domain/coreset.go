package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// CoreSet is an ordered set of logical CPU core indices. The zero value is the
// empty set. Mutating operations return a new set; callers treat a CoreSet as
// immutable once handed to another component.
type CoreSet struct {
	indices []int
}

// NewCoreSet builds a core set from the given indices. Duplicates are dropped
// and the result is sorted.
func NewCoreSet(indices ...int) CoreSet {
	seen := make(map[int]struct{}, len(indices))
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, i)
	}
	sort.Ints(out)
	return CoreSet{indices: out}
}

// FullCoreSet returns the set {0, 1, ..., n-1}.
func FullCoreSet(n int) CoreSet {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return CoreSet{indices: out}
}

// ParseCoreSet parses a cpuset string in Docker/taskset syntax, e.g. "0,1,3"
// or "0-2,4". An empty string parses to the empty set.
func ParseCoreSet(s string) (CoreSet, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CoreSet{}, nil
	}
	var indices []int
	for _, segment := range strings.Split(s, ",") {
		segment = strings.TrimSpace(segment)
		if lo, hi, ok := strings.Cut(segment, "-"); ok {
			start, err := strconv.Atoi(lo)
			if err != nil {
				return CoreSet{}, fmt.Errorf("%w: bad cpuset segment %q", ErrInvalidArgument, segment)
			}
			end, err := strconv.Atoi(hi)
			if err != nil || end < start {
				return CoreSet{}, fmt.Errorf("%w: bad cpuset range %q", ErrInvalidArgument, segment)
			}
			for i := start; i <= end; i++ {
				indices = append(indices, i)
			}
			continue
		}
		i, err := strconv.Atoi(segment)
		if err != nil {
			return CoreSet{}, fmt.Errorf("%w: bad cpuset index %q", ErrInvalidArgument, segment)
		}
		indices = append(indices, i)
	}
	return NewCoreSet(indices...), nil
}

// Size returns the number of cores in the set.
func (c CoreSet) Size() int { return len(c.indices) }

// Empty reports whether the set contains no cores.
func (c CoreSet) Empty() bool { return len(c.indices) == 0 }

// Contains reports whether core i is in the set.
func (c CoreSet) Contains(i int) bool {
	for _, v := range c.indices {
		if v == i {
			return true
		}
	}
	return false
}

// Indices returns a copy of the sorted core indices.
func (c CoreSet) Indices() []int {
	out := make([]int, len(c.indices))
	copy(out, c.indices)
	return out
}

// With returns a new set that also contains core i.
func (c CoreSet) With(i int) CoreSet {
	return NewCoreSet(append(c.Indices(), i)...)
}

// Without returns a new set with core i removed.
func (c CoreSet) Without(i int) CoreSet {
	out := make([]int, 0, len(c.indices))
	for _, v := range c.indices {
		if v != i {
			out = append(out, v)
		}
	}
	return CoreSet{indices: out}
}

// Union returns the union of the two sets.
func (c CoreSet) Union(other CoreSet) CoreSet {
	return NewCoreSet(append(c.Indices(), other.indices...)...)
}

// Intersect returns the intersection of the two sets.
func (c CoreSet) Intersect(other CoreSet) CoreSet {
	out := make([]int, 0, len(c.indices))
	for _, v := range c.indices {
		if other.Contains(v) {
			out = append(out, v)
		}
	}
	return CoreSet{indices: out}
}

// Difference returns the cores in c that are not in other.
func (c CoreSet) Difference(other CoreSet) CoreSet {
	out := make([]int, 0, len(c.indices))
	for _, v := range c.indices {
		if !other.Contains(v) {
			out = append(out, v)
		}
	}
	return CoreSet{indices: out}
}

// Equal reports whether both sets contain exactly the same cores.
func (c CoreSet) Equal(other CoreSet) bool {
	if len(c.indices) != len(other.indices) {
		return false
	}
	for i, v := range c.indices {
		if other.indices[i] != v {
			return false
		}
	}
	return true
}

// Clone returns a copy of the set.
func (c CoreSet) Clone() CoreSet {
	return CoreSet{indices: c.Indices()}
}

// String renders the set in Docker cpuset syntax, e.g. "0,1,3".
func (c CoreSet) String() string {
	parts := make([]string, len(c.indices))
	for i, v := range c.indices {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
