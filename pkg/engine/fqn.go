package engine

import (
	"fmt"
	"strings"
)

// FQN is a fully-qualified entity name as an ordered list of path segments.
// The slash-joined form ("/vnf1/tenantA/comp") is only used on the wire.
type FQN []string

// ParseFQN parses a slash-delimited absolute path.
func ParseFQN(s string) (FQN, error) {
	if s == "" {
		return nil, fmt.Errorf("empty fqn")
	}
	if !strings.HasPrefix(s, "/") {
		return nil, fmt.Errorf("fqn %q must start with '/'", s)
	}

	segments := strings.Split(s[1:], "/")
	for _, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("fqn %q contains an empty segment", s)
		}
	}

	return FQN(segments), nil
}

// MustParseFQN is like ParseFQN but panics on error. Intended for tests and
// constants.
func MustParseFQN(s string) FQN {
	f, err := ParseFQN(s)
	if err != nil {
		panic(err)
	}
	return f
}

// String returns the slash-joined form.
func (f FQN) String() string {
	if len(f) == 0 {
		return ""
	}
	return "/" + strings.Join(f, "/")
}

// Depth returns the number of segments.
func (f FQN) Depth() int {
	return len(f)
}

// Leaf returns the last segment.
func (f FQN) Leaf() string {
	if len(f) == 0 {
		return ""
	}
	return f[len(f)-1]
}

// Parent returns the path truncated by one segment.
func (f FQN) Parent() FQN {
	if len(f) <= 1 {
		return nil
	}
	return f[:len(f)-1:len(f)-1]
}

// Truncate returns the ancestor at the given depth.
func (f FQN) Truncate(depth int) FQN {
	if depth >= len(f) {
		return f
	}
	return f[:depth:depth]
}

// Child returns a new path with name appended.
func (f FQN) Child(name string) FQN {
	out := make(FQN, len(f), len(f)+1)
	copy(out, f)
	return append(out, name)
}

// Equal reports whether both paths have identical segments.
func (f FQN) Equal(other FQN) bool {
	if len(f) != len(other) {
		return false
	}
	for i := range f {
		if f[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is an ancestor of, or equal to, f.
func (f FQN) HasPrefix(prefix FQN) bool {
	if len(prefix) > len(f) {
		return false
	}
	return f[:len(prefix)].Equal(prefix)
}

// MarshalText implements encoding.TextMarshaler.
func (f FQN) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *FQN) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*f = nil
		return nil
	}
	parsed, err := ParseFQN(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// resolveNetworkName normalizes a network reference relative to a tenant.
// Absolute names are returned unchanged.
func resolveNetworkName(name string, tenant FQN) string {
	if name == "" || strings.HasPrefix(name, "/") || tenant == nil {
		return name
	}
	return tenant.String() + "/" + name
}

// leafOf returns the last segment of a slash-joined path.
func leafOf(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
