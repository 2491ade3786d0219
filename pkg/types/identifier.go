package types

import "strings"

// Separator joins the segments of a namespaced identifier.
const Separator = "::"

// ID is an immutable namespaced identifier such as "Math::sin" or
// "Array<float, 4>::size". Segments may contain template brackets, which can
// themselves contain "::" ("Array<N::S, 2>"), so splitting tracks bracket
// depth. The zero ID is the root namespace.
type ID struct {
	path string
}

// NewID builds an identifier from segments. Empty segments are dropped.
func NewID(segments ...string) ID {
	var parts []string
	for _, s := range segments {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return ID{path: strings.Join(parts, Separator)}
}

// ParseID parses a "::"-separated identifier. A leading "::" is ignored.
func ParseID(s string) ID {
	return ID{path: strings.TrimPrefix(s, Separator)}
}

// IsRoot reports whether id is the root namespace.
func (id ID) IsRoot() bool { return id.path == "" }

// IsValid reports whether id names anything below the root.
func (id ID) IsValid() bool { return id.path != "" }

func (id ID) String() string { return id.path }

// Segments splits id into its components, respecting template brackets.
func (id ID) Segments() []string {
	if id.path == "" {
		return nil
	}
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(id.path); i++ {
		switch id.path[i] {
		case '<', '(':
			depth++
		case '>', ')':
			depth--
		case ':':
			if depth == 0 && i+1 < len(id.path) && id.path[i+1] == ':' {
				out = append(out, id.path[start:i])
				i++
				start = i + 1
			}
		}
	}
	return append(out, id.path[start:])
}

// Name is the last segment.
func (id ID) Name() string {
	segs := id.Segments()
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

// Parent drops the last segment. The parent of a single segment is the root.
func (id ID) Parent() ID {
	segs := id.Segments()
	if len(segs) <= 1 {
		return ID{}
	}
	return NewID(segs[:len(segs)-1]...)
}

// Child appends a segment (which may itself be qualified).
func (id ID) Child(name string) ID {
	if id.path == "" {
		return ParseID(name)
	}
	if name == "" {
		return id
	}
	return ID{path: id.path + Separator + name}
}

// Join appends all segments of other.
func (id ID) Join(other ID) ID { return id.Child(other.path) }

// IsQualified reports whether id has more than one segment.
func (id ID) IsQualified() bool { return len(id.Segments()) > 1 }

// First is the leading segment.
func (id ID) First() string {
	segs := id.Segments()
	if len(segs) == 0 {
		return ""
	}
	return segs[0]
}

// Depth is the number of segments.
func (id ID) Depth() int { return len(id.Segments()) }

// IsParentOf reports whether other lies strictly below id. The root is the
// parent of everything except itself.
func (id ID) IsParentOf(other ID) bool {
	if id.path == "" {
		return other.path != ""
	}
	return strings.HasPrefix(other.path, id.path+Separator)
}

// Contains reports whether other is id or lies below it.
func (id ID) Contains(other ID) bool {
	return id == other || id.IsParentOf(other)
}

// Relocate replaces the prefix from with to. Identifiers outside from are
// returned unchanged.
func (id ID) Relocate(from, to ID) ID {
	if id == from {
		return to
	}
	if !from.IsParentOf(id) {
		return id
	}
	rest := id.path
	if from.path != "" {
		rest = strings.TrimPrefix(id.path, from.path+Separator)
	}
	return to.Child(rest)
}

// StripTemplate drops the template argument list from the last segment:
// "Array<float, 4>" becomes "Array".
func (id ID) StripTemplate() ID {
	name := id.Name()
	if i := strings.IndexByte(name, '<'); i > 0 {
		return id.Parent().Child(name[:i])
	}
	return id
}

// Mentions reports whether the identifier string s names something inside
// ns, either directly or through a template argument.
func Mentions(s string, ns ID) bool {
	prefix := ns.String() + Separator
	return strings.HasPrefix(s, prefix) || strings.Contains(s, "<"+prefix) || strings.Contains(s, " "+prefix)
}
