package filesys

import "strings"

// Paths are opaque strings owned by one side. Every helper here takes the
// side's separator instead of assuming "/" or the host OS separator.

// Join appends name to dir using sep
func Join(sep, dir, name string) string {
	if dir == "" {
		return name
	}
	if strings.HasSuffix(dir, sep) {
		return dir + name
	}
	return dir + sep + name
}

// Parent returns the parent of p. The root (and a bare volume such as "C:\")
// is its own parent.
func Parent(sep, p string) string {
	trimmed := trimTrailing(sep, p)
	idx := strings.LastIndex(trimmed, sep)
	switch {
	case idx < 0:
		if isVolume(trimmed) {
			return trimmed + sep
		}
		return p
	case idx == 0:
		return sep
	}
	parent := trimmed[:idx]
	if isVolume(parent) {
		return parent + sep
	}
	return parent
}

// Base returns the last element of p
func Base(sep, p string) string {
	trimmed := trimTrailing(sep, p)
	if idx := strings.LastIndex(trimmed, sep); idx >= 0 {
		return trimmed[idx+len(sep):]
	}
	return trimmed
}

// IsRoot reports whether p has no parent
func IsRoot(sep, p string) bool {
	return Parent(sep, p) == p
}

// ValidName reports whether name can be used as a single path element
func ValidName(sep, name string) bool {
	if strings.TrimSpace(name) == "" || name == "." || name == ParentName {
		return false
	}
	return !strings.Contains(name, sep)
}

func trimTrailing(sep, p string) string {
	for len(p) > len(sep) && strings.HasSuffix(p, sep) && !isVolume(strings.TrimSuffix(p, sep)) {
		p = strings.TrimSuffix(p, sep)
	}
	return p
}

// isVolume matches a windows drive designator like "C:"
func isVolume(p string) bool {
	return len(p) == 2 && p[1] == ':'
}
