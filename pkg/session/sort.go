package session

import (
	"sort"
	"strings"

	"github.com/quocson95/ferry/pkg/filesys"
)

// SortColumn is the column a pane is ordered by
type SortColumn int

const (
	SortByName SortColumn = iota
	SortByModified
	SortByKind
	SortBySize
)

var sortColumnNames = []string{"name", "modified", "kind", "size"}

func (c SortColumn) String() string {
	if c < 0 || int(c) >= len(sortColumnNames) {
		return "name"
	}
	return sortColumnNames[c]
}

// ParseSortColumn maps a settings value back to a column
func ParseSortColumn(s string) SortColumn {
	for i, name := range sortColumnNames {
		if strings.EqualFold(s, name) {
			return SortColumn(i)
		}
	}
	return SortByName
}

// SortDirection is ascending or descending
type SortDirection int

const (
	SortAsc SortDirection = iota
	SortDesc
)

func (d SortDirection) String() string {
	if d == SortDesc {
		return "desc"
	}
	return "asc"
}

// ParseSortDirection maps a settings value back to a direction
func ParseSortDirection(s string) SortDirection {
	if strings.EqualFold(s, "desc") {
		return SortDesc
	}
	return SortAsc
}

// ToggleSort returns the ordering after the user picked column: the same
// column flips direction, another column starts ascending.
func ToggleSort(current SortColumn, dir SortDirection, column SortColumn) (SortColumn, SortDirection) {
	if column == current {
		if dir == SortAsc {
			return column, SortDesc
		}
		return column, SortAsc
	}
	return column, SortAsc
}

// SortEntries returns a sorted copy of entries. The order is stable and the
// ".." entry always comes first regardless of column or direction.
func SortEntries(entries []filesys.FileEntry, column SortColumn, dir SortDirection) []filesys.FileEntry {
	sorted := make([]filesys.FileEntry, len(entries))
	copy(sorted, entries)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.IsParent() != b.IsParent() {
			return a.IsParent()
		}
		c := compareEntries(a, b, column)
		if dir == SortDesc {
			return c > 0
		}
		return c < 0
	})
	return sorted
}

func compareEntries(a, b filesys.FileEntry, column SortColumn) int {
	switch column {
	case SortByModified:
		switch {
		case a.ModifiedAt.Before(b.ModifiedAt):
			return -1
		case a.ModifiedAt.After(b.ModifiedAt):
			return 1
		}
	case SortByKind:
		// Directories before files when ascending
		if a.Kind != b.Kind {
			if a.IsDir() {
				return -1
			}
			return 1
		}
	case SortBySize:
		switch {
		case a.Size < b.Size:
			return -1
		case a.Size > b.Size:
			return 1
		}
	default:
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	}
	return 0
}
