package zarr

import (
	"strconv"
	"strings"
)

// ChunkKey formats a chunk index tuple into a store key, flat ("i.j.k") or
// nested ("i/j/k") per the array's layout. pathPrefix is the array's root
// key; the result is pathPrefix + "/" + key, or just key when pathPrefix is
// empty.
func ChunkKey(pathPrefix string, indices []int, nested bool) string {
	sep := "."
	if nested {
		sep = "/"
	}

	var sb strings.Builder
	if pathPrefix != "" {
		sb.WriteString(pathPrefix)
		sb.WriteString("/")
	}
	for i, idx := range indices {
		if i > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(strconv.Itoa(idx))
	}
	return sb.String()
}
