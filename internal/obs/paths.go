package obs

import "strings"

// CanonicalPath collapses resource identifiers out of metric path labels so
// that label cardinality stays bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(parts) >= 3 && parts[0] == "v1" && parts[1] == "roles":
		parts[2] = ":id"
	case len(parts) >= 3 && parts[0] == "v1" && parts[1] == "users":
		parts[2] = ":id"
	case len(parts) >= 3 && parts[0] == "v1" && parts[1] == "projects":
		parts[2] = ":id"
	default:
		return path
	}
	return "/" + strings.Join(parts, "/")
}
