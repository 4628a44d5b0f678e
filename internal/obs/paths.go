package obs

import "strings"

// CanonicalPath collapses resource identifiers in metric labels so that
// per-wallet and per-case paths do not explode label cardinality.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(parts) >= 3 && parts[0] == "v1" && parts[1] == "notices":
		parts[2] = ":case"
	case len(parts) >= 3 && parts[0] == "v1" && parts[1] == "wallets":
		parts[2] = ":address"
	case len(parts) >= 3 && parts[0] == "v1" && parts[1] == "servers":
		parts[2] = ":address"
	default:
		return path
	}
	return "/" + strings.Join(parts, "/")
}
