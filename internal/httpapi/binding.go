package httpapi

import "strings"

// methodFromBinding and pathFromBinding split a client-supplied "METHOD
// /path" string so it can be re-normalized through ash.NormalizeBinding
// rather than trusted verbatim.
func methodFromBinding(raw string) string {
	parts := strings.SplitN(strings.TrimSpace(raw), " ", 2)
	return parts[0]
}

func pathFromBinding(raw string) string {
	parts := strings.SplitN(strings.TrimSpace(raw), " ", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
