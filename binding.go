package ash

import "strings"

// NormalizeBinding produces the canonical "METHOD /path" endpoint string a
// proof is bound to (spec §4.4, DATA MODEL Binding row). The method is
// uppercased; any query string is stripped; duplicate slashes collapse to
// one; a trailing slash is removed unless the path is exactly "/".
func NormalizeBinding(method, path string) (string, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return "", newError(ErrMalformedRequest, "binding method must not be empty")
	}

	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") {
		return "", newError(ErrMalformedRequest, "binding path must start with '/'")
	}
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		path = path[:idx]
	}

	path = collapseSlashes(path)
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}

	return method + " " + path, nil
}

func collapseSlashes(path string) string {
	var sb strings.Builder
	sb.Grow(len(path))
	prevSlash := false
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
