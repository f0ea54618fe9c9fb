package httpmetrics

import (
	"regexp"
	"strings"
)

const maxPathSegments = 4

var opaqueSegment = regexp.MustCompile(`^([0-9]+|[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}|[0-9a-fA-F]{32,}|[A-Za-z0-9_-]{40,})$`)

// NormalizePath turns a request path into a bounded metric label: ids and
// secrets become {param} and anything deeper than maxPathSegments is cut.
func NormalizePath(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "/"
	}

	parts := strings.Split(trimmed, "/")
	if len(parts) > maxPathSegments {
		parts = append(parts[:maxPathSegments], "...")
	}

	for i, part := range parts {
		if opaqueSegment.MatchString(part) {
			parts[i] = "{param}"
		}
	}

	return "/" + strings.Join(parts, "/")
}
