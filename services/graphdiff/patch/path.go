// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package patch

import (
	"fmt"
	"strings"
)

// Path segments use JSON-pointer escaping: "~" encodes as "~0" and
// "/" as "~1", so entity ids containing slashes survive round trips.

func escapeSegment(s string) string {
	s = strings.ReplaceAll(s, "~", "~0")
	return strings.ReplaceAll(s, "/", "~1")
}

func unescapeSegment(s string) string {
	s = strings.ReplaceAll(s, "~1", "/")
	return strings.ReplaceAll(s, "~0", "~")
}

// buildPath joins a collection name, entity id, and optional sub-path
// steps into an operation path.
func buildPath(collection, id string, steps []string) string {
	var b strings.Builder
	b.WriteByte('/')
	b.WriteString(collection)
	b.WriteByte('/')
	b.WriteString(escapeSegment(id))
	for _, step := range steps {
		b.WriteByte('/')
		b.WriteString(escapeSegment(step))
	}
	return b.String()
}

// parsePath splits an operation path into collection, entity id, and
// remaining sub-path steps. The collection must be "nodes" or "edges".
func parsePath(path string) (collection, id string, steps []string, err error) {
	if !strings.HasPrefix(path, "/") {
		return "", "", nil, fmt.Errorf("%w: %q does not start with /", ErrMalformedPath, path)
	}
	parts := strings.Split(path[1:], "/")
	if len(parts) < 2 {
		return "", "", nil, fmt.Errorf("%w: %q needs at least collection and id", ErrMalformedPath, path)
	}
	collection = parts[0]
	if collection != "nodes" && collection != "edges" {
		return "", "", nil, fmt.Errorf("%w: unknown collection %q", ErrMalformedPath, collection)
	}
	id = unescapeSegment(parts[1])
	if id == "" {
		return "", "", nil, fmt.Errorf("%w: empty entity id in %q", ErrMalformedPath, path)
	}
	for _, p := range parts[2:] {
		steps = append(steps, unescapeSegment(p))
	}
	return collection, id, steps, nil
}
