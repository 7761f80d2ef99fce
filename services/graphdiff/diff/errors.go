// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diff

import "errors"

// Sentinel errors for comparison.
var (
	// ErrNilSnapshot indicates a nil source or target snapshot.
	ErrNilSnapshot = errors.New("snapshot must not be nil")

	// ErrDepthExceeded indicates the deep differ hit its recursion bound,
	// which only happens when a caller fed it a cyclic structure.
	ErrDepthExceeded = errors.New("maximum diff depth exceeded (cyclic input?)")
)
