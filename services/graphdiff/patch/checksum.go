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
	"encoding/hex"
	"encoding/json"
	"fmt"

	"lukechampine.com/blake3"
)

// Checksum computes the order-sensitive content hash of an operation list:
// BLAKE3-256 over the canonical JSON serialization of the ordered slice.
//
// Operations are normalized through a JSON decode/encode cycle first, so
// typed values (in-process patches) and their decoded map form (patches
// that crossed the wire) hash identically. encoding/json sorts map keys,
// which makes the normalized serialization deterministic.
func Checksum(ops []Operation) (string, error) {
	raw, err := json.Marshal(ops)
	if err != nil {
		return "", fmt.Errorf("serialize operations for checksum: %w", err)
	}
	var normalized []Operation
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return "", fmt.Errorf("normalize operations for checksum: %w", err)
	}
	canonical, err := json.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("serialize operations for checksum: %w", err)
	}
	sum := blake3.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Verify recomputes the patch checksum and reports whether it matches the
// recorded one.
func (p *Patch) Verify() error {
	sum, err := Checksum(p.Operations)
	if err != nil {
		return err
	}
	if sum != p.Checksum {
		return fmt.Errorf("%w: recorded %s, computed %s", ErrChecksumMismatch, p.Checksum, sum)
	}
	return nil
}
