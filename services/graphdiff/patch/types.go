// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package patch compiles a GraphDiff into an ordered, checksummed list of
// primitive operations and replays such lists against snapshots.
//
// Operation order is semantically significant: the compiler emits
// operations in detection order and the applier runs them in that order.
// The checksum binds the exact ordered operation list; any reordering or
// mutation invalidates it.
package patch

import (
	"errors"
	"fmt"
	"time"
)

// Op is a primitive patch operation type.
type Op string

// Op values. The applier executes add, remove, replace, and test; move
// and copy are part of the wire vocabulary for external producers but are
// rejected at apply time.
const (
	OpAdd     Op = "add"
	OpRemove  Op = "remove"
	OpReplace Op = "replace"
	OpMove    Op = "move"
	OpCopy    Op = "copy"
	OpTest    Op = "test"
)

// Operation is one primitive step of a patch. Path uses JSON-pointer
// syntax rooted at the snapshot: /nodes/{id} or /edges/{id}/{segments...}.
type Operation struct {
	Op    Op     `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
	From  string `json:"from,omitempty"`
}

// Metadata carries patch provenance.
type Metadata struct {
	CreatedAt   time.Time `json:"createdAt"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Patch is an immutable, ordered, checksummed operation list able to
// transform one snapshot toward another. It is a plain value object,
// JSON-serializable for storage and transport.
type Patch struct {
	ID            string      `json:"id"`
	SourceVersion string      `json:"sourceVersion"`
	TargetVersion string      `json:"targetVersion"`
	Operations    []Operation `json:"operations"`
	Checksum      string      `json:"checksum"`
	Metadata      Metadata    `json:"metadata"`
}

// SkippedChange reports a change the compiler could not express as an
// operation, instead of silently dropping it.
type SkippedChange struct {
	EntityID string `json:"entityId"`
	Kind     string `json:"kind"`
	Reason   string `json:"reason"`
}

// Sentinel errors for patching.
var (
	// ErrEntityNotFound indicates a remove/replace targeted an entity id
	// absent from the snapshot being patched.
	ErrEntityNotFound = errors.New("patch target entity not found")

	// ErrMalformedPath indicates an operation path that cannot be parsed
	// or applied.
	ErrMalformedPath = errors.New("malformed patch path")

	// ErrChecksumMismatch indicates the patch content does not match its
	// recorded checksum; apply refuses to run any operation.
	ErrChecksumMismatch = errors.New("patch checksum mismatch")

	// ErrTestFailed indicates a test operation found a different value
	// than expected.
	ErrTestFailed = errors.New("patch test operation failed")
)

// OpError wraps a failure with the index and operation that caused it.
// Operations before Index have already been applied to the working copy.
type OpError struct {
	Index int
	Op    Operation
	Err   error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("operation %d (%s %s): %v", e.Index, e.Op.Op, e.Op.Path, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }
