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

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Undefined marks a value that was absent on one side of a comparison,
// as opposed to present-but-null. Object keys that exist in only one of
// the two inputs diff against Undefined.
type undefined struct{}

func (undefined) String() string { return "undefined" }

// Undefined is the absent-value sentinel used in FieldDiff and change
// old/new values.
var Undefined = undefined{}

// IsUndefined reports whether v is the absent-value sentinel.
func IsUndefined(v any) bool {
	_, ok := v.(undefined)
	return ok
}

// FieldDiff is one leaf difference found by the deep differ, tagged with
// the property-access path where it occurred.
type FieldDiff struct {
	Path     []string
	OldValue any
	NewValue any
}

// DeepDiff recursively compares two values of unknown shape and returns
// path-tagged leaf differences.
//
// Behavior follows the JSON object model:
//   - type-class mismatch (including null vs non-null) yields one leaf
//     diff at the current path
//   - arrays of differing length yield one diff at the array path; equal
//     lengths recurse per index
//   - objects diff over the union of keys; one-sided keys diff against
//     Undefined; ignore sets and custom comparators apply per Options
//
// Recursion depth is bounded by opts.MaxDepth (default DefaultMaxDepth);
// exceeding it returns ErrDepthExceeded since snapshot data trees are
// never legitimately that deep.
func DeepDiff(source, target any, basePath []string, opts Options) ([]FieldDiff, error) {
	run := &deepRun{opts: opts}
	diffs, err := run.diff(source, target, basePath, 0)
	if err != nil {
		return nil, err
	}
	return diffs, nil
}

// deepRun tracks per-comparison state, mainly comparator soft failures.
type deepRun struct {
	opts               Options
	comparatorFailures int
}

func (r *deepRun) diff(source, target any, path []string, depth int) ([]FieldDiff, error) {
	if depth > r.opts.maxDepth() {
		return nil, fmt.Errorf("%w at %s", ErrDepthExceeded, joinPath(path))
	}

	if cmp, ok := r.comparatorFor(path); ok {
		equal, applied := r.runComparator(cmp, path, source, target)
		if applied {
			if equal {
				return nil, nil
			}
			return []FieldDiff{{Path: clonePath(path), OldValue: source, NewValue: target}}, nil
		}
		// Comparator panicked; fall through to default comparison.
	}

	st, tt := typeClass(source), typeClass(target)
	if st != tt {
		return []FieldDiff{{Path: clonePath(path), OldValue: source, NewValue: target}}, nil
	}

	switch st {
	case classObject:
		return r.diffObjects(source.(map[string]any), target.(map[string]any), path, depth)
	case classArray:
		return r.diffArrays(source.([]any), target.([]any), path, depth)
	default:
		if !scalarEqual(source, target) {
			return []FieldDiff{{Path: clonePath(path), OldValue: source, NewValue: target}}, nil
		}
		return nil, nil
	}
}

func (r *deepRun) diffObjects(source, target map[string]any, path []string, depth int) ([]FieldDiff, error) {
	keys := make([]string, 0, len(source)+len(target))
	seen := make(map[string]struct{}, len(source)+len(target))
	for k := range source {
		keys = append(keys, k)
		seen[k] = struct{}{}
	}
	for k := range target {
		if _, dup := seen[k]; !dup {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var diffs []FieldDiff
	for _, key := range keys {
		if r.opts.skipKey(key) {
			continue
		}
		childPath := append(clonePath(path), key)
		sv, sok := source[key]
		tv, tok := target[key]
		switch {
		case !sok:
			diffs = append(diffs, FieldDiff{Path: childPath, OldValue: Undefined, NewValue: tv})
		case !tok:
			diffs = append(diffs, FieldDiff{Path: childPath, OldValue: sv, NewValue: Undefined})
		default:
			child, err := r.diff(sv, tv, childPath, depth+1)
			if err != nil {
				return nil, err
			}
			diffs = append(diffs, child...)
		}
	}
	return diffs, nil
}

func (r *deepRun) diffArrays(source, target []any, path []string, depth int) ([]FieldDiff, error) {
	if len(source) != len(target) {
		return []FieldDiff{{Path: clonePath(path), OldValue: source, NewValue: target}}, nil
	}
	var diffs []FieldDiff
	for i := range source {
		childPath := append(clonePath(path), strconv.Itoa(i))
		child, err := r.diff(source[i], target[i], childPath, depth+1)
		if err != nil {
			return nil, err
		}
		diffs = append(diffs, child...)
	}
	return diffs, nil
}

// comparatorFor looks up a custom comparator for the current position,
// preferring the full joined path over the bare key.
func (r *deepRun) comparatorFor(path []string) (Comparator, bool) {
	if len(r.opts.CustomComparators) == 0 || len(path) == 0 {
		return nil, false
	}
	if cmp, ok := r.opts.CustomComparators[joinPath(path)]; ok {
		return cmp, true
	}
	if cmp, ok := r.opts.CustomComparators[path[len(path)-1]]; ok {
		return cmp, true
	}
	return nil, false
}

// runComparator executes a user comparator, recovering panics. The second
// return reports whether the comparator result is usable; false means the
// comparator failed and the caller should use the default comparison.
func (r *deepRun) runComparator(cmp Comparator, path []string, a, b any) (equal, applied bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.comparatorFailures++
			r.opts.logger().Warn("custom comparator panicked, using default comparison",
				"path", joinPath(path), "panic", fmt.Sprint(rec))
			applied = false
		}
	}()
	return cmp(a, b), true
}

// Type classes mirror the JSON object model ("typeof" semantics over
// decoded payloads).
type valueClass int

const (
	classNull valueClass = iota
	classBool
	classNumber
	classString
	classArray
	classObject
	classOther
)

func (c valueClass) String() string {
	switch c {
	case classNull:
		return "null"
	case classBool:
		return "boolean"
	case classNumber:
		return "number"
	case classString:
		return "string"
	case classArray:
		return "array"
	case classObject:
		return "object"
	default:
		return "other"
	}
}

func typeClass(v any) valueClass {
	switch v.(type) {
	case nil, undefined:
		return classNull
	case bool:
		return classBool
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return classNumber
	case string:
		return classString
	case []any:
		return classArray
	case map[string]any:
		return classObject
	default:
		return classOther
	}
}

// scalarEqual compares two same-class scalars. Numbers compare by value so
// int(3) from in-process callers equals float64(3) from decoded JSON.
// Values outside the JSON model can have uncomparable dynamic types
// (a []string stored by an in-process caller, for example), where ==
// panics, so they go through reflect.DeepEqual instead.
func scalarEqual(a, b any) bool {
	switch typeClass(a) {
	case classNumber:
		return numberValue(a) == numberValue(b)
	case classOther:
		return reflect.DeepEqual(a, b)
	default:
		return a == b
	}
}

func numberValue(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	default:
		return 0
	}
}

func joinPath(path []string) string {
	return strings.Join(path, ".")
}

func clonePath(path []string) []string {
	out := make([]string, len(path))
	copy(out, path)
	return out
}
