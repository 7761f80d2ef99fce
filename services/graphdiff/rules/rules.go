// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rules holds the configurable forbidden type-transition set used
// by conflict detection.
//
// The set is configuration, not hardcoded policy: callers extend it at
// runtime via Add/Replace, load it from a YAML file, or keep it live with
// the fsnotify-backed Watcher. Transitions are typed values evaluated by
// lookup; no rule is ever built from strings at runtime and executed.
package rules

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Transition is a directed type change, e.g. component -> function.
type Transition struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

func (t Transition) String() string {
	return t.From + " -> " + t.To
}

// Set is a concurrency-safe collection of forbidden transitions.
//
// A Set is safe for concurrent Forbidden lookups while a Watcher or caller
// replaces its contents.
type Set struct {
	mu          sync.RWMutex
	transitions map[Transition]struct{}
}

// Default returns a Set seeded with the stock forbidden transitions:
// component->function, class->interface, sync->async.
func Default() *Set {
	return New([]Transition{
		{From: "component", To: "function"},
		{From: "class", To: "interface"},
		{From: "sync", To: "async"},
	})
}

// New returns a Set containing the given transitions.
func New(transitions []Transition) *Set {
	s := &Set{transitions: make(map[Transition]struct{}, len(transitions))}
	for _, t := range transitions {
		s.transitions[t] = struct{}{}
	}
	return s
}

// Forbidden reports whether the (from, to) type transition is in the set.
func (s *Set) Forbidden(from, to string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.transitions[Transition{From: from, To: to}]
	return ok
}

// Add inserts a transition into the set.
func (s *Set) Add(t Transition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions[t] = struct{}{}
}

// Replace swaps the entire set contents atomically.
func (s *Set) Replace(transitions []Transition) {
	next := make(map[Transition]struct{}, len(transitions))
	for _, t := range transitions {
		next[t] = struct{}{}
	}
	s.mu.Lock()
	s.transitions = next
	s.mu.Unlock()
}

// List returns the transitions currently in the set, in no particular order.
func (s *Set) List() []Transition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Transition, 0, len(s.transitions))
	for t := range s.transitions {
		out = append(out, t)
	}
	return out
}

// Len returns the number of transitions in the set.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transitions)
}

// file is the YAML document shape for a rules file:
//
//	forbidden_transitions:
//	  - from: component
//	    to: function
type file struct {
	ForbiddenTransitions []Transition `yaml:"forbidden_transitions"`
}

// LoadFile reads a YAML rules file and returns its transitions.
func LoadFile(path string) ([]Transition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	for i, t := range f.ForbiddenTransitions {
		if t.From == "" || t.To == "" {
			return nil, fmt.Errorf("rules file %s: transition %d is missing from/to", path, i)
		}
	}
	return f.ForbiddenTransitions, nil
}
