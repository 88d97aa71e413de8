// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package match

import "errors"

// Wildcard characters understood by Compile
const (
	AnyByte byte = '?'
	AnyRun  byte = '*'
)

// ErrNoPatterns is returned by Compile when called without patterns
var ErrNoPatterns = errors.New("no patterns")

// Pattern pairs an expression with the value reported when it matches
type Pattern[T any] struct {
	Expr  string
	Value T
}

// Wildcard matches a fixed set of patterns in parallel. Each pattern is
// simulated as a small NFA whose state vectors are allocated once in Compile.
type Wildcard[T any] struct {
	patterns []Pattern[T]
	cur      [][]bool
	nxt      [][]bool
	value    T
	matched  int
}

// Compile builds a matcher. '?' matches any one byte, '*' any run of bytes.
func Compile[T any](patterns ...Pattern[T]) (*Wildcard[T], error) {
	if len(patterns) == 0 {
		return nil, ErrNoPatterns
	}
	w := &Wildcard[T]{
		patterns: patterns,
		cur:      make([][]bool, len(patterns)),
		nxt:      make([][]bool, len(patterns)),
		matched:  -1,
	}
	for i, p := range patterns {
		if len(p.Expr) == 0 {
			return nil, errors.New("empty pattern")
		}
		w.cur[i] = make([]bool, len(p.Expr)+1)
		w.nxt[i] = make([]bool, len(p.Expr)+1)
	}
	w.Reset()
	return w, nil
}

// MustCompile is like Compile but panics on error
func MustCompile[T any](patterns ...Pattern[T]) *Wildcard[T] {
	w, err := Compile(patterns...)
	if err != nil {
		panic(err)
	}
	return w
}

// Reset returns the matcher to its start state
func (w *Wildcard[T]) Reset() {
	for i, p := range w.patterns {
		states := w.cur[i]
		clear(states)
		states[0] = true
		closure(p.Expr, states)
	}
}

// Match consumes one byte. After Match or Error the matcher is back at its
// start state and the next byte begins a new candidate.
func (w *Wildcard[T]) Match(b byte) Status {
	alive := 0
	completed := -1
	for i, p := range w.patterns {
		cur, nxt := w.cur[i], w.nxt[i]
		clear(nxt)
		stepped := false
		for pos := 0; pos < len(p.Expr); pos++ {
			if !cur[pos] {
				continue
			}
			switch c := p.Expr[pos]; {
			case c == AnyRun:
				nxt[pos] = true
				stepped = true
			case c == AnyByte || c == b:
				nxt[pos+1] = true
				stepped = true
			}
		}
		if stepped {
			closure(p.Expr, nxt)
			if nxt[len(p.Expr)] {
				if completed < 0 {
					completed = i
				}
			}
			for pos := 0; pos < len(p.Expr); pos++ {
				if nxt[pos] {
					alive++
					break
				}
			}
		}
		w.cur[i], w.nxt[i] = nxt, cur
	}

	if completed >= 0 {
		w.matched = completed
		w.value = w.patterns[completed].Value
		w.Reset()
		return Match
	}
	switch alive {
	case 0:
		w.Reset()
		return Error
	case 1:
		return WillMatch
	default:
		return Ok
	}
}

// Value returns the value of the pattern that produced the last Match
func (w *Wildcard[T]) Value() T {
	return w.value
}

// Matched returns the index of the pattern that produced the last Match, or -1
func (w *Wildcard[T]) Matched() int {
	return w.matched
}

// MatchAll feeds data through the matcher and returns the final status
func (w *Wildcard[T]) MatchAll(data []byte) Status {
	return All(w, data)
}

// closure marks the positions reachable through '*' matching the empty run
func closure(expr string, states []bool) {
	for pos := 0; pos < len(expr); pos++ {
		if states[pos] && expr[pos] == AnyRun {
			states[pos+1] = true
		}
	}
}
