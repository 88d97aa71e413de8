// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ring

import (
	"bytes"
	"io"
)

// View is a read-only window into a Buffer. It may straddle the wrap point and
// is only valid until the next Fill.
type View struct {
	a, b []byte
}

// Len returns the number of bytes in the view
func (v View) Len() int {
	return len(v.a) + len(v.b)
}

// At returns the i'th byte
func (v View) At(i int) byte {
	if i < len(v.a) {
		return v.a[i]
	}
	return v.b[i-len(v.a)]
}

// IndexByte returns the index of the first c, or -1
func (v View) IndexByte(c byte) int {
	if i := bytes.IndexByte(v.a, c); i >= 0 {
		return i
	}
	if i := bytes.IndexByte(v.b, c); i >= 0 {
		return len(v.a) + i
	}
	return -1
}

// Slice returns the sub-view [i, j)
func (v View) Slice(i, j int) View {
	if i < 0 || j < i || j > v.Len() {
		panic("ring: view slice out of range")
	}
	la := len(v.a)
	switch {
	case j <= la:
		return View{a: v.a[i:j]}
	case i >= la:
		return View{a: v.b[i-la : j-la]}
	default:
		return View{a: v.a[i:], b: v.b[:j-la]}
	}
}

// HasPrefix reports whether the view starts with p
func (v View) HasPrefix(p []byte) bool {
	if len(p) > v.Len() {
		return false
	}
	for i, c := range p {
		if v.At(i) != c {
			return false
		}
	}
	return true
}

// AppendTo appends the view to dst
func (v View) AppendTo(dst []byte) []byte {
	dst = append(dst, v.a...)
	return append(dst, v.b...)
}

// WriteTo writes the view to w
func (v View) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(v.a)
	if err != nil || len(v.b) == 0 {
		return int64(n), err
	}
	m, err := w.Write(v.b)
	return int64(n + m), err
}

// String copies the view into a string
func (v View) String() string {
	return string(v.AppendTo(make([]byte, 0, v.Len())))
}
