// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ring

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

// chunkReader returns at most n bytes per Read
type chunkReader struct {
	data []byte
	n    int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := c.n
	if n > len(p) {
		n = len(p)
	}
	if n > len(c.data) {
		n = len(c.data)
	}
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

// ============================================================
// Fill / Get Tests
// ============================================================

func TestFill_SingleRead(t *testing.T) {
	r := New(8)
	src := &chunkReader{data: []byte("abcdefghij"), n: 3}

	n, err := r.Fill(src)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 bytes, got %d (%v)", n, err)
	}
	if r.Remaining() != 3 {
		t.Errorf("expected 3 remaining, got %d", r.Remaining())
	}
}

func TestFill_Backpressure(t *testing.T) {
	r := New(4)
	src := strings.NewReader("abcdef")

	if n, _ := r.Fill(src); n != 4 {
		t.Fatalf("expected 4, got %d", n)
	}
	if !r.IsFull() {
		t.Fatal("buffer should be full")
	}
	if n, err := r.Fill(src); n != 0 || err != nil {
		t.Fatalf("full fill should be (0, nil), got (%d, %v)", n, err)
	}

	// consuming without moving the mark keeps the candidate pinned
	r.Get(true)
	r.Get(false)
	if !r.IsFull() {
		t.Error("marked bytes must still count as occupied")
	}

	r.Get(true)
	if r.IsFull() {
		t.Error("moving the mark should free space")
	}
	if n, _ := r.Fill(src); n != 2 {
		t.Errorf("expected 2 bytes after freeing, got %d", n)
	}
}

func TestFill_EndOfStream(t *testing.T) {
	r := New(4)
	src := strings.NewReader("ab")
	if n, err := r.Fill(src); n != 2 || err != nil {
		t.Fatalf("got (%d, %v)", n, err)
	}
	if _, err := r.Fill(src); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestMarked_AcrossWrap(t *testing.T) {
	r := New(5)
	src := &chunkReader{data: []byte("0123456789"), n: 10}

	var got []string
	mark := true
	for {
		if _, err := r.Fill(src); err == io.EOF {
			break
		}
		for r.HasRemaining() {
			b := r.Get(mark)
			mark = false
			if b == '3' || b == '6' || b == '9' {
				got = append(got, r.Marked().String())
				mark = true
			}
		}
	}

	want := []string{"0123", "456", "789"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestRewindAndUnget(t *testing.T) {
	r := New(8)
	r.Fill(strings.NewReader("xyz"))

	r.Get(true)
	r.Get(false)
	r.Rewind()
	if b := r.Get(true); b != 'x' {
		t.Fatalf("expected rewind to mark, got %q", b)
	}

	r.Get(false)
	r.Unget()
	if b := r.Get(false); b != 'y' {
		t.Fatalf("expected unget to return 'y', got %q", b)
	}

	r.Discard()
	if r.Marked().Len() != 0 {
		t.Error("discard should empty the candidate")
	}
}

// ============================================================
// View Tests
// ============================================================

func TestView_Straddling(t *testing.T) {
	r := New(6)
	r.Fill(strings.NewReader("abcd"))
	for i := 0; i < 4; i++ {
		r.Get(true)
	}
	r.Fill(strings.NewReader("ef"))
	r.Fill(strings.NewReader("ghi"))

	// candidate "efghi" starts at index 4 and wraps to index 0
	r.Get(true)
	for r.HasRemaining() {
		r.Get(false)
	}
	v := r.Marked()

	if v.String() != "efghi" {
		t.Fatalf("expected efghi, got %q", v.String())
	}
	if v.IndexByte('h') != 3 || v.IndexByte('z') != -1 {
		t.Errorf("IndexByte wrong: %d %d", v.IndexByte('h'), v.IndexByte('z'))
	}
	if v.At(4) != 'i' {
		t.Errorf("At(4) expected 'i', got %q", v.At(4))
	}
	if s := v.Slice(1, 4).String(); s != "fgh" {
		t.Errorf("Slice(1,4) expected fgh, got %q", s)
	}
	if s := r.Sub(0, 2).String(); s != "ef" {
		t.Errorf("Sub(0,2) expected ef, got %q", s)
	}
	if !v.HasPrefix([]byte("efg")) || v.HasPrefix([]byte("eg")) {
		t.Error("HasPrefix wrong")
	}

	var buf bytes.Buffer
	if n, err := v.WriteTo(&buf); err != nil || n != 5 || buf.String() != "efghi" {
		t.Errorf("WriteTo: %d %v %q", n, err, buf.String())
	}
}

func TestView_NoAllocation(t *testing.T) {
	r := New(16)
	r.Fill(strings.NewReader("$GPRMC,1*00\r\n"))
	allocs := testing.AllocsPerRun(100, func() {
		r.Rewind()
		r.Get(true)
		for r.HasRemaining() {
			r.Get(false)
		}
		v := r.Marked()
		_ = v.IndexByte(',')
		_ = v.Slice(0, 6)
	})
	if allocs != 0 {
		t.Errorf("expected no allocations, got %.1f", allocs)
	}
}
