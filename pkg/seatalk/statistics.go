// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package seatalk

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Statistics tracks datagram statistics and drop rates
type Statistics struct {
	mu sync.Mutex

	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames     uint64
	ValidFrames     uint64
	Sentences       uint64
	Unrecognized    uint64
	DroppedFrames   uint64
	NoiseBytes      uint64
	EscapeErrors    uint64
	Truncated       uint64
	AttributeErrors uint64
	PatternErrors   uint64
	UnknownCommands uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	DropRate  float64 // drops/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update records a validated frame or a drop
func (s *Statistics) Update(frame *Frame, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastUpdateTime = time.Now()

	if err == nil {
		if frame != nil {
			s.TotalFrames++
			s.ValidFrames++
		}
		return
	}

	var fe *FrameError
	if !errors.As(err, &fe) {
		s.TotalFrames++
		s.DroppedFrames++
		return
	}
	switch fe.Kind {
	case ErrNoise:
		s.NoiseBytes++
		return
	case ErrUnknownCommand:
		s.UnknownCommands++
		return
	case ErrEscape:
		s.EscapeErrors++
	case ErrTruncated:
		s.Truncated++
	case ErrAttribute:
		s.AttributeErrors++
	case ErrPattern:
		s.PatternErrors++
	}
	s.TotalFrames++
	s.DroppedFrames++
}

func (s *Statistics) addSentence() {
	s.mu.Lock()
	s.Sentences++
	s.mu.Unlock()
}

func (s *Statistics) addUnrecognized() {
	s.mu.Lock()
	s.Unrecognized++
	s.mu.Unlock()
}

// Snapshot returns a copy of the counters safe to read from another goroutine
func (s *Statistics) Snapshot() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Statistics{
		StartTime:       s.StartTime,
		LastUpdateTime:  s.LastUpdateTime,
		TotalFrames:     s.TotalFrames,
		ValidFrames:     s.ValidFrames,
		Sentences:       s.Sentences,
		Unrecognized:    s.Unrecognized,
		DroppedFrames:   s.DroppedFrames,
		NoiseBytes:      s.NoiseBytes,
		EscapeErrors:    s.EscapeErrors,
		Truncated:       s.Truncated,
		AttributeErrors: s.AttributeErrors,
		PatternErrors:   s.PatternErrors,
		UnknownCommands: s.UnknownCommands,
	}
}

// CalculateRates calculates frame and drop rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.DropRate = float64(s.DroppedFrames) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	snap := s.Snapshot()
	snap.CalculateRates()

	var validPercent, dropPercent float64
	if snap.TotalFrames > 0 {
		validPercent = float64(snap.ValidFrames) * 100.0 / float64(snap.TotalFrames)
		dropPercent = float64(snap.DroppedFrames) * 100.0 / float64(snap.TotalFrames)
	}

	elapsed := time.Since(snap.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", snap.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", snap.ValidFrames, validPercent)
	result += fmt.Sprintf("Sentences:       %8d\n", snap.Sentences)

	if snap.Unrecognized > 0 {
		result += fmt.Sprintf("Unrecognized:    %8d\n", snap.Unrecognized)
	}
	if snap.DroppedFrames > 0 {
		result += fmt.Sprintf("Dropped Frames:  %8d (%.1f%%)\n", snap.DroppedFrames, dropPercent)
		if snap.Truncated > 0 {
			result += fmt.Sprintf("  Truncated:        %5d\n", snap.Truncated)
		}
		if snap.EscapeErrors > 0 {
			result += fmt.Sprintf("  Bad Escape:       %5d\n", snap.EscapeErrors)
		}
		if snap.AttributeErrors > 0 {
			result += fmt.Sprintf("  Attribute:        %5d\n", snap.AttributeErrors)
		}
		if snap.PatternErrors > 0 {
			result += fmt.Sprintf("  Pattern:          %5d\n", snap.PatternErrors)
		}
	}
	if snap.NoiseBytes > 0 {
		result += fmt.Sprintf("Noise Bytes:     %8d\n", snap.NoiseBytes)
	}
	if snap.UnknownCommands > 0 {
		result += fmt.Sprintf("Unknown Cmds:    %8d\n", snap.UnknownCommands)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/s\n", snap.FrameRate)
	result += fmt.Sprintf("Drop Rate:       %8.1f drops/s\n", snap.DropRate)

	return result
}

// Reset clears all counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.StartTime = now
	s.LastUpdateTime = now
	s.TotalFrames = 0
	s.ValidFrames = 0
	s.Sentences = 0
	s.Unrecognized = 0
	s.DroppedFrames = 0
	s.NoiseBytes = 0
	s.EscapeErrors = 0
	s.Truncated = 0
	s.AttributeErrors = 0
	s.PatternErrors = 0
	s.UnknownCommands = 0
}
