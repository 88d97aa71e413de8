// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nmea

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/seaport/pkg/match"
)

const ggaSentence = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47\r\n"

// newFuzzRng creates a seeded generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := time.Now().UnixNano()
	if env := os.Getenv("FUZZ_SEED"); env != "" {
		if v, err := strconv.ParseInt(env, 10, 64); err == nil {
			seed = v
		}
	}
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// ============================================================
// Checksum Tests
// ============================================================

func TestCompute_KnownSentence(t *testing.T) {
	body := ggaSentence[:strings.IndexByte(ggaSentence, '*')]
	if got := Compute([]byte(body)); got != 0x47 {
		t.Errorf("checksum mismatch: expected 0x47, got 0x%02X", got)
	}
	// leading start character is optional
	if got := Compute([]byte(body[1:])); got != 0x47 {
		t.Errorf("checksum without '$' mismatch: got 0x%02X", got)
	}
}

func TestChecksum_StartResets(t *testing.T) {
	var c Checksum
	for _, b := range []byte("garbage$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*ignored") {
		c.Update(b)
	}
	if c.Sum() != 0x47 {
		t.Errorf("expected 0x47 after reset by '$', got 0x%02X", c.Sum())
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"valid with CRLF", ggaSentence, nil},
		{"valid without CRLF", strings.TrimRight(ggaSentence, "\r\n"), nil},
		{"built sentence", string(AppendChecksum(nil, []byte("$STMTW,12.5,C"))), nil},
		{"missing checksum", "$GPGGA,1,2,3\r\n", ErrMissingChecksum},
		{"wrong checksum", strings.Replace(ggaSentence, "*47", "*48", 1), ErrChecksumMismatch},
		{"bad hex", strings.Replace(ggaSentence, "*47", "*G7", 1), ErrChecksumMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify([]byte(tt.input))
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestAppendChecksum_Format(t *testing.T) {
	out := AppendChecksum(nil, []byte("$STDPT,3.4,0.0"))
	s := string(out)
	if !strings.HasSuffix(s, "\r\n") {
		t.Fatalf("missing CRLF: %q", s)
	}
	star := strings.IndexByte(s, '*')
	if star < 0 || len(s)-star != 5 {
		t.Fatalf("bad checksum suffix: %q", s)
	}
	if hex := s[star+1 : star+3]; strings.ToUpper(hex) != hex {
		t.Errorf("checksum should be uppercase: %q", hex)
	}
	if err := Verify(out); err != nil {
		t.Errorf("appended checksum does not verify: %v", err)
	}
}

// ============================================================
// Builder Tests
// ============================================================

func TestBuilders(t *testing.T) {
	txt, err := TXT("ST", "Light L2")
	if err != nil {
		t.Fatalf("TXT: %v", err)
	}

	tests := []struct {
		name     string
		body     []byte
		expected string
	}{
		{"DPT", DPT("ST", 3.4242, 0), "$STDPT,3.4,0.0"},
		{"DBT", DBT("ST", 123.4), "$STDBT,123.4,f,37.6,M,20.6,F"},
		{"VHW", VHW("ST", 5.5), "$STVHW,,T,,M,5.50,N,10.19,K"},
		{"MTW", MTW("ST", 12.34), "$STMTW,12.3,C"},
		{"TXT", txt, "$STTXT,01,01,01,Light L2"},
		{"VDM uses '!'", NewBuilder("AI", "VDM").Field("1").Bytes(), "!AIVDM,1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.body) != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, tt.body)
			}
		})
	}
}

func TestTXT_RejectsReservedCharacters(t *testing.T) {
	for _, msg := range []string{"a,b", "a*b", "line\r\n"} {
		if _, err := TXT("ST", msg); err == nil {
			t.Errorf("expected error for %q", msg)
		}
	}
}

func TestPrefix(t *testing.T) {
	tests := []struct {
		in, prefix, talker, format string
		ok                         bool
	}{
		{"$GPRMC,123519,A", "$GPRMC", "GP", "RMC", true},
		{"!AIVDM,1,1,,A,15M67", "!AIVDM", "AI", "VDM", true},
		{"$PXXX,ST,LAMP,1*00", "$PXXX", "", "", false},
		{"$GPGLL*00", "$GPGLL", "GP", "GLL", true},
		{"$GP", "$GP", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p := Prefix(tt.in)
			if p != tt.prefix {
				t.Fatalf("prefix: expected %q, got %q", tt.prefix, p)
			}
			talker, format, ok := SplitPrefix(p)
			if ok != tt.ok || talker != tt.talker || format != tt.format {
				t.Errorf("split: got (%q, %q, %v)", talker, format, ok)
			}
		})
	}
}

// ============================================================
// Writer Tests
// ============================================================

type recordingWriter struct {
	writes [][]byte
}

func (r *recordingWriter) Write(p []byte) (int, error) {
	r.writes = append(r.writes, append([]byte(nil), p...))
	return len(p), nil
}

func TestWriter_OneWritePerSentence(t *testing.T) {
	rec := &recordingWriter{}
	w := NewWriter(rec)

	if err := w.WriteSentence(MTW("ST", 10)); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteSentence(DPT("ST", 1, 0)); err != nil {
		t.Fatal(err)
	}

	if len(rec.writes) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(rec.writes))
	}
	for _, s := range rec.writes {
		if err := Verify(s); err != nil {
			t.Errorf("%q: %v", s, err)
		}
	}
	if w.Count() != 2 {
		t.Errorf("expected count 2, got %d", w.Count())
	}
}

func TestWriter_RawWriteReframes(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out)

	// checksum is wrong on purpose and split across writes
	w.Write([]byte("$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*00\r"))
	if out.Len() != 0 {
		t.Fatalf("partial line should be held, got %q", out.String())
	}
	w.Write([]byte("\nnoise\n"))

	if out.String() != ggaSentence {
		t.Errorf("expected %q, got %q", ggaSentence, out.String())
	}
}

// ============================================================
// Matcher Tests
// ============================================================

func TestMatcher_ValidSentence(t *testing.T) {
	m := NewMatcher()
	data := []byte(ggaSentence)
	for i, b := range data[:len(data)-1] {
		if s := m.Match(b); s == match.Error || s == match.Match {
			t.Fatalf("byte %d (%q): unexpected %v", i, b, s)
		}
	}
	if s := m.Match('\n'); s != match.Match {
		t.Fatalf("expected Match on LF, got %v", s)
	}
	if m.Matches() != 1 || m.Errors() != 0 {
		t.Errorf("counters: matches=%d errors=%d", m.Matches(), m.Errors())
	}
}

func TestMatcher_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"bad checksum", strings.Replace(ggaSentence, "*47", "*46", 1)},
		{"LF inside data", "$GPGGA,12\n"},
		{"control byte", "$GPGGA,1\x01"},
		{"start inside data", "$GPGGA,1$GP"},
		{"missing CR", strings.Replace(ggaSentence, "\r\n", "\n", 1)},
		{"garbage", "x"},
		{"too long", "$" + strings.Repeat("A", MaxSentenceLength)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher()
			sawError := false
			for _, b := range []byte(tt.input) {
				switch m.Match(b) {
				case match.Error:
					sawError = true
				case match.Match:
					t.Fatalf("unexpected Match")
				}
			}
			if !sawError {
				t.Error("expected an Error status")
			}
		})
	}
}

func TestMatcher_AllowMissingChecksum(t *testing.T) {
	m := NewMatcher()
	m.AllowMissingChecksum = true
	if s := m.MatchAll([]byte("$GPGGA,1,2\r\n")); s != match.Match {
		t.Errorf("expected Match, got %v", s)
	}
}

// scanSentences runs a matcher over a stream the way the readers do, refeeding
// a start character that abandoned a candidate, and returns the index of the
// LF ending every matched sentence
func scanSentences(m *Matcher, data []byte) []int {
	var ends []int
	for i, b := range data {
		idle := m.Idle()
		switch m.Match(b) {
		case match.Match:
			ends = append(ends, i)
		case match.Error:
			if !idle && (b == StartSentence || b == StartEncapsulated) {
				m.Match(b)
			}
		}
	}
	return ends
}

// splitSentences finds the same sentences by cutting the whole buffer at every
// start character and checking each piece up to its first LF
func splitSentences(data []byte) []int {
	var ends []int
	start := -1
	for i := 0; i <= len(data); i++ {
		if i < len(data) && data[i] != StartSentence && data[i] != StartEncapsulated {
			continue
		}
		if start >= 0 {
			if end, ok := sentenceEnd(data[start:i]); ok {
				ends = append(ends, start+end)
			}
		}
		start = i
	}
	return ends
}

func sentenceEnd(piece []byte) (int, bool) {
	nl := bytes.IndexByte(piece, '\n')
	if nl < 0 {
		return 0, false
	}
	line := piece[:nl+1]
	star := bytes.IndexByte(line, ChecksumDelimiter)
	if star < 0 || len(line) != star+5 || line[star+3] != '\r' {
		return 0, false
	}
	if star+5 > MaxSentenceLength {
		return 0, false
	}
	var sum byte
	for _, b := range line[1:star] {
		if b < 0x20 || b > 0x7E {
			return 0, false
		}
		sum ^= b
	}
	want, err := strconv.ParseUint(string(line[star+1:star+3]), 16, 8)
	if err != nil || byte(want) != sum {
		return 0, false
	}
	return nl, true
}

func TestMatcher_IncrementalEqualsSplit(t *testing.T) {
	rng := newFuzzRng(t)
	alphabet := []byte("$!*,\r\nGPRMCA0123456789ABCDEF")
	valid := [][]byte{
		[]byte(ggaSentence),
		[]byte("!AIVDM,1,1,,B,177KQJ5000G?tO`K>RA1wUbN0TKH,0*5C\r\n"),
		[]byte("$" + strings.Repeat("A", MaxSentenceLength-6) + "*00\r\n"),
	}

	for round := 0; round < 500; round++ {
		var data []byte
		for parts := rng.Intn(5) + 1; parts > 0; parts-- {
			v := valid[rng.Intn(len(valid))]
			switch rng.Intn(3) {
			case 0:
				data = append(data, v...)
			case 1:
				data = append(data, v[:rng.Intn(len(v)+1)]...)
			}
			for i := rng.Intn(12); i > 0; i-- {
				data = append(data, alphabet[rng.Intn(len(alphabet))])
			}
		}

		want := splitSentences(data)
		got := scanSentences(NewMatcher(), data)

		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Fatalf("round %d: matcher ends %v, split ends %v for %q", round, got, want, data)
		}
	}
}

func TestMatcher_SplitOracleSanity(t *testing.T) {
	data := []byte("x$GP" + ggaSentence + "noise" + strings.Replace(ggaSentence, "*47", "*46", 1))
	ends := splitSentences(data)
	if len(ends) != 1 || ends[0] != 4+len(ggaSentence)-1 {
		t.Fatalf("expected one sentence ending at %d, got %v", 4+len(ggaSentence)-1, ends)
	}
	if got := scanSentences(NewMatcher(), data); fmt.Sprint(got) != fmt.Sprint(ends) {
		t.Errorf("matcher ends %v, expected %v", got, ends)
	}
}
