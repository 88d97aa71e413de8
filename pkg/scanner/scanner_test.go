// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scanner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/seaport/pkg/nmea"
)

func sentence(body string) string {
	return string(nmea.AppendChecksum(nil, []byte(body)))
}

// readCloser tracks Close on a finite reader
type readCloser struct {
	io.Reader
	closed atomic.Int32
}

func (r *readCloser) Close() error {
	r.closed.Add(1)
	return nil
}

// ============================================================
// Scanner Tests
// ============================================================

func TestScanner_CollectsFingerprint(t *testing.T) {
	data := "\x00\xffnoise" +
		sentence("$GPRMC,123519,A,4807.038,N") +
		sentence("$GPGGA,123519,4807.038,N") +
		sentence("$GPRMC,123520,A,4807.038,N") +
		"$GPXX,1" + // cut short by the next sentence
		sentence("$GPGSV,1,1,04") +
		"!AIVDM,1,1,,B,177KQJ" +
		"$GPG"

	ch := &readCloser{Reader: strings.NewReader(data)}
	s := NewScanner(NMEA, nil)
	err := s.Run(context.Background(), ch)

	require.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{"$GPGGA", "$GPGSV", "$GPRMC"}, s.Fingerprint().Snapshot())
	assert.EqualValues(t, 1, ch.closed.Load())

	c := s.Counters()
	assert.EqualValues(t, len(data), c.BytesRead)
	assert.EqualValues(t, 4, c.Sentences)
	assert.NotZero(t, c.ErrorBytes)
}

func TestScanner_SmallBufferStillMatches(t *testing.T) {
	var data bytes.Buffer
	data.WriteString(strings.Repeat("x", 300))
	data.WriteString(sentence("$IIVHW,,T,,M,5.50,N,10.19,K"))

	s := NewScanner(NMEA, nil)
	s.BufferSize = nmea.MaxSentenceLength + 2
	err := s.Run(context.Background(), &readCloser{Reader: &data})

	require.ErrorIs(t, err, io.EOF)
	assert.True(t, s.Fingerprint().Contains("$IIVHW"))
}

func TestScanner_ResolvesProbedType(t *testing.T) {
	data := sentence("$STDPT,3.0,0.0") + sentence("$STMTW,12.0,C")
	ch := &readCloser{Reader: strings.NewReader(data)}

	s := NewScanner(SeaTalk, DefaultDiscriminator())
	err := s.Run(context.Background(), ch)

	require.NoError(t, err)
	got, ok := s.Resolved()
	require.True(t, ok)
	assert.Equal(t, SeaTalk, got)
	assert.Equal(t, []string{"$STDPT"}, s.Fingerprint().Snapshot())
	assert.EqualValues(t, 1, ch.closed.Load())
}

func TestScanner_WrongPortType(t *testing.T) {
	data := sentence("!AIVDM,1,1,,B,177KQJ5000G?tO`K>RA1wUbN0TKH,0")
	s := NewScanner(NMEA, DefaultDiscriminator())
	err := s.Run(context.Background(), &readCloser{Reader: strings.NewReader(data)})

	require.ErrorIs(t, err, ErrWrongPortType)
	got, ok := s.Resolved()
	require.True(t, ok)
	assert.Equal(t, NMEAHighSpeed, got)
}

func TestScanner_CancelClosesChannel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	s := NewScanner(NMEA, nil)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, pr) }()

	_, err := pw.Write([]byte(sentence("$GPRMC,1")))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.Fingerprint().Len() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	_, err = pw.Write([]byte("x"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestScanner_ReadErrorReturned(t *testing.T) {
	boom := errors.New("device unplugged")
	ch := &readCloser{Reader: io.MultiReader(strings.NewReader(sentence("$GPRMC,1")), errReader{boom})}
	err := NewScanner(NMEA, nil).Run(context.Background(), ch)
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 1, ch.closed.Load())
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }

// ============================================================
// Discriminator Tests
// ============================================================

func TestPrefixDiscriminator(t *testing.T) {
	d := DefaultDiscriminator()

	tests := []struct {
		name        string
		fingerprint []string
		expected    PortType
		ok          bool
	}{
		{"empty", nil, Unknown, false},
		{"plain gps", []string{"$GPGGA", "$GPRMC"}, Unknown, false},
		{"seatalk", []string{"$STDPT", "$STVHW"}, SeaTalk, true},
		{"ais", []string{"!AIVDM", "!AIVDO"}, NMEAHighSpeed, true},
		{"ais with gps", []string{"!AIVDM", "$GPRMC"}, NMEAHighSpeed, true},
		{"conflict", []string{"!AIVDM", "$STDPT"}, Unknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := d.Match(tt.fingerprint)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNewPrefixDiscriminator(t *testing.T) {
	d := NewPrefixDiscriminator(map[string]PortType{"$II": NMEA, "$HC": NMEA})
	require.Len(t, d.Rules, 2)
	assert.Equal(t, "$HC", d.Rules[0].Prefix)

	got, ok := d.Match([]string{"$IIVHW"})
	assert.True(t, ok)
	assert.Equal(t, NMEA, got)
}

// ============================================================
// Port Type and Rotation Tests
// ============================================================

func TestParsePortType(t *testing.T) {
	for in, expected := range map[string]PortType{
		"nmea":           NMEA,
		"NMEA_HS":        NMEAHighSpeed,
		"nmea-highspeed": NMEAHighSpeed,
		" SeaTalk ":      SeaTalk,
	} {
		got, err := ParsePortType(in)
		require.NoError(t, err, in)
		assert.Equal(t, expected, got, in)
	}
	_, err := ParsePortType("nmea2000")
	assert.Error(t, err)
}

func TestPortType_YAML(t *testing.T) {
	var cfg struct {
		Types []PortType `yaml:"types"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("types: [seatalk, nmea, nmea-hs]\n"), &cfg))
	assert.Equal(t, []PortType{SeaTalk, NMEA, NMEAHighSpeed}, cfg.Types)

	out, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(out), "- seatalk")

	err = yaml.Unmarshal([]byte("types: [bogus]\n"), &cfg)
	assert.ErrorContains(t, err, "line 1")
}

func TestPortType_Params(t *testing.T) {
	assert.Equal(t, 38400, NMEAHighSpeed.Params().Baud)
	assert.True(t, SeaTalk.Params().Marked)
	assert.False(t, NMEA.Params().Marked)
	assert.False(t, Unknown.Valid())
	assert.Equal(t, "unknown", Unknown.String())
}

func TestRotation_WrapsIndefinitely(t *testing.T) {
	r := NewRotation([]PortType{NMEA, SeaTalk})
	var got []PortType
	for i := 0; i < 5; i++ {
		got = append(got, r.Next())
	}
	assert.Equal(t, []PortType{NMEA, SeaTalk, NMEA, SeaTalk, NMEA}, got)
	assert.Equal(t, 2, r.Laps())
}

// ============================================================
// Naming Tests
// ============================================================

func TestNameFor(t *testing.T) {
	tests := []struct {
		fingerprint []string
		expected    string
	}{
		{[]string{"!AIVDM"}, "AIS"},
		{[]string{"$GPRMC", "$GPGGA"}, "GPS"},
		{[]string{"$GNRMC"}, "GPS"},
		{[]string{"$STDPT", "$STVHW"}, "SOUNDER"},
		{[]string{"$IIVHW"}, "LOG"},
		{[]string{"$WIMWV"}, "WIND"},
		{[]string{"$HCHDG"}, "COMPASS"},
		{[]string{"$PSEA,ST"}, DefaultName},
		{[]string{"$PGRME", "$IIXDR"}, DefaultName},
		{nil, DefaultName},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, NameFor(tt.fingerprint), "%v", tt.fingerprint)
	}
}

func TestNamer_Suffixes(t *testing.T) {
	n := NewNamer()
	gps := ScanResult{Fingerprint: []string{"$GPRMC"}}
	assert.Equal(t, "GPS", n.Name(gps))
	assert.Equal(t, "GPS_2", n.Name(gps))
	assert.Equal(t, "AIS", n.Name(ScanResult{Fingerprint: []string{"!AIVDM"}}))
	assert.Equal(t, "GPS_3", n.Name(gps))
}

// ============================================================
// Port Set and Hotplug Tests
// ============================================================

func TestPortSet_Replace(t *testing.T) {
	s := NewPortSet("COM1", "COM2")
	added, removed := s.Replace([]string{"COM2", "COM3", "COM4"})
	assert.Equal(t, []string{"COM3", "COM4"}, added)
	assert.Equal(t, []string{"COM1"}, removed)
	assert.Equal(t, []string{"COM2", "COM3", "COM4"}, s.Snapshot())
	assert.False(t, s.Contains("COM1"))

	s.Remove("COM3")
	s.Add("COM9")
	assert.Equal(t, 3, s.Len())
}

func TestHotplug_Poll(t *testing.T) {
	lists := [][]string{{"/dev/ttyUSB0", "/dev/ttyS0"}, {"/dev/ttyUSB1"}}
	calls := 0
	lister := ListerFunc(func() ([]string, error) {
		if calls == len(lists) {
			return nil, errors.New("enumeration failed")
		}
		l := lists[calls]
		calls++
		return l, nil
	})

	ports := NewPortSet()
	h := NewHotplug(lister, ports, nil)
	h.Exclude = func(name string) bool { return strings.HasPrefix(name, "/dev/ttyS") }
	var detached []string
	h.OnDetach = func(name string) { detached = append(detached, name) }

	require.NoError(t, h.Poll())
	assert.Equal(t, []string{"/dev/ttyUSB0"}, ports.Snapshot())
	require.NoError(t, h.Poll())
	assert.Equal(t, []string{"/dev/ttyUSB1"}, ports.Snapshot())
	assert.Equal(t, []string{"/dev/ttyUSB0"}, detached)

	require.Error(t, h.Poll())
	assert.Equal(t, []string{"/dev/ttyUSB1"}, ports.Snapshot(), "failed poll must keep the set")
}

func TestPortSet_ConcurrentWriters(t *testing.T) {
	s := NewPortSet()
	fp := NewFingerprint()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Add("COM" + string(rune('A'+i)))
				fp.Add("$GP" + string(rune('A'+j%4)) + "MC")
				_ = s.Snapshot()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, s.Len())
	assert.Equal(t, []string{"$GPAMC", "$GPBMC", "$GPCMC", "$GPDMC"}, fp.Snapshot())
	assert.False(t, fp.Add("$GPAMC"), "duplicate prefix is not new")

	fp.Reset()
	assert.Zero(t, fp.Len())
}

func TestHotplug_RunPollsEveryPeriod(t *testing.T) {
	var mu sync.Mutex
	current := []string{"/dev/ttyUSB0"}
	lister := ListerFunc(func() ([]string, error) {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), current...), nil
	})

	clock := clockwork.NewFakeClock()
	ports := NewPortSet()
	h := NewHotplug(lister, ports, nil)
	h.Clock = clock

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	// the first poll runs before the ticker is armed
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, []string{"/dev/ttyUSB0"}, ports.Snapshot())

	mu.Lock()
	current = []string{"/dev/ttyUSB1"}
	mu.Unlock()
	clock.Advance(h.Period)
	require.Eventually(t, func() bool {
		snap := ports.Snapshot()
		return len(snap) == 1 && snap[0] == "/dev/ttyUSB1"
	}, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
