package audio

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Messijah/PedagogiskDialog/internal/config"
	"github.com/Messijah/PedagogiskDialog/internal/llm"
	"github.com/Messijah/PedagogiskDialog/internal/models"
)

type fakeSegmenter struct {
	duration time.Duration
	probes   atomic.Int32
	probeErr error
	cuts     sync.Map // start -> length
}

func (f *fakeSegmenter) Duration(context.Context, string) (time.Duration, error) {
	f.probes.Add(1)
	return f.duration, f.probeErr
}

func (f *fakeSegmenter) Extract(_ context.Context, _ string, start, length time.Duration, dst string) error {
	f.cuts.Store(start, length)
	return os.WriteFile(dst, []byte(fmt.Sprintf("%d-%d", int(start.Minutes()), int(length.Minutes()))), 0o644)
}

// fakeTranscriber echoes the segment file contents and fails for the names in fail.
type fakeTranscriber struct {
	calls  atomic.Int32
	fail   map[string]bool
	jitter bool
	unset  bool
}

func (f *fakeTranscriber) Name() string { return "fake" }

func (f *fakeTranscriber) TranscriptionConfigured() bool { return !f.unset }

func (f *fakeTranscriber) Transcribe(_ context.Context, req llm.TranscriptionRequest) (string, error) {
	f.calls.Add(1)
	if f.jitter {
		time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)
	}
	if f.fail[filepath.Base(req.FilePath)] {
		return "", errors.New("whisper unavailable")
	}
	data, err := os.ReadFile(req.FilePath)
	if err != nil {
		return "", err
	}
	return "text " + string(data), nil
}

func testPipeline(t *testing.T, tr llm.Transcriber, seg Segmenter) (*Pipeline, string) {
	t.Helper()
	tmp := t.TempDir()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	cfg := config.AudioConfig{
		TempDir:           tmp,
		DirectThresholdMB: 0.001, // ~1 KB
		SegmentDuration:   10 * time.Minute,
		MaxConcurrency:    4,
	}
	return NewPipeline(tr, seg, cfg, logger), tmp
}

func writeRecording(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "samtal.m4a")
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func TestSegmentCount(t *testing.T) {
	tests := []struct {
		duration time.Duration
		want     int
	}{
		{60 * time.Minute, 6},
		{61 * time.Minute, 7},
		{9 * time.Minute, 1},
		{0, 1},
		{60*time.Minute + 23*time.Millisecond, 6},
		{60*time.Minute + 999*time.Millisecond, 6},
		{60*time.Minute + time.Second, 7},
		{500 * time.Millisecond, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SegmentCount(tt.duration, 10*time.Minute), tt.duration.String())
	}
}

func TestTranscribeSmallFileIsDirect(t *testing.T) {
	tr := &fakeTranscriber{}
	seg := &fakeSegmenter{duration: time.Hour}
	p, _ := testPipeline(t, tr, seg)
	path := writeRecording(t, 100)

	res, err := p.Transcribe(context.Background(), path, Options{Language: "sv"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), tr.calls.Load())
	assert.Zero(t, seg.probes.Load())
	assert.Equal(t, 1, res.Segments)
	assert.False(t, res.Partial())
	assert.NotContains(t, res.Text, "### Segment")
}

func TestTranscribeSegmentsInOrderWithOneFailure(t *testing.T) {
	tr := &fakeTranscriber{fail: map[string]bool{"segment_004.wav": true}, jitter: true}
	p, tmp := testPipeline(t, tr, &fakeSegmenter{duration: 60 * time.Minute})
	path := writeRecording(t, 4096)

	var mu sync.Mutex
	var events []Event
	res, err := p.Transcribe(context.Background(), path, Options{OnProgress: func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}})
	require.NoError(t, err)

	assert.Equal(t, int32(6), tr.calls.Load())
	assert.Equal(t, 6, res.Segments)
	assert.Equal(t, []int{4}, res.MissingSegments)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "segment 4/6")

	sections := strings.Split(res.Text, "\n\n### ")
	require.Len(t, sections, 5)
	for i, want := range []string{"1/6", "2/6", "3/6", "5/6", "6/6"} {
		assert.Contains(t, sections[i], "Segment "+want)
	}
	assert.Contains(t, res.Text, "### Segment 5/6\n\ntext 40-10")
	assert.NotContains(t, res.Text, "text 30-10")
	assert.NotContains(t, res.Text, "Segment 4/6")

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries, "segment files must be removed")

	assert.Equal(t, EventStarted, events[0].Kind)
	assert.Equal(t, EventFinished, events[len(events)-1].Kind)
}

func TestTranscribeFoldsShortTail(t *testing.T) {
	tr := &fakeTranscriber{}
	seg := &fakeSegmenter{duration: 60*time.Minute + 23*time.Millisecond}
	p, _ := testPipeline(t, tr, seg)

	res, err := p.Transcribe(context.Background(), writeRecording(t, 4096), Options{})
	require.NoError(t, err)
	assert.Equal(t, 6, res.Segments)
	assert.Empty(t, res.Warnings)
	assert.NotContains(t, res.Text, "/7")

	last, ok := seg.cuts.Load(50 * time.Minute)
	require.True(t, ok)
	assert.Equal(t, 10*time.Minute+23*time.Millisecond, last)
	_, ok = seg.cuts.Load(60 * time.Minute)
	assert.False(t, ok)
}

func TestTranscribeAllSegmentsFail(t *testing.T) {
	fail := map[string]bool{}
	for i := 1; i <= 3; i++ {
		fail[fmt.Sprintf("segment_%03d.wav", i)] = true
	}
	p, tmp := testPipeline(t, &fakeTranscriber{fail: fail}, &fakeSegmenter{duration: 25 * time.Minute})

	_, err := p.Transcribe(context.Background(), writeRecording(t, 4096), Options{})
	assert.ErrorIs(t, err, models.ErrAllSegmentsFailed)

	entries, _ := os.ReadDir(tmp)
	assert.Empty(t, entries)
}

func TestTranscribeNotConfiguredBeforeSegmenting(t *testing.T) {
	seg := &fakeSegmenter{duration: time.Hour}
	p, _ := testPipeline(t, &fakeTranscriber{unset: true}, seg)

	_, err := p.Transcribe(context.Background(), writeRecording(t, 4096), Options{})
	assert.ErrorIs(t, err, models.ErrNotConfigured)
	assert.Zero(t, seg.probes.Load())
}

func TestTranscribeProbeFailureAborts(t *testing.T) {
	tr := &fakeTranscriber{}
	p, _ := testPipeline(t, tr, &fakeSegmenter{probeErr: errors.New("ffprobe: invalid data")})

	_, err := p.Transcribe(context.Background(), writeRecording(t, 4096), Options{})
	assert.ErrorContains(t, err, "invalid data")
	assert.Zero(t, tr.calls.Load())
}

func TestTranscribeCancelled(t *testing.T) {
	p, _ := testPipeline(t, &fakeTranscriber{}, &fakeSegmenter{duration: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Transcribe(ctx, writeRecording(t, 4096), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
