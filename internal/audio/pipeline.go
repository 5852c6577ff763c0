// Package audio stores uploaded recordings and turns them into transcripts,
// splitting long recordings into segments transcribed in parallel.
package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Messijah/PedagogiskDialog/internal/config"
	"github.com/Messijah/PedagogiskDialog/internal/llm"
	"github.com/Messijah/PedagogiskDialog/internal/mapreduce"
	"github.com/Messijah/PedagogiskDialog/internal/models"
)

// Event kinds reported while a recording is processed.
const (
	EventStarted         = "started"
	EventSegmentStarted  = "segment_started"
	EventSegmentFinished = "segment_finished"
	EventSegmentFailed   = "segment_failed"
	EventFinished        = "finished"
)

// Event reports pipeline progress. Segment is 1-based; Total is the number
// of segments (1 for a direct call).
type Event struct {
	Kind    string `json:"kind"`
	Segment int    `json:"segment,omitempty"`
	Total   int    `json:"total"`
	Message string `json:"message,omitempty"`
}

// Result is a transcript with a record of what was left out.
type Result struct {
	Text            string   `json:"text"`
	Segments        int      `json:"segments"`
	MissingSegments []int    `json:"missing_segments,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}

// Partial reports whether some segments are missing.
func (r *Result) Partial() bool {
	return len(r.MissingSegments) > 0
}

// Options tune a single run. OnProgress may be called from several
// goroutines at once.
type Options struct {
	Language   string
	Prompt     string
	OnProgress func(Event)
}

// Pipeline transcribes stored recordings.
type Pipeline struct {
	transcriber llm.Transcriber
	segmenter   Segmenter
	threshold   int64
	segment     time.Duration
	limit       int
	tempDir     string
	logger      *logrus.Logger
}

// NewPipeline creates a pipeline from the audio configuration.
func NewPipeline(transcriber llm.Transcriber, segmenter Segmenter, cfg config.AudioConfig, logger *logrus.Logger) *Pipeline {
	segment := cfg.SegmentDuration
	if segment <= 0 {
		segment = 10 * time.Minute
	}
	limit := cfg.MaxConcurrency
	if limit <= 0 {
		limit = 4
	}
	return &Pipeline{
		transcriber: transcriber,
		segmenter:   segmenter,
		threshold:   cfg.DirectThresholdBytes(),
		segment:     segment,
		limit:       limit,
		tempDir:     cfg.TempDir,
		logger:      logger,
	}
}

// configured is implemented by backends that may lack credentials.
type configured interface {
	TranscriptionConfigured() bool
}

// Configured reports whether a transcription backend is available.
func (p *Pipeline) Configured() bool {
	if p.transcriber == nil {
		return false
	}
	if c, ok := p.transcriber.(configured); ok {
		return c.TranscriptionConfigured()
	}
	return true
}

// minTailSegment is the shortest remainder cut as its own segment. Shorter
// tails are folded into the previous one.
const minTailSegment = time.Second

// SegmentCount returns ceil(duration / segment), at least 1, not counting a
// remainder shorter than minTailSegment.
func SegmentCount(duration, segment time.Duration) int {
	if duration <= 0 || segment <= 0 {
		return 1
	}
	n := int(duration / segment)
	if rest := duration % segment; rest >= minTailSegment || n == 0 {
		n++
	}
	return n
}

// Transcribe turns the recording at path into text. Files below the direct
// threshold go out in one call; larger files are probed, split into
// sequential segments and transcribed concurrently. A failed segment is
// skipped with a warning; only a run where every segment fails is an error.
func (p *Pipeline) Transcribe(ctx context.Context, path string, opts Options) (*Result, error) {
	if !p.Configured() {
		return nil, fmt.Errorf("transcription: %w", models.ErrNotConfigured)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat recording: %w", err)
	}

	emit := opts.OnProgress
	if emit == nil {
		emit = func(Event) {}
	}
	log := p.logger.WithFields(logrus.Fields{"file": filepath.Base(path), "size": info.Size()})

	if info.Size() < p.threshold {
		log.Debug("Transcribing recording in a single call")
		emit(Event{Kind: EventStarted, Total: 1})
		text, err := p.transcriber.Transcribe(ctx, llm.TranscriptionRequest{
			FilePath: path,
			Language: opts.Language,
			Prompt:   opts.Prompt,
		})
		if err != nil {
			return nil, err
		}
		emit(Event{Kind: EventFinished, Total: 1})
		return &Result{Text: strings.TrimSpace(text), Segments: 1}, nil
	}

	if p.segmenter == nil {
		return nil, fmt.Errorf("recording is %d bytes and no segmenter is configured", info.Size())
	}
	duration, err := p.segmenter.Duration(ctx, path)
	if err != nil {
		return nil, err
	}
	total := SegmentCount(duration, p.segment)

	dir, err := os.MkdirTemp(p.tempDir, "segments-*")
	if err != nil {
		return nil, fmt.Errorf("create segment directory: %w", err)
	}
	defer os.RemoveAll(dir)

	log.WithFields(logrus.Fields{"duration": duration, "segments": total}).Info("Transcribing recording in segments")
	emit(Event{Kind: EventStarted, Total: total})

	indexes := make([]int, total)
	for i := range indexes {
		indexes[i] = i
	}

	results, err := mapreduce.Map(ctx, indexes, p.limit, func(ctx context.Context, _ int, i int) (string, error) {
		n := i + 1
		emit(Event{Kind: EventSegmentStarted, Segment: n, Total: total})

		segPath := filepath.Join(dir, fmt.Sprintf("segment_%03d.wav", n))
		defer os.Remove(segPath)

		start := time.Duration(i) * p.segment
		length := p.segment
		if n == total && duration > start {
			length = duration - start
		}
		if err := p.segmenter.Extract(ctx, path, start, length, segPath); err != nil {
			return "", err
		}

		text, err := p.transcriber.Transcribe(ctx, llm.TranscriptionRequest{
			FilePath: segPath,
			Language: opts.Language,
			Prompt:   opts.Prompt,
		})
		if err != nil {
			return "", err
		}
		emit(Event{Kind: EventSegmentFinished, Segment: n, Total: total})
		return strings.TrimSpace(text), nil
	})
	if err != nil {
		return nil, err
	}

	result := &Result{Segments: total}
	sections := make([]string, 0, total)
	var firstErr error
	for _, r := range results {
		n := r.Index + 1
		if r.Err != nil {
			if firstErr == nil {
				firstErr = r.Err
			}
			warning := fmt.Sprintf("segment %d/%d could not be transcribed and was skipped", n, total)
			result.MissingSegments = append(result.MissingSegments, n)
			result.Warnings = append(result.Warnings, warning)
			log.WithError(r.Err).WithField("segment", n).Warn("Skipping segment")
			emit(Event{Kind: EventSegmentFailed, Segment: n, Total: total, Message: warning})
			continue
		}
		sections = append(sections, fmt.Sprintf("### Segment %d/%d\n\n%s", n, total, r.Value))
	}

	if len(sections) == 0 {
		return nil, fmt.Errorf("%w: %w", models.ErrAllSegmentsFailed, firstErr)
	}
	result.Text = strings.Join(sections, "\n\n")
	emit(Event{Kind: EventFinished, Total: total, Message: strings.Join(result.Warnings, "; ")})
	return result, nil
}
