package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/Messijah/PedagogiskDialog/internal/llm"
	"github.com/Messijah/PedagogiskDialog/internal/mapreduce"
	"github.com/Messijah/PedagogiskDialog/internal/models"
	"github.com/Messijah/PedagogiskDialog/internal/prompts"
)

// maxCombineRounds bounds the re-chunking of partial analyses. The last
// round sends the merge prompt whatever its length.
const maxCombineRounds = 4

// Summarizer renders stage prompts and sends them to the completion
// backend, splitting bodies longer than maxChars into chunks that are
// analysed independently and then combined.
type Summarizer struct {
	completer llm.Completer
	prompts   *prompts.Catalogue
	maxChars  int
	limit     int
	logger    *logrus.Logger
}

// NewSummarizer creates a summarizer.
func NewSummarizer(completer llm.Completer, catalogue *prompts.Catalogue, maxChars, limit int, logger *logrus.Logger) *Summarizer {
	if maxChars <= 0 {
		maxChars = 2000
	}
	if limit <= 0 {
		limit = 1
	}
	return &Summarizer{
		completer: completer,
		prompts:   catalogue,
		maxChars:  maxChars,
		limit:     limit,
		logger:    logger,
	}
}

// Progress receives (done, total) after each chunk.
type Progress func(done, total int)

// Generate produces the AI output of stage n.
func (s *Summarizer) Generate(ctx context.Context, n int, in prompts.Input, progress Progress) (string, error) {
	if progress == nil {
		progress = func(int, int) {}
	}
	log := s.logger.WithField("stage", n)

	if utf8.RuneCountInString(in.Body) <= s.maxChars {
		prompt, err := s.prompts.Stage(n, in)
		if err != nil {
			return "", err
		}
		out, err := s.complete(ctx, prompt)
		if err != nil {
			return "", err
		}
		progress(1, 1)
		return out, nil
	}

	chunks := mapreduce.SplitText(in.Body, s.maxChars)
	log.WithFields(logrus.Fields{"chars": utf8.RuneCountInString(in.Body), "chunks": len(chunks)}).
		Info("Analysing long body in chunks")

	partials, err := s.mapChunks(ctx, chunks, func(chunk string) (string, error) {
		local := in
		local.Body = chunk
		return s.prompts.Stage(n, local)
	}, progress, log)
	if err != nil {
		return "", err
	}

	return s.combine(ctx, partials, log)
}

// combine joins partial analyses, re-chunking while the combined prompt is
// longer than twice the chunk size.
func (s *Summarizer) combine(ctx context.Context, parts []string, log *logrus.Entry) (string, error) {
	render := s.prompts.Combine
	for round := 1; ; round++ {
		prompt, err := render(parts)
		if err != nil {
			return "", err
		}
		if utf8.RuneCountInString(prompt) <= 2*s.maxChars || round >= maxCombineRounds {
			return s.complete(ctx, prompt)
		}

		groups := mapreduce.SplitText(strings.Join(parts, "\n\n"), s.maxChars)
		log.WithFields(logrus.Fields{"round": round, "groups": len(groups)}).Info("Combined prompt too long; summarising in groups")

		groupRender := render
		parts, err = s.mapChunks(ctx, groups, func(group string) (string, error) {
			return groupRender([]string{group})
		}, nil, log)
		if err != nil {
			return "", err
		}
		if len(parts) == 1 {
			return parts[0], nil
		}
		render = s.prompts.Merge
	}
}

// mapChunks renders and completes every chunk with bounded concurrency,
// skipping failures. It fails only when no chunk succeeds.
func (s *Summarizer) mapChunks(ctx context.Context, chunks []string, render func(string) (string, error), progress Progress, log *logrus.Entry) ([]string, error) {
	total := len(chunks)
	done := 0
	var mu sync.Mutex

	results, err := mapreduce.Map(ctx, chunks, s.limit, func(ctx context.Context, i int, chunk string) (string, error) {
		prompt, err := render(chunk)
		if err != nil {
			return "", err
		}
		out, err := s.complete(ctx, prompt)
		if progress != nil {
			mu.Lock()
			done++
			progress(done, total)
			mu.Unlock()
		}
		return out, err
	})
	if err != nil {
		return nil, err
	}

	values, failed := mapreduce.Partition(results)
	for _, i := range failed {
		log.WithError(results[i].Err).WithField("chunk", i+1).Warn("Skipping chunk that failed analysis")
	}
	if len(values) == 0 {
		if len(failed) == 0 {
			return nil, fmt.Errorf("%w: nothing to analyse", models.ErrCompletionFailed)
		}
		first := results[failed[0]].Err
		if errors.Is(first, models.ErrNotConfigured) {
			return nil, first
		}
		return nil, fmt.Errorf("%w: no chunk could be analysed: %w", models.ErrCompletionFailed, first)
	}
	return values, nil
}

func (s *Summarizer) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := s.completer.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: s.prompts.System()},
			{Role: llm.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	out := strings.TrimSpace(resp.Content)
	if out == "" {
		return "", fmt.Errorf("%w: empty response", models.ErrCompletionFailed)
	}
	return out, nil
}
