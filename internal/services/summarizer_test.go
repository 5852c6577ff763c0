package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Messijah/PedagogiskDialog/internal/llm"
	"github.com/Messijah/PedagogiskDialog/internal/models"
	"github.com/Messijah/PedagogiskDialog/internal/prompts"
)

func words(n int, word string) string {
	return strings.TrimSpace(strings.Repeat(word+" ", n))
}

// scriptedCompleter answers each prompt with reply(prompt).
type scriptedCompleter struct {
	mu      sync.Mutex
	prompts []string
	reply   func(prompt string) string
}

func (s *scriptedCompleter) Name() string { return "scripted" }

func (s *scriptedCompleter) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	prompt := req.Messages[len(req.Messages)-1].Content
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	return &llm.CompletionResponse{Content: s.reply(prompt)}, nil
}

func (s *scriptedCompleter) count(marker string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.prompts {
		if strings.Contains(p, marker) {
			n++
		}
	}
	return n
}

func (s *scriptedCompleter) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompts[len(s.prompts)-1]
}

func TestSummarizerShortBodyIsOneCall(t *testing.T) {
	c := &fakeCompleter{}
	s := NewSummarizer(c, prompts.Default(), 2000, 2, quietLogger())

	out, err := s.Generate(context.Background(), 2, prompts.Input{Problem: "P", Body: "kort"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Förslag", out)
	assert.Len(t, c.calls(), 1)
}

func TestSummarizerChunksAndCombines(t *testing.T) {
	c := &fakeCompleter{}
	s := NewSummarizer(c, prompts.Default(), 100, 2, quietLogger())

	// Three chunks of ~100 runes; the middle one is rejected by the model.
	body := words(20, "ordet") + " " + words(20, "FAIL") + " " + words(20, "slut")

	var done, total int
	out, err := s.Generate(context.Background(), 3, prompts.Input{Problem: "P", Body: body}, func(d, tot int) {
		done, total = d, tot
	})
	require.NoError(t, err)
	assert.Equal(t, "Sammanfattning", out)

	calls := c.calls()
	require.NotEmpty(t, calls)
	last := calls[len(calls)-1]
	assert.True(t, strings.Contains(last, "DELANALYSER") || strings.Contains(last, "SAMMANFATTNINGAR"))
	assert.Equal(t, total, done)
	assert.Greater(t, total, 1)
}

func TestSummarizerAllChunksFail(t *testing.T) {
	c := &fakeCompleter{}
	s := NewSummarizer(c, prompts.Default(), 50, 2, quietLogger())

	_, err := s.Generate(context.Background(), 2, prompts.Input{Problem: "P", Body: words(40, "FAIL")}, nil)
	assert.ErrorIs(t, err, models.ErrCompletionFailed)
}

func TestSummarizerMergesLongPartials(t *testing.T) {
	long := words(60, "lång")
	c := &scriptedCompleter{reply: func(prompt string) string {
		if strings.Contains(prompt, "SAMMANFATTNINGAR") {
			return "FINAL"
		}
		return long
	}}
	s := NewSummarizer(c, prompts.Default(), 400, 2, quietLogger())

	out, err := s.Generate(context.Background(), 3, prompts.Input{Problem: "P", Body: words(200, "ordet")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "FINAL", out)

	// Combined partials exceed the limit, so groups are summarised and
	// then merged.
	assert.Positive(t, c.count("DELANALYSER"))
	assert.Positive(t, c.count("SAMMANFATTNINGAR"))
	assert.Contains(t, c.last(), "SAMMANFATTNINGAR")
}

func TestSummarizerCombineRoundsAreBounded(t *testing.T) {
	long := words(60, "lång")
	c := &scriptedCompleter{reply: func(string) string { return long }}
	s := NewSummarizer(c, prompts.Default(), 400, 2, quietLogger())

	out, err := s.Generate(context.Background(), 3, prompts.Input{Problem: "P", Body: words(200, "ordet")}, nil)
	require.NoError(t, err)
	assert.Equal(t, long, out)

	// Replies never shrink; the last round sends the merge prompt although
	// it is still over the limit.
	final := c.last()
	assert.Contains(t, final, "SAMMANFATTNINGAR")
	assert.Greater(t, utf8.RuneCountInString(final), 2*400)
	assert.Less(t, c.count("SAMMANFATTNINGAR"), 4*maxCombineRounds)
}
