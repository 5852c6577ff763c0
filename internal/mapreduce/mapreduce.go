// Package mapreduce provides an ordered, bounded, skip-on-error map used for
// long transcripts and long recordings alike.
package mapreduce

import (
	"context"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one item. Index is the item's position in the input.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// Func processes one item.
type Func[In, Out any] func(ctx context.Context, index int, item In) (Out, error)

// Map applies fn to every item with at most limit calls in flight and returns
// the results in input order, whatever order they completed in. A failing
// item is recorded in its Result and does not stop the others. The returned
// error is non-nil only when ctx is cancelled.
func Map[In, Out any](ctx context.Context, items []In, limit int, fn Func[In, Out]) ([]Result[Out], error) {
	results := make([]Result[Out], len(items))
	if limit <= 0 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)

	for i, item := range items {
		i, item := i, item
		results[i].Index = i
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			out, err := fn(ctx, i, item)
			results[i].Value = out
			results[i].Err = err
			return nil
		})
	}
	_ = g.Wait()

	return results, ctx.Err()
}

// Partition splits results into successful values (in order) and the indexes
// of failed items.
func Partition[T any](results []Result[T]) (values []T, failed []int) {
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r.Index)
			continue
		}
		values = append(values, r.Value)
	}
	return values, failed
}

// SplitText cuts text into chunks of at most size runes. A chunk boundary is
// moved back to the last whitespace in the chunk's second half so words are
// not split when avoidable.
func SplitText(text string, size int) []string {
	if size <= 0 || utf8.RuneCountInString(text) <= size {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		cut := end
		for j := end; j > end-size/2 && j > start; j-- {
			if isSpace(runes[j-1]) {
				cut = j
				break
			}
		}
		chunks = append(chunks, string(runes[start:cut]))
		start = cut
	}
	return chunks
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
