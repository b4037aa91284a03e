// Package paginate turns continuation-token endpoints into lazy sequences.
package paginate

import (
	"context"
	"fmt"
	"iter"
)

// FetchFunc fetches one page. An empty next token ends the sequence.
type FetchFunc[T any] func(ctx context.Context, token string) (items []T, next string, err error)

// Pages yields every item of every page in provider order. Each range over
// the returned sequence starts again from the first page. A fetch error is
// yielded once with the zero T and ends the sequence.
func Pages[T any](ctx context.Context, fetch FetchFunc[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		token := ""
		seen := map[string]struct{}{}
		for {
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}
			items, next, err := fetch(ctx, token)
			if err != nil {
				yield(zero, err)
				return
			}
			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}
			if next == "" {
				return
			}
			if _, dup := seen[next]; dup {
				yield(zero, fmt.Errorf("continuation token %q repeated", next))
				return
			}
			seen[next] = struct{}{}
			token = next
		}
	}
}

// Collect drains Pages. On error it returns nil and the error; pages already
// fetched are discarded.
func Collect[T any](ctx context.Context, fetch FetchFunc[T]) ([]T, error) {
	var out []T
	for item, err := range Pages(ctx, fetch) {
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
