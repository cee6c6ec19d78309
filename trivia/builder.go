/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"lukechampine.com/frand"
)

const (
	DefaultCategories = 6
	DefaultClues      = 5
	DefaultPoolSize   = 100
)

var errTooFew = errors.New("not enough items")

// CategorySummary is one entry of the data source's category listing.
type CategorySummary struct {
	ID    int
	Title string
}

// RawClue is a clue as the data source returns it.
type RawClue struct {
	ID       int
	Question string
	Answer   string
}

// CategoryDetail is a category together with every clue the data source has
// for it.
type CategoryDetail struct {
	ID    int
	Title string
	Clues []RawClue
}

// Source is the quiz data source a Builder draws from.
type Source interface {
	ListCategories(ctx context.Context, count int) ([]CategorySummary, error)
	Category(ctx context.Context, id int) (CategoryDetail, error)
}

// Builder assembles boards from random samples of a Source.
type Builder struct {
	source      Source
	poolSize    int
	concurrency int
	perm        func(n int) []int
}

type Option func(*Builder)

// WithPoolSize sets how many categories are listed before sampling. The pool
// is never smaller than the number of categories requested.
func WithPoolSize(n int) Option {
	return func(b *Builder) {
		b.poolSize = n
	}
}

// WithConcurrency sets how many category fetches may be in flight at once.
// Values below two fetch sequentially.
func WithConcurrency(n int) Option {
	return func(b *Builder) {
		b.concurrency = n
	}
}

// WithPerm replaces the random permutation used for sampling.
func WithPerm(perm func(n int) []int) Option {
	return func(b *Builder) {
		b.perm = perm
	}
}

func NewBuilder(source Source, opts ...Option) *Builder {
	b := &Builder{
		source:      source,
		poolSize:    DefaultPoolSize,
		concurrency: 1,
		perm:        frand.Perm,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// sample returns k distinct indexes in [0,n), uniformly at random.
func (b *Builder) sample(n, k int) []int {
	return b.perm(n)[:k]
}

// SelectCategoryIDs lists the category pool and picks count distinct ids from
// it at random.
func (b *Builder) SelectCategoryIDs(ctx context.Context, count int) ([]int, error) {
	if count < 1 {
		return nil, fmt.Errorf("category count must be positive, got %d", count)
	}

	pool, err := b.source.ListCategories(ctx, max(b.poolSize, count))
	if err != nil {
		return nil, &DataSourceError{Op: "list categories", Err: err}
	}

	ids := lo.Uniq(lo.Map(pool, func(c CategorySummary, _ int) int {
		return c.ID
	}))
	if len(ids) < count {
		return nil, &DataSourceError{
			Op:  "list categories",
			Err: fmt.Errorf("%w: pool has %d categories, need %d", errTooFew, len(ids), count),
		}
	}

	selected := lo.Map(b.sample(len(ids), count), func(i int, _ int) int {
		return ids[i]
	})

	log.Debug().Int("pool", len(ids)).Ints("ids", selected).Msg("selected-categories")

	return selected, nil
}

// BuildCategory fetches a category and keeps cluesPerCategory of its clues,
// chosen at random, all Hidden. Clue text is kept verbatim.
func (b *Builder) BuildCategory(ctx context.Context, id, cluesPerCategory int) (Category, error) {
	if cluesPerCategory < 1 {
		return Category{}, fmt.Errorf("clue count must be positive, got %d", cluesPerCategory)
	}

	op := fmt.Sprintf("fetch category %d", id)

	detail, err := b.source.Category(ctx, id)
	if err != nil {
		return Category{}, &DataSourceError{Op: op, Err: err}
	}

	if len(detail.Clues) < cluesPerCategory {
		return Category{}, &DataSourceError{
			Op:  op,
			Err: fmt.Errorf("%w: category has %d clues, need %d", errTooFew, len(detail.Clues), cluesPerCategory),
		}
	}

	clues := lo.Map(b.sample(len(detail.Clues), cluesPerCategory), func(i int, _ int) Clue {
		raw := detail.Clues[i]

		return Clue{Question: raw.Question, Answer: raw.Answer, State: Hidden}
	})

	return Category{Title: detail.Title, Clues: clues}, nil
}

// BuildBoard selects categoryCount categories and builds each one. Categories
// appear in the order their ids were selected, whether fetched sequentially
// or concurrently. Any failure discards the whole build.
func (b *Builder) BuildBoard(ctx context.Context, categoryCount, cluesPerCategory int) (*Board, error) {
	if cluesPerCategory < 1 {
		return nil, fmt.Errorf("clue count must be positive, got %d", cluesPerCategory)
	}

	ids, err := b.SelectCategoryIDs(ctx, categoryCount)
	if err != nil {
		return nil, err
	}

	categories := make([]Category, len(ids))

	if b.concurrency < 2 {
		for i, id := range ids {
			if err := ctx.Err(); err != nil {
				return nil, &DataSourceError{Op: "build board", Err: err}
			}

			categories[i], err = b.BuildCategory(ctx, id, cluesPerCategory)
			if err != nil {
				return nil, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(b.concurrency)

		for i, id := range ids {
			i, id := i, id
			g.Go(func() error {
				cat, err := b.BuildCategory(gctx, id, cluesPerCategory)
				if err != nil {
					return err
				}
				categories[i] = cat

				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	log.Debug().Int("categories", len(categories)).Int("clues", cluesPerCategory).Msg("board-built")

	return &Board{categories: categories}, nil
}
