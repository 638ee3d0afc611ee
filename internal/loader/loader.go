// Package loader собирает числа комментариев для ленты одним батчем на запрос.
package loader

import (
	"context"
	"errors"
	"time"

	"github.com/ButyrinIA/forum/internal/cache"
	"github.com/ButyrinIA/forum/internal/commenttree"
	"github.com/ButyrinIA/forum/internal/models"
	"github.com/graph-gophers/dataloader/v7"
)

type ctxKey struct{}

var ErrNoLoader = errors.New("comment count loader not found in context")

// CommentCounts - загрузчик числа комментариев (с ответами) по id поста
type CommentCounts = dataloader.Loader[models.ID, int]

// NewCommentCounts создает загрузчик поверх кэша. Запросы по всем ключам батча
// выпускаются сразу, затем результаты ожидаются по очереди.
func NewCommentCounts(c *cache.Cache) *CommentCounts {
	return dataloader.NewBatchedLoader(
		func(ctx context.Context, postIDs []models.ID) []*dataloader.Result[int] {
			for _, id := range postIDs {
				c.Get(cache.CommentsKey(id))
			}

			results := make([]*dataloader.Result[int], len(postIDs))
			for i, id := range postIDs {
				comments, err := cache.Comments(ctx, c, id)
				if err != nil {
					results[i] = &dataloader.Result[int]{Error: err}
					continue
				}
				results[i] = &dataloader.Result[int]{Data: commenttree.Count(commenttree.Compose(comments, commenttree.Handlers{}))}
			}
			return results
		},
		dataloader.WithWait[models.ID, int](2*time.Millisecond),
	)
}

func WithCommentCounts(ctx context.Context, l *CommentCounts) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

func CommentCountsFromContext(ctx context.Context) (*CommentCounts, error) {
	l, ok := ctx.Value(ctxKey{}).(*CommentCounts)
	if !ok || l == nil {
		return nil, ErrNoLoader
	}
	return l, nil
}

// CountComments возвращает числа комментариев для постов. Посты с ошибкой
// загрузки в результат не попадают; возвращается первая ошибка.
func CountComments(ctx context.Context, postIDs []models.ID) (map[models.ID]int, error) {
	l, err := CommentCountsFromContext(ctx)
	if err != nil {
		return nil, err
	}

	thunks := make([]dataloader.Thunk[int], len(postIDs))
	for i, id := range postIDs {
		thunks[i] = l.Load(ctx, id)
	}

	counts := make(map[models.ID]int, len(postIDs))
	var firstErr error
	for i, thunk := range thunks {
		n, err := thunk()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		counts[postIDs[i]] = n
	}
	return counts, firstErr
}
