package loader

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ButyrinIA/forum/internal/cache"
	"github.com/ButyrinIA/forum/internal/logging"
	"github.com/ButyrinIA/forum/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFetcher struct {
	mu    sync.Mutex
	calls map[cache.Key]int
	data  map[models.ID][]models.Comment
}

func (f *countingFetcher) fetch(ctx context.Context, key cache.Key) (any, error) {
	f.mu.Lock()
	f.calls[key]++
	f.mu.Unlock()

	comments, ok := f.data[key.ID]
	if !ok {
		return nil, errors.New("HTTP 500")
	}
	return comments, nil
}

func TestCountComments(t *testing.T) {
	f := &countingFetcher{
		calls: make(map[cache.Key]int),
		data: map[models.ID][]models.Comment{
			"1": {
				{ID: "c1", Replies: []models.Comment{{ID: "c2"}}},
				{ID: "c3"},
			},
			"2": {},
		},
	}
	c := cache.New(f.fetch, cache.WithLogger(logging.Discard()))
	defer c.Close()

	ctx := WithCommentCounts(context.Background(), NewCommentCounts(c))

	counts, err := CountComments(ctx, []models.ID{"1", "2", "1"})
	require.NoError(t, err)
	assert.Equal(t, map[models.ID]int{"1": 3, "2": 0}, counts)
	assert.Equal(t, 1, f.calls[cache.CommentsKey("1")], "повторный ключ не выпускает второй запрос")
	assert.Equal(t, 1, f.calls[cache.CommentsKey("2")])
}

func TestCountCommentsPartialFailure(t *testing.T) {
	f := &countingFetcher{
		calls: make(map[cache.Key]int),
		data:  map[models.ID][]models.Comment{"1": {{ID: "c1"}}},
	}
	c := cache.New(f.fetch, cache.WithLogger(logging.Discard()))
	defer c.Close()

	ctx := WithCommentCounts(context.Background(), NewCommentCounts(c))

	counts, err := CountComments(ctx, []models.ID{"1", "broken"})
	assert.EqualError(t, err, "HTTP 500")
	assert.Equal(t, map[models.ID]int{"1": 1}, counts)
}

func TestCountCommentsNoLoader(t *testing.T) {
	_, err := CountComments(context.Background(), []models.ID{"1"})
	assert.ErrorIs(t, err, ErrNoLoader)
	assert.Equal(t, "comment count loader not found in context", err.Error())
}
