package cache

import (
	"context"
	"fmt"

	"github.com/ButyrinIA/forum/internal/gateway"
	"github.com/ButyrinIA/forum/internal/models"
)

// GatewayFetcher отображает ключи кэша на операции шлюза
func GatewayFetcher(api gateway.API) Fetcher {
	return func(ctx context.Context, key Key) (any, error) {
		switch key.Kind {
		case KindPosts:
			return api.ListPosts(ctx)
		case KindPost:
			return api.GetPost(ctx, key.ID)
		case KindComments:
			return api.ListComments(ctx, key.ID)
		case KindUsers:
			return api.ListUsers(ctx)
		default:
			return nil, fmt.Errorf("no fetcher for key %s", key)
		}
	}
}

func Posts(ctx context.Context, c *Cache) ([]models.Post, error) {
	return load[[]models.Post](ctx, c, PostsKey())
}

func Post(ctx context.Context, c *Cache, id models.ID) (*models.Post, error) {
	return load[*models.Post](ctx, c, PostKey(id))
}

func Comments(ctx context.Context, c *Cache, postID models.ID) ([]models.Comment, error) {
	return load[[]models.Comment](ctx, c, CommentsKey(postID))
}

func load[T any](ctx context.Context, c *Cache, key Key) (T, error) {
	var zero T
	v, err := c.Load(ctx, key)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache value for %s has type %T", key, v)
	}
	return typed, nil
}
