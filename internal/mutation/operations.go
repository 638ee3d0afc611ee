package mutation

import (
	"context"
	"strings"
	"time"

	"github.com/ButyrinIA/forum/internal/cache"
	"github.com/ButyrinIA/forum/internal/failure"
	"github.com/ButyrinIA/forum/internal/gateway"
	"github.com/ButyrinIA/forum/internal/models"
)

const (
	MsgEmptyComment = "Comment cannot be empty."
	MsgEmptyReply   = "Reply cannot be empty."
	MsgPostRequired = "Title and content are required."
)

// LikePost увеличивает счетчик на единицу относительно известного клиенту значения
func LikePost(post models.Post) Operation {
	return Operation{
		Name: "likePost",
		Exec: func(ctx context.Context, api gateway.API) error {
			_, err := api.UpdatePost(ctx, post.ID, models.Patch{"likes": post.Likes + 1})
			return err
		},
		Invalidates: []cache.Key{cache.PostKey(post.ID), cache.PostsKey()},
	}
}

func LikeComment(comment models.Comment) Operation {
	return Operation{
		Name: "likeComment",
		Exec: func(ctx context.Context, api gateway.API) error {
			_, err := api.UpdateComment(ctx, comment.ID, models.Patch{"likes": comment.Likes + 1})
			return err
		},
		Invalidates: []cache.Key{cache.CommentsKey(comment.PostID)},
	}
}

func AddComment(postID models.ID, author, text string, now time.Time) Operation {
	return Operation{
		Name:     "addComment",
		Validate: required(MsgEmptyComment, text),
		Exec: func(ctx context.Context, api gateway.API) error {
			_, err := api.CreateComment(ctx, models.CommentDraft{
				PostID:     postID,
				Content:    strings.TrimSpace(text),
				AuthorName: models.DisplayName(author),
				CreatedAt:  now,
			})
			return err
		},
		Invalidates: []cache.Key{cache.CommentsKey(postID)},
	}
}

// ReplyToComment сохраняет ответ как комментарий с parentId
func ReplyToComment(parent models.Comment, author, text string, now time.Time) Operation {
	parentID := parent.ID
	return Operation{
		Name:     "replyToComment",
		Validate: required(MsgEmptyReply, text),
		Exec: func(ctx context.Context, api gateway.API) error {
			_, err := api.CreateComment(ctx, models.CommentDraft{
				PostID:     parent.PostID,
				ParentID:   &parentID,
				Content:    strings.TrimSpace(text),
				AuthorName: models.DisplayName(author),
				CreatedAt:  now,
			})
			return err
		},
		Invalidates: []cache.Key{cache.CommentsKey(parent.PostID)},
	}
}

func CreatePost(draft models.PostDraft) Operation {
	return Operation{
		Name:     "createPost",
		Validate: required(MsgPostRequired, draft.Title, draft.Content),
		Exec: func(ctx context.Context, api gateway.API) error {
			draft.AuthorName = models.DisplayName(draft.AuthorName)
			_, err := api.CreatePost(ctx, draft)
			return err
		},
		Invalidates: []cache.Key{cache.PostsKey()},
	}
}

func UpdatePost(id models.ID, patch models.Patch) Operation {
	return Operation{
		Name: "updatePost",
		Exec: func(ctx context.Context, api gateway.API) error {
			_, err := api.UpdatePost(ctx, id, patch)
			return err
		},
		Invalidates: []cache.Key{cache.PostKey(id), cache.PostsKey()},
	}
}

func DeletePost(id models.ID) Operation {
	return Operation{
		Name: "deletePost",
		Exec: func(ctx context.Context, api gateway.API) error {
			return api.DeletePost(ctx, id)
		},
		Invalidates: []cache.Key{cache.PostKey(id), cache.PostsKey(), cache.CommentsKey(id)},
	}
}

func required(message string, values ...string) func() error {
	return func() error {
		for _, v := range values {
			if strings.TrimSpace(v) == "" {
				return failure.Validation(message)
			}
		}
		return nil
	}
}
