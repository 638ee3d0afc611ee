package commenttree

import (
	"context"
	"testing"
	"time"

	"github.com/ButyrinIA/forum/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idPtr(id models.ID) *models.ID {
	return &id
}

func TestComposeNested(t *testing.T) {
	input := []models.Comment{
		{ID: "1", Content: "a", Replies: []models.Comment{
			{ID: "2", Content: "b", Replies: []models.Comment{}},
		}},
		{ID: "3", Content: "c"},
	}

	roots := Compose(input, Handlers{})
	require.Len(t, roots, 2)

	assert.Equal(t, models.ID("1"), roots[0].ID)
	require.Len(t, roots[0].Children, 1)
	assert.Equal(t, models.ID("2"), roots[0].Children[0].ID)
	assert.Equal(t, 1, roots[0].Children[0].Depth)
	assert.Empty(t, roots[0].Children[0].Children, "пустой replies - базовый случай")

	assert.Equal(t, models.ID("3"), roots[1].ID)
	assert.Empty(t, roots[1].Children, "отсутствующий replies равен пустому")
	assert.Equal(t, 3, Count(roots))
}

func TestComposeFlat(t *testing.T) {
	input := []models.Comment{
		{ID: "1", Content: "root"},
		{ID: "4", ParentID: idPtr("2"), Content: "deep"},
		{ID: "2", ParentID: idPtr("1"), Content: "reply"},
		{ID: "3", ParentID: idPtr("missing"), Content: "orphan"},
		{ID: "5", ParentID: idPtr("5"), Content: "self"},
	}

	roots := Compose(input, Handlers{})
	require.Len(t, roots, 3)
	assert.Equal(t, []models.ID{"1", "3", "5"}, []models.ID{roots[0].ID, roots[1].ID, roots[2].ID})

	reply := Find(roots, "2")
	require.NotNil(t, reply)
	assert.Equal(t, 1, reply.Depth)
	require.Len(t, reply.Children, 1)
	assert.Equal(t, models.ID("4"), reply.Children[0].ID)
	assert.Equal(t, 2, reply.Children[0].Depth)
}

func TestComposeBreaksCycles(t *testing.T) {
	input := []models.Comment{
		{ID: "a", ParentID: idPtr("b")},
		{ID: "b", ParentID: idPtr("a")},
	}

	roots := Compose(input, Handlers{})
	require.Len(t, roots, 1)
	assert.Equal(t, models.ID("b"), roots[0].ID)
	require.Len(t, roots[0].Children, 1)
	assert.Equal(t, models.ID("a"), roots[0].Children[0].ID)
	assert.Equal(t, 2, Count(roots))
}

func TestComposeDuplicateIDs(t *testing.T) {
	input := []models.Comment{
		{ID: "1", Content: "root", Replies: []models.Comment{
			{ID: "2", Content: "nested", Replies: []models.Comment{{ID: "", Content: "no id"}}},
		}},
		{ID: "2", Content: "flat"},
		{ID: "3", ParentID: idPtr("2"), Content: "reply to flat"},
	}

	roots := Compose(input, Handlers{})
	require.Len(t, roots, 2)
	assert.Equal(t, "root", roots[0].Content)
	assert.Equal(t, "flat", roots[1].Content)

	nested := roots[0].Children[0]
	assert.Equal(t, "nested", nested.Content)
	require.Len(t, nested.Children, 1, "вложенные replies привязаны к своему узлу, а не по id")
	assert.Equal(t, "no id", nested.Children[0].Content)

	require.Len(t, roots[1].Children, 1, "parentId указывает на запись верхнего уровня")
	assert.Equal(t, "reply to flat", roots[1].Children[0].Content)
	assert.Equal(t, 5, Count(roots))
}

func TestDisplayFields(t *testing.T) {
	created := time.Date(2024, 3, 9, 15, 0, 0, 0, time.UTC)
	input := []models.Comment{
		{ID: "1", AuthorName: "mary", Content: "hi", CreatedAt: created, Likes: 4},
		{ID: "2"},
	}

	roots := Compose(input, Handlers{}, WithLocation(time.UTC), WithOpenReply("2"))

	assert.Equal(t, "M", roots[0].Initial)
	assert.Equal(t, "mary", roots[0].Author)
	assert.Equal(t, "3/9/2024", roots[0].When)
	assert.Equal(t, 4, roots[0].Likes)
	assert.False(t, roots[0].ReplyOpen)

	assert.Equal(t, "A", roots[1].Initial)
	assert.Equal(t, "Anonymous", roots[1].Author)
	assert.Equal(t, JustNow, roots[1].When)
	assert.Equal(t, "", roots[1].Content)
	assert.Equal(t, 0, roots[1].Likes)
	assert.True(t, roots[1].ReplyOpen)
}

func TestHandlersAreThreaded(t *testing.T) {
	var liked []models.ID
	var replied []string
	h := Handlers{
		Like: func(ctx context.Context, c models.Comment) error {
			liked = append(liked, c.ID)
			return nil
		},
		Reply: func(ctx context.Context, parent models.Comment, text string) error {
			replied = append(replied, string(parent.ID)+":"+text)
			return nil
		},
	}
	input := []models.Comment{{ID: "1", PostID: "p", Replies: []models.Comment{{ID: "2", PostID: "p"}}}}

	roots := Compose(input, h)
	child := Find(roots, "2")
	require.NotNil(t, child)

	require.NoError(t, child.Like(context.Background()))
	require.NoError(t, child.Reply(context.Background(), "thanks"))
	require.NoError(t, roots[0].Like(context.Background()))

	assert.Equal(t, []models.ID{"2", "1"}, liked)
	assert.Equal(t, []string{"2:thanks"}, replied)
	assert.Empty(t, roots[0].Comment().Replies, "узел хранит комментарий без поддерева")

	bare := Compose(input, Handlers{})
	assert.ErrorIs(t, bare[0].Like(context.Background()), ErrNoHandler)
	assert.ErrorIs(t, bare[0].Reply(context.Background(), "x"), ErrNoHandler)
}

func TestFindMissing(t *testing.T) {
	assert.Nil(t, Find(nil, "1"))
	assert.Equal(t, 0, Count(nil))
}
