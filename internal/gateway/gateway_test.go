package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ButyrinIA/forum/internal/failure"
	"github.com/ButyrinIA/forum/internal/logging"
	"github.com/ButyrinIA/forum/internal/metrics"
	"github.com/ButyrinIA/forum/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	query  string
	body   map[string]any
	ctype  string
}

func newTestServer(t *testing.T, status int, response string) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, ctype: r.Header.Get("Content-Type")}
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			_ = json.Unmarshal(data, &rec.body)
		}
		calls = append(calls, rec)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newClient(baseURL string) *Client {
	return New(baseURL, WithLogger(logging.Discard()), WithMetrics(metrics.New()))
}

func TestListPosts(t *testing.T) {
	srv, calls := newTestServer(t, http.StatusOK, `[
		{"id": 1, "title": "Первый", "content": "c", "authorName": "John", "createdAt": "2024-05-01T10:00:00.000Z", "likes": 3},
		{"id": "abc", "title": "Второй", "author": "Mary", "authorName": "ignored"}
	]`)

	posts, err := newClient(srv.URL).ListPosts(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 2)

	assert.Equal(t, models.ID("1"), posts[0].ID)
	assert.Equal(t, "John", posts[0].AuthorName)
	assert.Equal(t, 3, posts[0].Likes)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), posts[0].CreatedAt.UTC())

	assert.Equal(t, models.ID("abc"), posts[1].ID)
	assert.Equal(t, "Mary", posts[1].AuthorName, "author должен иметь приоритет над authorName")
	assert.Equal(t, 0, posts[1].Likes)
	assert.True(t, posts[1].CreatedAt.IsZero())

	require.Len(t, *calls, 1)
	assert.Equal(t, http.MethodGet, (*calls)[0].method)
	assert.Equal(t, "/posts", (*calls)[0].path)
}

func TestListComments(t *testing.T) {
	srv, calls := newTestServer(t, http.StatusOK, `[
		{"id": 1, "postId": 7, "text": "from text", "content": "from content", "likes": -2,
		 "replies": [{"id": 2, "authorName": "Bob", "content": "nested"}]},
		{"id": 3, "postId": "7", "parentId": 1, "content": "flat reply"}
	]`)

	comments, err := newClient(srv.URL).ListComments(context.Background(), "7")
	require.NoError(t, err)
	require.Len(t, comments, 2)

	assert.Equal(t, "from text", comments[0].Content)
	assert.Equal(t, 0, comments[0].Likes)
	require.Len(t, comments[0].Replies, 1)
	assert.Equal(t, "nested", comments[0].Replies[0].Content)
	assert.Equal(t, "Bob", comments[0].Replies[0].AuthorName)
	assert.Equal(t, models.ID("7"), comments[0].Replies[0].PostID)

	require.NotNil(t, comments[1].ParentID)
	assert.Equal(t, models.ID("1"), *comments[1].ParentID)

	assert.Equal(t, "/comments", (*calls)[0].path)
	assert.Equal(t, "postId=7", (*calls)[0].query)
}

func TestWrites(t *testing.T) {
	t.Run("CreatePost sends JSON body", func(t *testing.T) {
		srv, calls := newTestServer(t, http.StatusCreated, `{"id": 10, "title": "T", "content": "C", "authorName": "John", "likes": 0}`)
		created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

		post, err := newClient(srv.URL).CreatePost(context.Background(), models.PostDraft{
			Title: "T", Content: "C", AuthorName: "John", CreatedAt: created,
		})
		require.NoError(t, err)
		assert.Equal(t, models.ID("10"), post.ID)

		call := (*calls)[0]
		assert.Equal(t, http.MethodPost, call.method)
		assert.Equal(t, "application/json", call.ctype)
		assert.Equal(t, "T", call.body["title"])
		assert.Equal(t, "John", call.body["authorName"])
		assert.Equal(t, "2024-01-02T03:04:05Z", call.body["createdAt"])
		assert.Equal(t, 0.0, call.body["likes"])
		assert.NotContains(t, call.body, "image")
	})

	t.Run("UpdatePost patches", func(t *testing.T) {
		srv, calls := newTestServer(t, http.StatusOK, `{"id": 10, "likes": 4}`)

		post, err := newClient(srv.URL).UpdatePost(context.Background(), "10", models.Patch{"likes": 4})
		require.NoError(t, err)
		assert.Equal(t, 4, post.Likes)
		assert.Equal(t, http.MethodPatch, (*calls)[0].method)
		assert.Equal(t, "/posts/10", (*calls)[0].path)
		assert.Equal(t, 4.0, (*calls)[0].body["likes"])
	})

	t.Run("DeletePost ignores body", func(t *testing.T) {
		srv, calls := newTestServer(t, http.StatusOK, `{}`)
		require.NoError(t, newClient(srv.URL).DeletePost(context.Background(), "10"))
		assert.Equal(t, http.MethodDelete, (*calls)[0].method)
	})

	t.Run("CreateComment with parent", func(t *testing.T) {
		srv, calls := newTestServer(t, http.StatusCreated, `{"id": 5, "postId": 1, "parentId": 2, "content": "hi"}`)
		parent := models.ID("2")

		comment, err := newClient(srv.URL).CreateComment(context.Background(), models.CommentDraft{PostID: "1", ParentID: &parent, Content: "hi"})
		require.NoError(t, err)
		assert.Equal(t, models.ID("5"), comment.ID)
		assert.Equal(t, "2", (*calls)[0].body["parentId"])
	})

	t.Run("users", func(t *testing.T) {
		srv, calls := newTestServer(t, http.StatusCreated, `{"id": "u1", "name": "Ann", "email": "ann@example.com"}`)
		user, err := newClient(srv.URL).CreateUser(context.Background(), models.UserDraft{Name: "Ann", Email: "ann@example.com"})
		require.NoError(t, err)
		assert.Equal(t, "Ann", user.Name)
		assert.Equal(t, "/users", (*calls)[0].path)
	})
}

func TestTransportFailures(t *testing.T) {
	t.Run("non-2xx", func(t *testing.T) {
		srv, _ := newTestServer(t, http.StatusNotFound, `{}`)
		_, err := newClient(srv.URL).GetPost(context.Background(), "404")
		require.Error(t, err)
		assert.True(t, errors.Is(err, failure.ErrTransport))
		assert.Contains(t, err.Error(), "HTTP 404")
	})

	t.Run("bad body", func(t *testing.T) {
		srv, _ := newTestServer(t, http.StatusOK, `not json`)
		_, err := newClient(srv.URL).ListUsers(context.Background())
		assert.Equal(t, failure.KindTransport, failure.KindOf(err))
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := newClient(url).ListPosts(context.Background())
		assert.True(t, errors.Is(err, failure.ErrTransport))
	})
}
