// Package gateway - типизированный HTTP-доступ к сервису данных форума.
// Один вызов - один запрос: без повторов, без таймаутов, без заголовков авторизации.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ButyrinIA/forum/internal/failure"
	"github.com/ButyrinIA/forum/internal/metrics"
	"github.com/ButyrinIA/forum/internal/models"
	"github.com/sirupsen/logrus"
)

// API - операции сервиса данных, по одной на пару (ресурс, метод)
type API interface {
	ListPosts(ctx context.Context) ([]models.Post, error)
	GetPost(ctx context.Context, id models.ID) (*models.Post, error)
	CreatePost(ctx context.Context, draft models.PostDraft) (*models.Post, error)
	UpdatePost(ctx context.Context, id models.ID, patch models.Patch) (*models.Post, error)
	DeletePost(ctx context.Context, id models.ID) error
	ListComments(ctx context.Context, postID models.ID) ([]models.Comment, error)
	CreateComment(ctx context.Context, draft models.CommentDraft) (*models.Comment, error)
	UpdateComment(ctx context.Context, id models.ID, patch models.Patch) (*models.Comment, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, draft models.UserDraft) (*models.User, error)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     logrus.FieldLogger
	metrics    *metrics.Metrics
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ API = (*Client)(nil)

func (c *Client) ListPosts(ctx context.Context) ([]models.Post, error) {
	var wire []wirePost
	if err := c.do(ctx, http.MethodGet, "posts", "/posts", nil, nil, &wire); err != nil {
		return nil, err
	}
	posts := make([]models.Post, len(wire))
	for i, w := range wire {
		posts[i] = w.normalize()
	}
	return posts, nil
}

func (c *Client) GetPost(ctx context.Context, id models.ID) (*models.Post, error) {
	var wire wirePost
	if err := c.do(ctx, http.MethodGet, "posts", "/posts/"+url.PathEscape(id.String()), nil, nil, &wire); err != nil {
		return nil, err
	}
	post := wire.normalize()
	return &post, nil
}

func (c *Client) CreatePost(ctx context.Context, draft models.PostDraft) (*models.Post, error) {
	var wire wirePost
	if err := c.do(ctx, http.MethodPost, "posts", "/posts", nil, draft, &wire); err != nil {
		return nil, err
	}
	post := wire.normalize()
	return &post, nil
}

func (c *Client) UpdatePost(ctx context.Context, id models.ID, patch models.Patch) (*models.Post, error) {
	var wire wirePost
	if err := c.do(ctx, http.MethodPatch, "posts", "/posts/"+url.PathEscape(id.String()), nil, patch, &wire); err != nil {
		return nil, err
	}
	post := wire.normalize()
	return &post, nil
}

func (c *Client) DeletePost(ctx context.Context, id models.ID) error {
	return c.do(ctx, http.MethodDelete, "posts", "/posts/"+url.PathEscape(id.String()), nil, nil, nil)
}

func (c *Client) ListComments(ctx context.Context, postID models.ID) ([]models.Comment, error) {
	var wire []wireComment
	query := url.Values{"postId": []string{postID.String()}}
	if err := c.do(ctx, http.MethodGet, "comments", "/comments", query, nil, &wire); err != nil {
		return nil, err
	}
	comments := make([]models.Comment, len(wire))
	for i, w := range wire {
		comments[i] = w.normalize()
	}
	return comments, nil
}

func (c *Client) CreateComment(ctx context.Context, draft models.CommentDraft) (*models.Comment, error) {
	var wire wireComment
	if err := c.do(ctx, http.MethodPost, "comments", "/comments", nil, draft, &wire); err != nil {
		return nil, err
	}
	comment := wire.normalize()
	return &comment, nil
}

func (c *Client) UpdateComment(ctx context.Context, id models.ID, patch models.Patch) (*models.Comment, error) {
	var wire wireComment
	if err := c.do(ctx, http.MethodPatch, "comments", "/comments/"+url.PathEscape(id.String()), nil, patch, &wire); err != nil {
		return nil, err
	}
	comment := wire.normalize()
	return &comment, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var wire []wireUser
	if err := c.do(ctx, http.MethodGet, "users", "/users", nil, nil, &wire); err != nil {
		return nil, err
	}
	users := make([]models.User, len(wire))
	for i, w := range wire {
		users[i] = w.normalize()
	}
	return users, nil
}

func (c *Client) CreateUser(ctx context.Context, draft models.UserDraft) (*models.User, error) {
	var wire wireUser
	if err := c.do(ctx, http.MethodPost, "users", "/users", nil, draft, &wire); err != nil {
		return nil, err
	}
	user := wire.normalize()
	return &user, nil
}

// do выполняет один обмен запрос/ответ. Любая ошибка транспорта, код вне 2xx
// или неразбираемое тело возвращаются как failure.KindTransport.
func (c *Client) do(ctx context.Context, method, resource, path string, query url.Values, body, out any) error {
	op := method + " " + path
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s body: %w", resource, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return failure.Transport(op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log := c.logger.WithFields(logrus.Fields{"method": method, "url": target})
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.GatewayRequest(resource, method, "error")
		log.WithError(err).Debug("request failed")
		return failure.Transport(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.GatewayRequest(resource, method, "error")
		return failure.Transport(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.GatewayRequest(resource, method, "status")
		log.WithField("status", resp.StatusCode).Debug("unexpected status")
		return failure.Transportf(op, "HTTP %d", resp.StatusCode)
	}

	c.metrics.GatewayRequest(resource, method, "ok")
	log.WithField("status", resp.StatusCode).Debug("request done")

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return failure.Transport(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
