package gateway

import (
	"strings"
	"time"

	"github.com/ButyrinIA/forum/internal/models"
)

// Записи приходят от сервиса данных в нескольких формах: author/authorName,
// text/content, likes может отсутствовать. Здесь все формы сводятся к models.*.

type wirePost struct {
	ID         models.ID `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Image      string    `json:"image"`
	Author     string    `json:"author"`
	AuthorName string    `json:"authorName"`
	CreatedAt  string    `json:"createdAt"`
	Date       string    `json:"date"`
	Likes      float64   `json:"likes"`
}

type wireComment struct {
	ID         models.ID     `json:"id"`
	PostID     models.ID     `json:"postId"`
	ParentID   *models.ID    `json:"parentId"`
	Author     string        `json:"author"`
	AuthorName string        `json:"authorName"`
	Text       string        `json:"text"`
	Content    string        `json:"content"`
	CreatedAt  string        `json:"createdAt"`
	Likes      float64       `json:"likes"`
	Replies    []wireComment `json:"replies"`
}

type wireUser struct {
	ID        models.ID `json:"id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt string    `json:"createdAt"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func likes(v float64) int {
	if v < 0 {
		return 0
	}
	return int(v)
}

// parseTime понимает RFC3339 и дату без времени; нераспознанное значение дает нулевое время
func parseTime(values ...string) time.Time {
	for _, v := range values {
		if v == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

func (w wirePost) normalize() models.Post {
	return models.Post{
		ID:         w.ID,
		Title:      w.Title,
		Content:    w.Content,
		Image:      w.Image,
		AuthorName: firstNonEmpty(w.Author, w.AuthorName),
		CreatedAt:  parseTime(w.CreatedAt, w.Date),
		Likes:      likes(w.Likes),
	}
}

func (w wireComment) normalize() models.Comment {
	c := models.Comment{
		ID:         w.ID,
		PostID:     w.PostID,
		Content:    firstNonEmpty(w.Text, w.Content),
		AuthorName: firstNonEmpty(w.Author, w.AuthorName),
		CreatedAt:  parseTime(w.CreatedAt),
		Likes:      likes(w.Likes),
	}
	if w.ParentID != nil && *w.ParentID != "" {
		parent := *w.ParentID
		c.ParentID = &parent
	}
	if len(w.Replies) > 0 {
		c.Replies = make([]models.Comment, len(w.Replies))
		for i, r := range w.Replies {
			reply := r.normalize()
			if reply.PostID == "" {
				reply.PostID = c.PostID
			}
			c.Replies[i] = reply
		}
	}
	return c
}

func (w wireUser) normalize() models.User {
	return models.User{
		ID:        w.ID,
		Name:      firstNonEmpty(w.Name, w.Username),
		Email:     w.Email,
		CreatedAt: parseTime(w.CreatedAt),
	}
}
