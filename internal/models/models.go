package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Anonymous подставляется вместо пустого имени автора
const Anonymous = "Anonymous"

// ID - непрозрачный идентификатор, присвоенный сервисом данных.
// На входе допускается строка или число, на выходе всегда строка.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", string(b), err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

type Post struct {
	ID         ID        `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Image      string    `json:"image,omitempty"`
	AuthorName string    `json:"authorName"`
	CreatedAt  time.Time `json:"createdAt"`
	Likes      int       `json:"likes"`
}

// Comment - узел дерева комментариев. Replies может быть пустым.
type Comment struct {
	ID         ID        `json:"id"`
	PostID     ID        `json:"postId"`
	ParentID   *ID       `json:"parentId,omitempty"`
	Content    string    `json:"content"`
	AuthorName string    `json:"authorName"`
	CreatedAt  time.Time `json:"createdAt"`
	Likes      int       `json:"likes"`
	Replies    []Comment `json:"replies,omitempty"`
}

type User struct {
	ID        ID        `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session - активный пользователь клиента
type Session struct {
	UserID ID     `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

type PostDraft struct {
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Image      string    `json:"image,omitempty"`
	AuthorName string    `json:"authorName"`
	CreatedAt  time.Time `json:"createdAt"`
	Likes      int       `json:"likes"`
}

type CommentDraft struct {
	PostID     ID        `json:"postId"`
	ParentID   *ID       `json:"parentId,omitempty"`
	Content    string    `json:"content"`
	AuthorName string    `json:"authorName"`
	CreatedAt  time.Time `json:"createdAt"`
	Likes      int       `json:"likes"`
}

type UserDraft struct {
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Patch - частичное обновление записи (PATCH)
type Patch map[string]any

// DisplayName возвращает имя автора либо Anonymous
func DisplayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return Anonymous
	}
	return name
}

// Initial - первая буква имени в верхнем регистре для аватара
func Initial(name string) string {
	r, _ := utf8.DecodeRuneInString(DisplayName(name))
	return string(unicode.ToUpper(r))
}

// AuthorFor выбирает имя автора для новой записи из сессии
func AuthorFor(s *Session) string {
	if s == nil {
		return Anonymous
	}
	return DisplayName(s.Name)
}
