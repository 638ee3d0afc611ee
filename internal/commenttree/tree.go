// Package commenttree строит дерево представления комментариев поста.
//
// Вход может быть вложенным (replies) или плоским (parentId); обе формы
// сводятся к одному дереву. Рекурсия заканчивается на узлах без ответов.
package commenttree

import (
	"context"
	"errors"
	"time"

	"github.com/ButyrinIA/forum/internal/models"
)

const JustNow = "Just now"

// Handlers - действия узла; обычно делегируют координатору мутаций
type Handlers struct {
	Like  func(ctx context.Context, c models.Comment) error
	Reply func(ctx context.Context, parent models.Comment, text string) error
}

type Node struct {
	ID        models.ID
	PostID    models.ID
	Initial   string
	Author    string
	When      string
	Content   string
	Likes     int
	Depth     int
	ReplyOpen bool
	Children  []*Node

	comment  models.Comment
	handlers Handlers
}

var ErrNoHandler = errors.New("comment action is not available")

func (n *Node) Like(ctx context.Context) error {
	if n.handlers.Like == nil {
		return ErrNoHandler
	}
	return n.handlers.Like(ctx, n.comment)
}

func (n *Node) Reply(ctx context.Context, text string) error {
	if n.handlers.Reply == nil {
		return ErrNoHandler
	}
	return n.handlers.Reply(ctx, n.comment, text)
}

func (n *Node) Comment() models.Comment {
	return n.comment
}

type options struct {
	location   *time.Location
	dateLayout string
	openReply  models.ID
}

type Option func(*options)

func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.location = loc }
}

func WithDateLayout(layout string) Option {
	return func(o *options) { o.dateLayout = layout }
}

// WithOpenReply раскрывает поле ответа у одного узла; остальные свернуты
func WithOpenReply(id models.ID) Option {
	return func(o *options) { o.openReply = id }
}

type record struct {
	comment  models.Comment
	parent   *models.ID
	// nestedIn - индекс записи, в replies которой лежит эта, иначе -1
	nestedIn int
}

// Compose строит лес узлов в порядке входа
func Compose(comments []models.Comment, h Handlers, opts ...Option) []*Node {
	o := options{location: time.Local, dateLayout: "1/2/2006"}
	for _, opt := range opts {
		opt(&o)
	}

	var records []record
	flatten(comments, -1, &records)

	nodes := make([]*Node, len(records))
	// при совпадении id parentId указывает на запись верхнего уровня входа,
	// среди равных побеждает первая
	byID := make(map[models.ID]*Node, len(records))
	nestedID := make(map[models.ID]bool, len(records))
	for i, r := range records {
		n := newNode(r.comment, h, o)
		nodes[i] = n
		if n.ID == "" {
			continue
		}
		nested := r.nestedIn >= 0
		if _, dup := byID[n.ID]; !dup || (nestedID[n.ID] && !nested) {
			byID[n.ID] = n
			nestedID[n.ID] = nested
		}
	}

	parentOf := make(map[*Node]*Node, len(nodes))
	var roots []*Node
	for i, r := range records {
		n := nodes[i]
		var parent *Node
		switch {
		case r.nestedIn >= 0:
			parent = nodes[r.nestedIn]
		case r.parent != nil:
			parent = byID[*r.parent]
		}
		if parent == nil || parent == n || createsCycle(parentOf, parent, n) {
			roots = append(roots, n)
			continue
		}
		parentOf[n] = parent
		parent.Children = append(parent.Children, n)
	}

	setDepth(roots, 0)
	return roots
}

// flatten обходит вложенные replies в прямом порядке. Вложенность важнее parentId.
func flatten(comments []models.Comment, nestedIn int, out *[]record) {
	for _, c := range comments {
		*out = append(*out, record{comment: c, parent: c.ParentID, nestedIn: nestedIn})
		if len(c.Replies) > 0 {
			flatten(c.Replies, len(*out)-1, out)
		}
	}
}

func createsCycle(parentOf map[*Node]*Node, parent, child *Node) bool {
	for p := parent; p != nil; p = parentOf[p] {
		if p == child {
			return true
		}
	}
	return false
}

func setDepth(nodes []*Node, depth int) {
	for _, n := range nodes {
		n.Depth = depth
		setDepth(n.Children, depth+1)
	}
}

func newNode(c models.Comment, h Handlers, o options) *Node {
	stripped := c
	stripped.Replies = nil
	return &Node{
		ID:        c.ID,
		PostID:    c.PostID,
		Initial:   models.Initial(c.AuthorName),
		Author:    models.DisplayName(c.AuthorName),
		When:      displayTime(c.CreatedAt, o),
		Content:   c.Content,
		Likes:     max(c.Likes, 0),
		ReplyOpen: o.openReply != "" && o.openReply == c.ID,
		comment:   stripped,
		handlers:  h,
	}
}

func displayTime(t time.Time, o options) string {
	if t.IsZero() {
		return JustNow
	}
	return t.In(o.location).Format(o.dateLayout)
}

// Find ищет узел по id в глубину
func Find(nodes []*Node, id models.ID) *Node {
	for _, n := range nodes {
		if n.ID == id {
			return n
		}
		if found := Find(n.Children, id); found != nil {
			return found
		}
	}
	return nil
}

// Count - число узлов в лесу
func Count(nodes []*Node) int {
	total := 0
	for _, n := range nodes {
		total += 1 + Count(n.Children)
	}
	return total
}
