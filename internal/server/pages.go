package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ButyrinIA/forum/internal/account"
	"github.com/ButyrinIA/forum/internal/cache"
	"github.com/ButyrinIA/forum/internal/commenttree"
	"github.com/ButyrinIA/forum/internal/failure"
	"github.com/ButyrinIA/forum/internal/loader"
	"github.com/ButyrinIA/forum/internal/models"
	"github.com/ButyrinIA/forum/internal/mutation"
	"github.com/ButyrinIA/forum/internal/session"
	"github.com/gin-gonic/gin"
)

const (
	msgFeedFailed     = "Failed to load posts"
	msgPostFailed     = "Unable to load post. Please try again later."
	msgCommentsFailed = "Unable to load comments. Please try again later."
	msgCommentFailed  = "Failed to add comment."
	msgReplyFailed    = "Failed to add reply."
	msgPostSubmit     = "Error submitting post. Please try again."
	msgImageFailed    = "Unable to read the image."

	feedDateLayout = "1/2/2006, 3:04:05 PM"
	maxImageSize   = 5 << 20
)

// formKeys - поля форм, которые шаблоны читают всегда
var formKeys = []string{"PageTitle", "Error", "Name", "Email", "Title", "Content"}

// render добавляет к данным страницы тему и пользователя
func (s *Server) render(c *gin.Context, status int, name string, data gin.H) {
	ctx := c.Request.Context()
	for _, key := range formKeys {
		if _, ok := data[key]; !ok {
			data[key] = ""
		}
	}
	theme := session.ThemeFromContext(ctx)
	data["Theme"] = theme
	data["ThemeLabel"] = theme.ToggleLabel()
	data["User"] = session.FromContext(ctx)
	data["Path"] = c.Request.URL.RequestURI()
	c.HTML(status, name, data)
}

func statusFor(err error) int {
	switch failure.KindOf(err) {
	case failure.KindValidation:
		return http.StatusBadRequest
	case failure.KindNotFound:
		return http.StatusUnauthorized
	case failure.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

// back возвращает на локальный путь из поля return, иначе на fallback
func back(c *gin.Context, fallback string) {
	target := c.PostForm("return")
	if !localPath(target) {
		target = fallback
	}
	c.Redirect(http.StatusSeeOther, target)
}

// localPath принимает только путь этого сайта; "//host" и "/\host" браузер открывает как внешний адрес
func localPath(target string) bool {
	if len(target) == 0 || target[0] != '/' {
		return false
	}
	if len(target) > 1 && (target[1] == '/' || target[1] == '\\') {
		return false
	}
	u, err := url.Parse(target)
	return err == nil && u.Scheme == "" && u.Host == ""
}

func (s *Server) warn(c *gin.Context, err error, msg string) {
	_ = c.Error(err)
	s.logger.WithError(err).WithField("path", c.Request.URL.Path).Warn(msg)
}

func (s *Server) loginPage(c *gin.Context) {
	s.render(c, http.StatusOK, "login.html", gin.H{})
}

func (s *Server) login(c *gin.Context) {
	email := c.PostForm("email")
	sess, err := s.accounts.Login(c.Request.Context(), email, c.PostForm("password"))
	if err != nil {
		if failure.KindOf(err) == failure.KindTransport {
			s.warn(c, err, "login failed")
		}
		s.render(c, statusFor(err), "login.html", gin.H{
			"Error": failure.Message(err, account.MsgLoginFailed),
			"Email": email,
		})
		return
	}

	s.sessions.Set(session.ClientID(c.Request.Context()), *sess)
	c.Redirect(http.StatusSeeOther, "/feed")
}

func (s *Server) registerPage(c *gin.Context) {
	s.render(c, http.StatusOK, "register.html", gin.H{})
}

func (s *Server) register(c *gin.Context) {
	name, email := c.PostForm("name"), c.PostForm("email")
	user, err := s.accounts.Register(c.Request.Context(), name, email, c.PostForm("password"), c.PostForm("confirm"))
	if err != nil {
		if failure.KindOf(err) == failure.KindTransport {
			s.warn(c, err, "registration failed")
		}
		s.render(c, statusFor(err), "register.html", gin.H{
			"Error": failure.Message(err, account.MsgRegisterFailed),
			"Name":  name,
			"Email": email,
		})
		return
	}

	s.sessions.Set(session.ClientID(c.Request.Context()), models.Session{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
	})
	c.Redirect(http.StatusSeeOther, "/feed")
}

func (s *Server) toggleTheme(c *gin.Context) {
	s.themes.Toggle(session.ClientID(c.Request.Context()))
	back(c, "/feed")
}

type feedItem struct {
	Post      models.Post
	Author    string
	When      string
	Comments  int
	HasCounts bool
}

func (s *Server) feed(c *gin.Context) {
	ctx := c.Request.Context()
	posts, err := cache.Posts(ctx, s.cache)
	if err != nil {
		s.warn(c, err, "feed load failed")
		s.render(c, http.StatusBadGateway, "feed.html", gin.H{"Error": msgFeedFailed})
		return
	}

	ids := make([]models.ID, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	counts, err := loader.CountComments(ctx, ids)
	if err != nil {
		s.logger.WithError(err).Warn("comment counts incomplete")
	}

	items := make([]feedItem, len(posts))
	for i, p := range posts {
		n, ok := counts[p.ID]
		items[i] = feedItem{
			Post:      p,
			Author:    models.DisplayName(p.AuthorName),
			When:      formatTime(p.CreatedAt, feedDateLayout),
			Comments:  n,
			HasCounts: ok,
		}
	}
	s.render(c, http.StatusOK, "feed.html", gin.H{"Posts": items})
}

// postState - состояние форм страницы поста при повторном показе
type postState struct {
	CommentText  string
	CommentError string
	OpenReply    models.ID
	ReplyText    string
	ReplyError   string
}

func (s *Server) post(c *gin.Context) {
	s.renderPost(c, http.StatusOK, postState{OpenReply: models.ID(c.Query("reply"))})
}

func (s *Server) renderPost(c *gin.Context, status int, state postState) {
	ctx := c.Request.Context()
	id := models.ID(c.Param("id"))

	post, err := cache.Post(ctx, s.cache, id)
	if err != nil || post == nil {
		if err != nil {
			s.warn(c, err, "post load failed")
		}
		s.render(c, http.StatusBadGateway, "post.html", gin.H{"Error": msgPostFailed})
		return
	}

	data := gin.H{
		"Post":    post,
		"Author":  models.DisplayName(post.AuthorName),
		"Initial": models.Initial(post.AuthorName),
		"When":    formatTime(post.CreatedAt, "1/2/2006"),
		"Image":   imageURL(post.Image),
		"State":   state,
	}

	comments, err := cache.Comments(ctx, s.cache, id)
	if err != nil {
		s.warn(c, err, "comments load failed")
		data["CommentsError"] = msgCommentsFailed
	} else {
		data["Comments"] = s.compose(c, id, comments, commenttree.WithOpenReply(state.OpenReply))
	}
	s.render(c, status, "post.html", data)
}

// compose строит дерево с действиями, направленными в координатор мутаций
func (s *Server) compose(c *gin.Context, postID models.ID, comments []models.Comment, opts ...commenttree.Option) []*commenttree.Node {
	author := models.AuthorFor(session.FromContext(c.Request.Context()))
	withPost := func(cm models.Comment) models.Comment {
		if cm.PostID == "" {
			cm.PostID = postID
		}
		return cm
	}
	h := commenttree.Handlers{
		Like: func(ctx context.Context, cm models.Comment) error {
			return s.mutator.Mutate(ctx, mutation.LikeComment(withPost(cm)))
		},
		Reply: func(ctx context.Context, parent models.Comment, text string) error {
			return s.mutator.Mutate(ctx, mutation.ReplyToComment(withPost(parent), author, text, s.now()))
		},
	}
	return commenttree.Compose(comments, h, opts...)
}

func (s *Server) likePost(c *gin.Context) {
	ctx := c.Request.Context()
	id := models.ID(c.Param("id"))

	post, err := cache.Post(ctx, s.cache, id)
	if err == nil && post != nil {
		err = s.mutator.Mutate(ctx, mutation.LikePost(*post))
	}
	if err != nil {
		s.warn(c, err, "like failed")
	}
	back(c, "/posts/"+id.String())
}

func (s *Server) addComment(c *gin.Context) {
	ctx := c.Request.Context()
	id := models.ID(c.Param("id"))
	text := c.PostForm("content")

	author := models.AuthorFor(session.FromContext(ctx))
	if err := s.mutator.Mutate(ctx, mutation.AddComment(id, author, text, s.now())); err != nil {
		if failure.KindOf(err) == failure.KindTransport {
			s.warn(c, err, "add comment failed")
		}
		s.renderPost(c, statusFor(err), postState{
			CommentText:  text,
			CommentError: failure.Message(err, msgCommentFailed),
		})
		return
	}
	c.Redirect(http.StatusSeeOther, "/posts/"+id.String()+"#comments")
}

// findComment ищет комментарий в текущем дереве поста
func (s *Server) findComment(c *gin.Context) (*commenttree.Node, error) {
	ctx := c.Request.Context()
	postID := models.ID(c.Param("id"))
	comments, err := cache.Comments(ctx, s.cache, postID)
	if err != nil {
		return nil, err
	}
	node := commenttree.Find(s.compose(c, postID, comments), models.ID(c.Param("cid")))
	if node == nil {
		return nil, failure.NotFound("comment not found")
	}
	return node, nil
}

func (s *Server) likeComment(c *gin.Context) {
	node, err := s.findComment(c)
	if err == nil {
		err = node.Like(c.Request.Context())
	}
	if err != nil {
		s.warn(c, err, "comment like failed")
	}
	back(c, "/posts/"+c.Param("id")+"#comments")
}

func (s *Server) reply(c *gin.Context) {
	cid := models.ID(c.Param("cid"))
	text := c.PostForm("content")

	node, err := s.findComment(c)
	if err == nil {
		err = node.Reply(c.Request.Context(), text)
	}
	if err != nil {
		if failure.KindOf(err) == failure.KindTransport {
			s.warn(c, err, "reply failed")
		}
		s.renderPost(c, statusFor(err), postState{
			OpenReply:  cid,
			ReplyText:  text,
			ReplyError: failure.Message(err, msgReplyFailed),
		})
		return
	}
	c.Redirect(http.StatusSeeOther, "/posts/"+c.Param("id")+"#comments")
}

func (s *Server) newPostPage(c *gin.Context) {
	s.render(c, http.StatusOK, "new_post.html", gin.H{})
}

func (s *Server) createPost(c *gin.Context) {
	ctx := c.Request.Context()
	draft := models.PostDraft{
		Title:      strings.TrimSpace(c.PostForm("title")),
		Content:    strings.TrimSpace(c.PostForm("content")),
		AuthorName: models.AuthorFor(session.FromContext(ctx)),
		CreatedAt:  s.now(),
	}
	form := gin.H{"Title": draft.Title, "Content": draft.Content}

	image, err := imageDataURI(c)
	if err != nil {
		s.logger.WithError(err).Warn("image upload rejected")
		form["Error"] = msgImageFailed
		s.render(c, http.StatusBadRequest, "new_post.html", form)
		return
	}
	draft.Image = image

	if err := s.mutator.Mutate(ctx, mutation.CreatePost(draft)); err != nil {
		if failure.KindOf(err) == failure.KindTransport {
			s.warn(c, err, "create post failed")
		}
		form["Error"] = failure.Message(err, msgPostSubmit)
		s.render(c, statusFor(err), "new_post.html", form)
		return
	}
	c.Redirect(http.StatusSeeOther, "/feed")
}

// imageDataURI читает необязательный файл image и кодирует его в data URI
func imageDataURI(c *gin.Context) (string, error) {
	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if fh.Size > maxImageSize {
		return "", fmt.Errorf("image is too large: %d bytes", fh.Size)
	}

	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImageSize+1))
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", nil
	}

	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("unsupported image type %s", mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// imageURL пропускает в разметку только data:image и http(s) ссылки
func imageURL(src string) template.URL {
	switch {
	case strings.HasPrefix(src, "data:image/"), strings.HasPrefix(src, "https://"), strings.HasPrefix(src, "http://"):
		return template.URL(src)
	default:
		return ""
	}
}

func formatTime(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(layout)
}
