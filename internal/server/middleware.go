package server

import (
	"net/http"

	"github.com/ButyrinIA/forum/internal/loader"
	"github.com/ButyrinIA/forum/internal/session"
	"github.com/gin-gonic/gin"
)

const clientCookieMaxAge = 365 * 24 * 60 * 60

// identify определяет клиента по подписанной cookie и кладет в контекст запроса
// его сессию и тему. Клиент без валидной cookie получает новый идентификатор.
func (s *Server) identify(c *gin.Context) {
	clientID := ""
	if token, err := c.Cookie(s.cfg.Session.CookieName); err == nil {
		id, err := s.issuer.Parse(token)
		if err != nil {
			s.logger.WithError(err).Debug("client cookie rejected")
		}
		clientID = id
	}

	if clientID == "" {
		id, token, err := s.issuer.NewClientID()
		if err != nil {
			_ = c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		clientID = id
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(s.cfg.Session.CookieName, token, clientCookieMaxAge, "/", "", false, true)
	}

	ctx := session.WithClient(c.Request.Context(), clientID)
	if sess, ok := s.sessions.Get(clientID); ok {
		ctx = session.WithSession(ctx, sess)
	}
	ctx = session.WithTheme(ctx, s.themes.Get(clientID))
	c.Request = c.Request.WithContext(ctx)
	c.Next()
}

func (s *Server) requireSession(c *gin.Context) {
	if session.FromContext(c.Request.Context()) == nil {
		c.Redirect(http.StatusFound, "/login")
		c.Abort()
		return
	}
	c.Next()
}

// withCommentCounts создает загрузчик на время одного запроса
func (s *Server) withCommentCounts(c *gin.Context) {
	ctx := loader.WithCommentCounts(c.Request.Context(), loader.NewCommentCounts(s.cache))
	c.Request = c.Request.WithContext(ctx)
	c.Next()
}
