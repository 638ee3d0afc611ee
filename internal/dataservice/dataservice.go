// Package dataservice - локальный REST-сервис данных в формате json-server.
// Используется для разработки и тестов клиента форума.
package dataservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/ButyrinIA/forum/internal/logging"
	"github.com/ButyrinIA/forum/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type Handler struct {
	store  storage.Storage
	logger logrus.FieldLogger
}

func New(store storage.Storage, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{store: store, logger: logger}
}

// Router собирает маршруты /:collection и /:collection/:id
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(h.logger))

	r.GET("/:collection", h.list)
	r.POST("/:collection", h.create)
	r.GET("/:collection/:id", h.get)
	r.PATCH("/:collection/:id", h.patch)
	r.PUT("/:collection/:id", h.replace)
	r.DELETE("/:collection/:id", h.delete)
	return r
}

func (h *Handler) collection(c *gin.Context) (string, bool) {
	name := c.Param("collection")
	if !storage.ValidCollection(name) {
		c.JSON(http.StatusNotFound, gin.H{})
		return "", false
	}
	return name, true
}

func (h *Handler) list(c *gin.Context) {
	name, ok := h.collection(c)
	if !ok {
		return
	}

	filter := make(map[string]string)
	for k, v := range c.Request.URL.Query() {
		// служебные параметры json-server (_sort, _page ...) не поддерживаются
		if strings.HasPrefix(k, "_") || len(v) == 0 {
			continue
		}
		filter[k] = v[0]
	}

	records, err := h.store.List(c.Request.Context(), name, filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) get(c *gin.Context) {
	name, ok := h.collection(c)
	if !ok {
		return
	}
	rec, err := h.store.Get(c.Request.Context(), name, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) create(c *gin.Context) {
	name, ok := h.collection(c)
	if !ok {
		return
	}
	var body storage.Record
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.store.Create(c.Request.Context(), name, body)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *Handler) patch(c *gin.Context) {
	h.update(c, h.store.Patch)
}

func (h *Handler) replace(c *gin.Context) {
	h.update(c, h.store.Replace)
}

func (h *Handler) update(c *gin.Context, apply func(ctx context.Context, collection, id string, rec storage.Record) (storage.Record, error)) {
	name, ok := h.collection(c)
	if !ok {
		return
	}
	var body storage.Record
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := apply(c.Request.Context(), name, c.Param("id"), body)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// delete удаляет запись и зависимые записи других коллекций (postId для posts)
func (h *Handler) delete(c *gin.Context) {
	name, ok := h.collection(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")

	if err := h.store.Delete(ctx, name, id); err != nil {
		h.fail(c, err)
		return
	}

	foreignKey := strings.TrimSuffix(name, "s") + "Id"
	for _, other := range storage.Collections {
		if other == name {
			continue
		}
		dependents, err := h.store.List(ctx, other, map[string]string{foreignKey: id})
		if err != nil {
			h.fail(c, err)
			return
		}
		for _, dep := range dependents {
			if err := h.store.Delete(ctx, other, storage.RecordID(dep)); err != nil && !errors.Is(err, storage.ErrNotFound) {
				h.fail(c, err)
				return
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (h *Handler) fail(c *gin.Context, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{})
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// Seed загружает начальные данные из YAML или JSON файла вида {"posts": [...], ...}
func Seed(ctx context.Context, store storage.Storage, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed map[string][]storage.Record
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("failed to parse seed file: %w", err)
	}

	total := 0
	for _, name := range storage.Collections {
		for _, rec := range seed[name] {
			if _, err := store.Create(ctx, name, rec); err != nil {
				return total, fmt.Errorf("failed to seed %s: %w", name, err)
			}
			total++
		}
	}
	return total, nil
}
