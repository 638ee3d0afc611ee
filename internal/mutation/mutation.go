// Package mutation выполняет запись через шлюз и затем инвалидирует зависимые ключи кэша.
// Кэш заранее не изменяется и при ошибке не трогается; повторов нет.
package mutation

import (
	"context"
	"fmt"

	"github.com/ButyrinIA/forum/internal/cache"
	"github.com/ButyrinIA/forum/internal/gateway"
	"github.com/ButyrinIA/forum/internal/metrics"
	"github.com/sirupsen/logrus"
)

// Operation - одна запись. Invalidates перечисляет зависимые ключи явно:
// автоматического отслеживания зависимостей нет.
type Operation struct {
	Name        string
	Validate    func() error
	Exec        func(ctx context.Context, api gateway.API) error
	Invalidates []cache.Key
}

type Invalidator interface {
	Invalidate(key cache.Key)
}

type Coordinator struct {
	api     gateway.API
	cache   Invalidator
	logger  logrus.FieldLogger
	metrics *metrics.Metrics
}

type Option func(*Coordinator)

func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

func New(api gateway.API, inv Invalidator, opts ...Option) *Coordinator {
	c := &Coordinator{api: api, cache: inv, logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) Mutate(ctx context.Context, op Operation) error {
	log := c.logger.WithField("operation", op.Name)

	if op.Validate != nil {
		if err := op.Validate(); err != nil {
			c.metrics.Mutation(op.Name, "invalid")
			return err
		}
	}

	if err := op.Exec(ctx, c.api); err != nil {
		c.metrics.Mutation(op.Name, "failed")
		log.WithError(err).Warn("mutation failed")
		return fmt.Errorf("failed to %s: %w", op.Name, err)
	}

	for _, key := range op.Invalidates {
		c.cache.Invalidate(key)
	}
	c.metrics.Mutation(op.Name, "ok")
	log.WithField("invalidated", len(op.Invalidates)).Debug("mutation applied")
	return nil
}
