// Package cache keeps registration form definitions in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/conference-hub/internal/domain"
	"github.com/ignite/conference-hub/internal/pkg/logger"
	"github.com/ignite/conference-hub/internal/service/regform"
)

// FormCache is a read-through cache in front of a FormSource. Redis
// failures fall back to the source.
type FormCache struct {
	redis  *redis.Client
	source regform.FormSource
	ttl    time.Duration
	log    *logger.Logger
}

// NewFormCache wraps source. A non-positive ttl disables caching.
func NewFormCache(client *redis.Client, source regform.FormSource, ttl time.Duration) *FormCache {
	return &FormCache{
		redis:  client,
		source: source,
		ttl:    ttl,
		log:    logger.With("component", "form_cache"),
	}
}

func formKey(formID string) string {
	return "regform:" + formID
}

// GetForm implements regform.FormSource.
func (c *FormCache) GetForm(ctx context.Context, formID string) (*domain.Form, error) {
	if c.redis == nil || c.ttl <= 0 {
		return c.source.GetForm(ctx, formID)
	}

	data, err := c.redis.Get(ctx, formKey(formID)).Bytes()
	switch {
	case err == nil:
		var form domain.Form
		if err := json.Unmarshal(data, &form); err == nil {
			return &form, nil
		}
		c.log.Warn("dropping undecodable cached form", "form_id", formID)
	case !errors.Is(err, redis.Nil):
		c.log.Warn("form cache read failed", "form_id", formID, "error", err)
	}

	form, err := c.source.GetForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(form); err == nil {
		if err := c.redis.Set(ctx, formKey(formID), data, c.ttl).Err(); err != nil {
			c.log.Warn("form cache write failed", "form_id", formID, "error", err)
		}
	}
	return form, nil
}

// Invalidate drops the cached copy of a form.
func (c *FormCache) Invalidate(ctx context.Context, formID string) error {
	if c.redis == nil {
		return nil
	}
	if err := c.redis.Del(ctx, formKey(formID)).Err(); err != nil {
		return fmt.Errorf("invalidating form %s: %w", formID, err)
	}
	return nil
}
