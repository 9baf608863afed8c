package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/conference-hub/internal/domain"
	"github.com/ignite/conference-hub/internal/service/regform"
)

type countingSource struct {
	forms map[string]*domain.Form
	calls int
}

func (s *countingSource) GetForm(_ context.Context, formID string) (*domain.Form, error) {
	s.calls++
	f, ok := s.forms[formID]
	if !ok {
		return nil, regform.ErrFormNotFound
	}
	cp := *f
	return &cp, nil
}

func setup(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *countingSource, *FormCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	src := &countingSource{forms: map[string]*domain.Form{
		"form-1": {
			ID: "form-1", Title: "Registration",
			Sections: []domain.Section{{
				ID: "s1", IsEnabled: true,
				Fields: []domain.FieldDefinition{
					{ID: "bool1", InputKind: domain.KindBool, IsEnabled: true},
					{ID: "text", InputKind: domain.KindText, IsEnabled: true,
						ShowIfFieldID: "bool1", ShowIfFieldValues: []any{true}},
				},
			}},
		},
	}}
	return mr, src, NewFormCache(client, src, ttl)
}

func TestFormCache_ReadThrough(t *testing.T) {
	mr, src, c := setup(t, time.Minute)
	ctx := context.Background()

	first, err := c.GetForm(ctx, "form-1")
	require.NoError(t, err)
	second, err := c.GetForm(ctx, "form-1")
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
	assert.Equal(t, first.FieldsInOrder(), second.FieldsInOrder())
	assert.True(t, mr.Exists("regform:form-1"))

	mr.FastForward(2 * time.Minute)
	_, err = c.GetForm(ctx, "form-1")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestFormCache_Invalidate(t *testing.T) {
	mr, src, c := setup(t, time.Minute)
	ctx := context.Background()

	_, err := c.GetForm(ctx, "form-1")
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, "form-1"))
	assert.False(t, mr.Exists("regform:form-1"))

	_, err = c.GetForm(ctx, "form-1")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestFormCache_NotFoundIsNotCached(t *testing.T) {
	mr, _, c := setup(t, time.Minute)

	_, err := c.GetForm(context.Background(), "missing")
	assert.ErrorIs(t, err, regform.ErrFormNotFound)
	assert.False(t, mr.Exists("regform:missing"))
}

func TestFormCache_RedisDownFallsBack(t *testing.T) {
	mr, src, c := setup(t, time.Minute)
	mr.Close()

	form, err := c.GetForm(context.Background(), "form-1")
	require.NoError(t, err)
	assert.Equal(t, "form-1", form.ID)
	assert.Equal(t, 1, src.calls)
}

func TestFormCache_Disabled(t *testing.T) {
	mr, src, c := setup(t, 0)

	_, err := c.GetForm(context.Background(), "form-1")
	require.NoError(t, err)
	assert.False(t, mr.Exists("regform:form-1"))
	assert.Equal(t, 1, src.calls)
}
