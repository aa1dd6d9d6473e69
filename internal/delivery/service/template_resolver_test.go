package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
)

func TestTemplateResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	remote := &deliveryDomain.Template{Subject: "Remote {{name}}", Body: "<p>remote</p>"}

	t.Run("CacheHit", func(t *testing.T) {
		cache := newMemoryCache()
		cache.values["template:welcome_email"] = `{"subject":"Cached","body":"<p>cached</p>"}`
		provider := &stubProvider{tmpl: remote}
		resolver := NewTemplateResolver(cache, provider, 30*time.Minute)

		res := resolver.Resolve(ctx, "welcome_email")

		assert.Equal(t, TemplateSourceCache, res.Source)
		assert.Equal(t, "Cached", res.Template.Subject)
		assert.Equal(t, deliveryDomain.OutcomeSucceeded, res.Outcome.Kind)
		assert.Equal(t, 0, provider.calls)
	})

	t.Run("CacheMissFetchesRemoteAndCaches", func(t *testing.T) {
		cache := newMemoryCache()
		provider := &stubProvider{tmpl: remote}
		resolver := NewTemplateResolver(cache, provider, 30*time.Minute)

		res := resolver.Resolve(ctx, "welcome_email")

		assert.Equal(t, TemplateSourceRemote, res.Source)
		assert.Equal(t, *remote, res.Template)
		assert.Equal(t, deliveryDomain.OutcomeSucceeded, res.Outcome.Kind)
		require.Contains(t, cache.values, "template:welcome_email")
		assert.JSONEq(t, `{"subject":"Remote {{name}}","body":"<p>remote</p>"}`, cache.values["template:welcome_email"])
		assert.Equal(t, 30*time.Minute, cache.ttls["template:welcome_email"])

		res = resolver.Resolve(ctx, "welcome_email")
		assert.Equal(t, TemplateSourceCache, res.Source)
		assert.Equal(t, 1, provider.calls)
	})

	t.Run("RemoteFailureFallsBackToDefault", func(t *testing.T) {
		provider := &stubProvider{err: errors.New("dial tcp: connection refused")}
		resolver := NewTemplateResolver(newMemoryCache(), provider, time.Minute)

		res := resolver.Resolve(ctx, "welcome_email")

		assert.Equal(t, TemplateSourceDefault, res.Source)
		assert.Equal(t, deliveryDomain.DefaultTemplate("welcome_email"), res.Template)
		assert.Equal(t, deliveryDomain.OutcomeDegraded, res.Outcome.Kind)
		assert.ErrorIs(t, res.Outcome.Err, deliveryDomain.ErrTemplateResolutionDegraded)
	})

	t.Run("UnknownKeyFallsBackToGeneric", func(t *testing.T) {
		provider := &stubProvider{err: deliveryDomain.ErrTemplateNotFound}
		resolver := NewTemplateResolver(newMemoryCache(), provider, time.Minute)

		res := resolver.Resolve(ctx, "does_not_exist")

		assert.Equal(t, "Notification from Our Platform", res.Template.Subject)
		assert.ErrorIs(t, res.Outcome.Err, deliveryDomain.ErrTemplateNotFound)
	})

	t.Run("CacheReadFailureFallsBackToDefault", func(t *testing.T) {
		cache := newMemoryCache()
		cache.getErr = errors.New("redis down")
		provider := &stubProvider{tmpl: remote}
		resolver := NewTemplateResolver(cache, provider, time.Minute)

		res := resolver.Resolve(ctx, "password_reset")

		assert.Equal(t, TemplateSourceDefault, res.Source)
		assert.Equal(t, "Reset Your Password", res.Template.Subject)
		assert.Equal(t, 0, provider.calls)
	})

	t.Run("CorruptCacheEntryFallsBackToDefault", func(t *testing.T) {
		cache := newMemoryCache()
		cache.values["template:notification"] = "{not json"
		resolver := NewTemplateResolver(cache, &stubProvider{tmpl: remote}, time.Minute)

		res := resolver.Resolve(ctx, "notification")

		assert.Equal(t, TemplateSourceDefault, res.Source)
		assert.Equal(t, "New Notification: {{title}}", res.Template.Subject)
	})

	t.Run("EmptyCachedBodyFallsBackToDefault", func(t *testing.T) {
		for _, cached := range []string{"null", `{"subject":"Hi","body":""}`} {
			cache := newMemoryCache()
			cache.values["template:notification"] = cached
			resolver := NewTemplateResolver(cache, &stubProvider{tmpl: remote}, time.Minute)

			res := resolver.Resolve(ctx, "notification")

			assert.Equal(t, TemplateSourceDefault, res.Source, cached)
			assert.Equal(t, "New Notification: {{title}}", res.Template.Subject, cached)
			assert.ErrorIs(t, res.Outcome.Err, deliveryDomain.ErrTemplateResolutionDegraded, cached)
		}
	})

	t.Run("CacheWriteFailureKeepsRemoteTemplate", func(t *testing.T) {
		cache := newMemoryCache()
		cache.setErr = errors.New("redis readonly")
		resolver := NewTemplateResolver(cache, &stubProvider{tmpl: remote}, time.Minute)

		res := resolver.Resolve(ctx, "welcome_email")

		assert.Equal(t, TemplateSourceRemote, res.Source)
		assert.Equal(t, *remote, res.Template)
		assert.Equal(t, deliveryDomain.OutcomeDegraded, res.Outcome.Kind)
		assert.NotErrorIs(t, res.Outcome.Err, deliveryDomain.ErrTemplateResolutionDegraded)
	})
}
