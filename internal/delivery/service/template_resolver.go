package service

import (
	"context"
	"encoding/json"
	"time"

	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
	apperrors "github.com/allisson/mailpipe/internal/errors"
)

// TemplateSource tells where a resolved template came from.
type TemplateSource string

const (
	TemplateSourceCache   TemplateSource = "cache"
	TemplateSourceRemote  TemplateSource = "remote"
	TemplateSourceDefault TemplateSource = "default"
)

// TemplateResolution is the resolved template plus how it was obtained.
// Outcome is degraded when defaults were used or the cache write failed.
type TemplateResolution struct {
	Template deliveryDomain.Template
	Source   TemplateSource
	Outcome  deliveryDomain.Outcome
}

type templateResolver struct {
	cache    Cache
	provider TemplateProvider
	cacheTTL time.Duration
}

// NewTemplateResolver creates a read-through TemplateResolver.
func NewTemplateResolver(cache Cache, provider TemplateProvider, cacheTTL time.Duration) TemplateResolver {
	return &templateResolver{cache: cache, provider: provider, cacheTTL: cacheTTL}
}

// TemplateCacheKey returns the cache key of a template.
func TemplateCacheKey(templateKey string) string {
	return "template:" + templateKey
}

func (r *templateResolver) Resolve(ctx context.Context, templateKey string) TemplateResolution {
	key := TemplateCacheKey(templateKey)

	cached, found, err := r.cache.Get(ctx, key)
	if err != nil {
		return fallback(templateKey, apperrors.Wrap(err, "template cache read failed"))
	}
	if found {
		var tmpl deliveryDomain.Template
		if err := json.Unmarshal([]byte(cached), &tmpl); err != nil {
			return fallback(templateKey, apperrors.Wrap(err, "cached template is corrupt"))
		}
		if tmpl.Body == "" {
			return fallback(templateKey, apperrors.New("cached template has an empty body"))
		}
		return TemplateResolution{
			Template: tmpl,
			Source:   TemplateSourceCache,
			Outcome:  deliveryDomain.Succeeded(),
		}
	}

	remote, err := r.provider.FetchTemplate(ctx, templateKey)
	if err != nil {
		return fallback(templateKey, err)
	}

	resolution := TemplateResolution{
		Template: *remote,
		Source:   TemplateSourceRemote,
		Outcome:  deliveryDomain.Succeeded(),
	}

	encoded, err := json.Marshal(remote)
	if err == nil {
		err = r.cache.Set(ctx, key, string(encoded), r.cacheTTL)
	}
	if err != nil {
		resolution.Outcome = deliveryDomain.Degraded(apperrors.Wrap(err, "template cache write failed"))
	}
	return resolution
}

func fallback(templateKey string, cause error) TemplateResolution {
	return TemplateResolution{
		Template: deliveryDomain.DefaultTemplate(templateKey),
		Source:   TemplateSourceDefault,
		Outcome: deliveryDomain.Degraded(
			apperrors.Mark(cause, deliveryDomain.ErrTemplateResolutionDegraded),
		),
	}
}
