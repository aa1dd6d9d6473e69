package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
	apperrors "github.com/allisson/mailpipe/internal/errors"
)

// httpTemplateProvider fetches templates with GET {baseURL}/templates/{key}.
type httpTemplateProvider struct {
	client *resty.Client
}

// NewHTTPTemplateProvider creates a TemplateProvider for the remote template service.
func NewHTTPTemplateProvider(baseURL string, timeout time.Duration) TemplateProvider {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &httpTemplateProvider{client: client}
}

func (p *httpTemplateProvider) FetchTemplate(
	ctx context.Context,
	templateKey string,
) (*deliveryDomain.Template, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetPathParam("key", templateKey).
		SetResult(&deliveryDomain.Template{}).
		Get("/templates/{key}")
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to fetch template")
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, apperrors.Wrapf(deliveryDomain.ErrTemplateNotFound, "template %q", templateKey)
	case resp.IsError():
		return nil, apperrors.Wrapf(apperrors.ErrUnavailable, "template service returned %d", resp.StatusCode())
	}

	tmpl, ok := resp.Result().(*deliveryDomain.Template)
	if !ok || tmpl.Body == "" {
		return nil, apperrors.Wrapf(apperrors.ErrUnavailable, "template service returned an empty template for %q", templateKey)
	}
	return tmpl, nil
}
