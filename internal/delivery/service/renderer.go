package service

import (
	"regexp"

	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
)

var placeholderRegex = regexp.MustCompile(`\{\{(\w+)\}\}`)

// renderer substitutes placeholders and deletes the ones with no variable,
// so no {{name}} ever reaches a sent mail.
type renderer struct{}

// NewRenderer creates a placeholder Renderer.
func NewRenderer() Renderer {
	return &renderer{}
}

func (r *renderer) Render(
	tmpl deliveryDomain.Template,
	variables map[string]string,
) deliveryDomain.RenderedTemplate {
	contentType := tmpl.ContentType
	if contentType == "" {
		contentType = deliveryDomain.ContentTypeHTML
	}
	return deliveryDomain.RenderedTemplate{
		Subject:     substitute(tmpl.Subject, variables),
		Body:        substitute(tmpl.Body, variables),
		ContentType: contentType,
	}
}

func substitute(s string, variables map[string]string) string {
	return placeholderRegex.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderRegex.FindStringSubmatch(match)[1]
		return variables[name]
	})
}
