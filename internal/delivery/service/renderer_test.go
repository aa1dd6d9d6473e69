package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
)

func TestRenderer_Render(t *testing.T) {
	r := NewRenderer()

	tests := []struct {
		name      string
		template  string
		variables map[string]string
		expected  string
	}{
		{name: "substitutes variable", template: "Hi {{name}}", variables: map[string]string{"name": "Ann"}, expected: "Hi Ann"},
		{name: "removes missing placeholder", template: "Hi {{name}}", variables: map[string]string{}, expected: "Hi "},
		{name: "nil variables", template: "Hi {{name}}", variables: nil, expected: "Hi "},
		{name: "repeated placeholder", template: "{{a}}-{{a}}", variables: map[string]string{"a": "x"}, expected: "x-x"},
		{name: "no placeholder", template: "plain", variables: map[string]string{"a": "x"}, expected: "plain"},
		{name: "non word placeholder is kept", template: "{{ name }}", variables: map[string]string{"name": "Ann"}, expected: "{{ name }}"},
		{name: "value with braces is not re-expanded", template: "{{a}}", variables: map[string]string{"a": "{{b}}", "b": "no"}, expected: "{{b}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := r.Render(deliveryDomain.Template{Subject: tt.template, Body: tt.template}, tt.variables)
			assert.Equal(t, tt.expected, out.Subject)
			assert.Equal(t, tt.expected, out.Body)
		})
	}
}

func TestRenderer_DefaultContentType(t *testing.T) {
	r := NewRenderer()

	out := r.Render(deliveryDomain.Template{Subject: "s", Body: "b"}, nil)
	assert.Equal(t, deliveryDomain.ContentTypeHTML, out.ContentType)

	out = r.Render(deliveryDomain.Template{Subject: "s", Body: "b", ContentType: "text/plain"}, nil)
	assert.Equal(t, "text/plain", out.ContentType)
}

func TestRenderer_WelcomeDefault(t *testing.T) {
	out := NewRenderer().Render(
		deliveryDomain.DefaultTemplate(deliveryDomain.TemplateWelcomeEmail),
		map[string]string{"name": "Ann"},
	)

	assert.Equal(t, "Welcome to Our Platform, Ann!", out.Subject)
	assert.Contains(t, out.Body, "<h1>Welcome Ann!</h1>")
	assert.NotContains(t, out.Body, "{{")
}
