package domain

// Template is resolved subject/body content with {{name}} placeholders.
type Template struct {
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	ContentType string `json:"contentType,omitempty"`
}

// RenderedTemplate is a template with all placeholders substituted.
type RenderedTemplate struct {
	Subject     string
	Body        string
	ContentType string
}

// Well-known template keys with built-in defaults.
const (
	TemplateWelcomeEmail  = "welcome_email"
	TemplatePasswordReset = "password_reset"
	TemplateNotification  = "notification"
)

// ContentTypeHTML is the content type used when a template does not set one.
const ContentTypeHTML = "text/html"

var defaultTemplates = map[string]Template{
	TemplateWelcomeEmail: {
		Subject: "Welcome to Our Platform, {{name}}!",
		Body: "<h1>Welcome {{name}}!</h1>" +
			"<p>Thank you for joining our platform. We're excited to have you!</p>" +
			"<p>Get started by exploring our features.</p>",
		ContentType: ContentTypeHTML,
	},
	TemplatePasswordReset: {
		Subject: "Reset Your Password",
		Body: "<h1>Password Reset Request</h1>" +
			"<p>Hi {{name}},</p>" +
			"<p>Click the link below to reset your password:</p>" +
			`<p><a href="{{reset_link}}">Reset Password</a></p>` +
			"<p>This link will expire in 1 hour.</p>",
		ContentType: ContentTypeHTML,
	},
	TemplateNotification: {
		Subject:     "New Notification: {{title}}",
		Body:        "<h1>{{title}}</h1><p>{{message}}</p>",
		ContentType: ContentTypeHTML,
	},
}

var genericTemplate = Template{
	Subject:     "Notification from Our Platform",
	Body:        "<p>Hello {{name}}, you have a new notification.</p>",
	ContentType: ContentTypeHTML,
}

// DefaultTemplate returns the built-in template for key, or the generic
// template when key has no built-in entry.
func DefaultTemplate(key string) Template {
	if tmpl, ok := defaultTemplates[key]; ok {
		return tmpl
	}
	return genericTemplate
}
