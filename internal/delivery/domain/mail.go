package domain

// Mail headers carried on every delivery.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderUserID    = "X-User-ID"
	// HeaderPriority carries the raw queue priority. It is distinct from
	// X-Priority, which mail clients read on a 1 to 5 scale.
	HeaderPriority = "X-Notification-Priority"
)

// OutgoingMail is what the mail transfer client sends. An empty From uses
// the transport's configured sender.
type OutgoingMail struct {
	From        string
	To          string
	Subject     string
	Body        string
	ContentType string
	Headers     map[string]string
}
