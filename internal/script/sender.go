package script

import "context"

// Response is the shape a RequestSender returns; it is the only data
// the script executor ever inspects to satisfy a post-response action.
type Response struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// RequestSender performs the actual HTTP call for a resolved request.
// Keeping this as an injected interface means internal/script has no
// transport dependency of its own and is fully unit-testable with a
// fake sender.
type RequestSender interface {
	Send(ctx context.Context, method, url string, headers map[string]string, body []byte) (Response, error)
}
