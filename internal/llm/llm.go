package llm

import "context"

// Client produces one completion for one prompt. Implementations wrap a
// concrete model API and are chosen once at startup.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
