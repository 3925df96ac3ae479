package group

import "context"

// Registry is the durable store of per-group screening configuration.
// Get returns (nil, nil) for unknown chats.
type Registry interface {
	Get(ctx context.Context, chatID int64) (*Config, error)
	List(ctx context.Context) ([]*Config, error)
	Upsert(ctx context.Context, cfg *Config) error
	// UpdateTitle refreshes the stored chat title for a known group.
	// Unknown chats are ignored.
	UpdateTitle(ctx context.Context, chatID int64, title string) error
	Delete(ctx context.Context, chatID int64) error
}
