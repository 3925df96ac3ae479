package verification

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_repository.go -package=mocks . Repository

import "context"

// Repository persists verification history.
type Repository interface {
	Insert(ctx context.Context, rec *Record) error
	Query(ctx context.Context, filter Filter, limit int) ([]*Record, error)
	Count(ctx context.Context, filter Filter) (int64, error)
}
