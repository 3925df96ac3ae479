package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatekeeper-bot/gatekeeper/internal/domain/group"
)

// GroupRepository implements group.Registry.
type GroupRepository struct {
	pool *pgxpool.Pool
}

func NewGroupRepository(pool *pgxpool.Pool) *GroupRepository {
	return &GroupRepository{pool: pool}
}

func (r *GroupRepository) Get(ctx context.Context, chatID int64) (*group.Config, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT chat_id, title, allowed, topic, prescreen, created_at, updated_at
		FROM groups WHERE chat_id=$1
	`, chatID)
	return scanGroup(row)
}

func (r *GroupRepository) List(ctx context.Context) ([]*group.Config, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT chat_id, title, allowed, topic, prescreen, created_at, updated_at
		FROM groups ORDER BY chat_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*group.Config
	for rows.Next() {
		cfg, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		if cfg != nil {
			out = append(out, cfg)
		}
	}
	return out, rows.Err()
}

func (r *GroupRepository) Upsert(ctx context.Context, cfg *group.Config) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO groups (chat_id, title, allowed, topic, prescreen, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,NOW(),NOW())
		ON CONFLICT (chat_id) DO UPDATE
		SET title=EXCLUDED.title,
			allowed=EXCLUDED.allowed,
			topic=EXCLUDED.topic,
			prescreen=EXCLUDED.prescreen,
			updated_at=NOW()
	`, cfg.ChatID, cfg.Title, cfg.Allowed, cfg.Topic, cfg.Prescreen)
	return err
}

func (r *GroupRepository) UpdateTitle(ctx context.Context, chatID int64, title string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE groups SET title=$1, updated_at=NOW()
		WHERE chat_id=$2 AND title IS DISTINCT FROM $1
	`, title, chatID)
	return err
}

func (r *GroupRepository) Delete(ctx context.Context, chatID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM groups WHERE chat_id=$1`, chatID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return group.ErrNotFound
	}
	return nil
}

func scanGroup(row pgx.Row) (*group.Config, error) {
	var cfg group.Config
	if err := row.Scan(&cfg.ChatID, &cfg.Title, &cfg.Allowed, &cfg.Topic, &cfg.Prescreen, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}
