package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatekeeper-bot/gatekeeper/internal/domain/verification"
)

// VerificationRepository implements verification.Repository.
type VerificationRepository struct {
	pool *pgxpool.Pool
}

func NewVerificationRepository(pool *pgxpool.Pool) *VerificationRepository {
	return &VerificationRepository{pool: pool}
}

func (r *VerificationRepository) Insert(ctx context.Context, rec *verification.Record) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO verification_history
		(record_id, chat_id, chat_title, user_id, display_name, question, answer, verdict, reason, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id
	`, rec.RecordID, rec.ChatID, rec.ChatTitle, rec.UserID, rec.DisplayName, rec.Question, rec.Answer, rec.Verdict, rec.Reason, rec.CreatedAt)
	return row.Scan(&rec.ID)
}

func (r *VerificationRepository) Query(ctx context.Context, filter verification.Filter, limit int) ([]*verification.Record, error) {
	query := `SELECT id, record_id, chat_id, chat_title, user_id, display_name, question, answer, verdict, reason, created_at FROM verification_history`
	query, args := applyHistoryFilter(query, filter)
	query += " ORDER BY created_at DESC, id DESC LIMIT $" + strconv.Itoa(len(args)+1)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*verification.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			out = append(out, rec)
		}
	}
	return out, rows.Err()
}

func (r *VerificationRepository) Count(ctx context.Context, filter verification.Filter) (int64, error) {
	query := `SELECT COUNT(1) FROM verification_history`
	query, args := applyHistoryFilter(query, filter)
	row := r.pool.QueryRow(ctx, query, args...)
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func applyHistoryFilter(query string, filter verification.Filter) (string, []interface{}) {
	args := []interface{}{}
	idx := 1
	if filter.ChatID != nil {
		query += addWhere(query) + " chat_id=$" + strconv.Itoa(idx)
		args = append(args, *filter.ChatID)
		idx++
	}
	if filter.UserID != nil {
		query += addWhere(query) + " user_id=$" + strconv.Itoa(idx)
		args = append(args, *filter.UserID)
		idx++
	}
	if filter.Verdict != nil {
		query += addWhere(query) + " verdict=$" + strconv.Itoa(idx)
		args = append(args, *filter.Verdict)
		idx++
	}
	if filter.Since != nil {
		query += addWhere(query) + " created_at >= $" + strconv.Itoa(idx)
		args = append(args, *filter.Since)
		idx++
	}
	return query, args
}

func addWhere(query string) string {
	if strings.Contains(query, " WHERE ") {
		return " AND"
	}
	return " WHERE"
}

func scanRecord(row pgx.Row) (*verification.Record, error) {
	var rec verification.Record
	if err := row.Scan(&rec.ID, &rec.RecordID, &rec.ChatID, &rec.ChatTitle, &rec.UserID, &rec.DisplayName, &rec.Question, &rec.Answer, &rec.Verdict, &rec.Reason, &rec.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}
