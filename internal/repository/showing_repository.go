package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/cinema-live-seats/internal/model"
)

// ShowingRepo manages persistence for showings.
type ShowingRepo struct {
	db *sql.DB
}

// NewShowingRepo constructs a ShowingRepo given a DB handle.
func NewShowingRepo(db *sql.DB) *ShowingRepo { return &ShowingRepo{db: db} }

// Create inserts a showing and populates its generated ID.
func (r *ShowingRepo) Create(ctx context.Context, s *model.Showing) error {
	now := dbTime(time.Now())
	s.StartsAt = dbTime(s.StartsAt)
	const q = `INSERT INTO showings (film_title, hall_name, starts_at, created_at) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.FilmTitle, s.HallName, s.StartsAt, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	s.CreatedAt = now
	return nil
}

// GetByID returns the showing with the given id or ErrShowingNotFound.
func (r *ShowingRepo) GetByID(ctx context.Context, id uint64) (*model.Showing, error) {
	const q = `SELECT id, film_title, hall_name, starts_at, created_at FROM showings WHERE id = ?`
	var s model.Showing
	err := r.db.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.FilmTitle, &s.HallName, &s.StartsAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShowingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListUpcoming returns showings starting at or after from, earliest first.
// A non-positive limit defaults to 50.
func (r *ShowingRepo) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]model.Showing, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT id, film_title, hall_name, starts_at, created_at
               FROM showings
               WHERE starts_at >= ?
               ORDER BY starts_at, id
               LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, dbTime(from), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Showing, 0)
	for rows.Next() {
		var s model.Showing
		if err := rows.Scan(&s.ID, &s.FilmTitle, &s.HallName, &s.StartsAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
