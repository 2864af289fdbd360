package bag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bloodbank/bloodbank/internal/platform/db"
	"github.com/bloodbank/bloodbank/pkg/blood"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const bagCols = `bag_id, blood_group, donation_date, expiry_date, status, donor_id, created_at, updated_at`

func scanBag(row pgx.Row) (*Bag, error) {
	var b Bag
	err := row.Scan(&b.ID, &b.BloodGroup, &b.DonationDate, &b.ExpiryDate,
		&b.Status, &b.DonorID, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &b, err
}

func (r *repoPG) Create(ctx context.Context, b *Bag) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO blood_bag (bag_id, blood_group, donation_date, expiry_date, status, donor_id)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		b.ID, b.BloodGroup, b.DonationDate, b.ExpiryDate, b.Status, b.DonorID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateID
		}
		return err
	}
	return nil
}

func (r *repoPG) Get(ctx context.Context, id string) (*Bag, error) {
	return scanBag(r.conn(ctx).QueryRow(ctx,
		`SELECT `+bagCols+` FROM blood_bag WHERE bag_id = $1`, id))
}

func (r *repoPG) GetStatus(ctx context.Context, id string) (Status, error) {
	var s Status
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT status FROM blood_bag WHERE bag_id = $1`, id).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return s, err
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Bag, int, error) {
	query := `SELECT ` + bagCols + ` FROM blood_bag WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM blood_bag WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		countQuery += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}
	if f.BloodGroup != "" {
		query += fmt.Sprintf(` AND blood_group = $%d`, idx)
		countQuery += fmt.Sprintf(` AND blood_group = $%d`, idx)
		args = append(args, f.BloodGroup)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY expiry_date ASC, bag_id ASC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Bag
	for rows.Next() {
		b, err := scanBag(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

func (r *repoPG) UpdateStatusFrom(ctx context.Context, id string, from, to Status) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE blood_bag SET status = $3, updated_at = NOW()
		WHERE bag_id = $1 AND status = $2`,
		id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) ListExpired(ctx context.Context, asOf time.Time) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT bag_id FROM blood_bag
		WHERE status = $1 AND expiry_date < $2
		ORDER BY expiry_date ASC`,
		StatusAvailable, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repoPG) CountAvailable(ctx context.Context, group blood.Group, asOf time.Time) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM blood_bag
		WHERE status = $1 AND blood_group = $2 AND expiry_date >= $3`,
		StatusAvailable, group, asOf).Scan(&n)
	return n, err
}

func (r *repoPG) CountByStatus(ctx context.Context, status Status) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM blood_bag WHERE status = $1`, status).Scan(&n)
	return n, err
}

func (r *repoPG) SelectForDispense(ctx context.Context, group blood.Group, limit int, asOf time.Time) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT bag_id FROM blood_bag
		WHERE status = $1 AND blood_group = $2 AND expiry_date >= $3
		ORDER BY expiry_date ASC
		LIMIT $4
		FOR UPDATE SKIP LOCKED`,
		StatusAvailable, group, asOf, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
