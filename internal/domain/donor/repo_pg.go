package donor

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bloodbank/bloodbank/internal/platform/db"
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

const donorCols = `donor_id, first_name, last_name, date_of_birth, gender, phone_number, blood_group, created_at, updated_at`

func scanDonor(row pgx.Row) (*Donor, error) {
	var d Donor
	err := row.Scan(&d.ID, &d.FirstName, &d.LastName, &d.DateOfBirth,
		&d.Gender, &d.PhoneNumber, &d.BloodGroup, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &d, err
}

func (r *repoPG) Create(ctx context.Context, d *Donor) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO donor (donor_id, first_name, last_name, date_of_birth, gender, phone_number, blood_group)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		d.ID, d.FirstName, d.LastName, d.DateOfBirth, d.Gender, d.PhoneNumber, d.BloodGroup)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Donor, error) {
	return scanDonor(r.conn(ctx).QueryRow(ctx,
		`SELECT `+donorCols+` FROM donor WHERE donor_id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, d *Donor) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE donor SET first_name=$2, last_name=$3, date_of_birth=$4,
			gender=$5, phone_number=$6, blood_group=$7, updated_at=NOW()
		WHERE donor_id = $1`,
		d.ID, d.FirstName, d.LastName, d.DateOfBirth, d.Gender, d.PhoneNumber, d.BloodGroup)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Donor, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM donor`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+donorCols+` FROM donor ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Donor
	for rows.Next() {
		d, err := scanDonor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM donor`).Scan(&n)
	return n, err
}

func (r *repoPG) ListEligible(ctx context.Context, cutoff time.Time) ([]*EligibleDonor, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT d.donor_id, d.first_name, d.last_name, d.date_of_birth,
			d.gender, d.phone_number, d.blood_group, d.created_at, d.updated_at,
			MAX(t.donated_at) AS last_donation_date
		FROM donor d
		LEFT JOIN donation_transaction t ON t.donor_id = d.donor_id
		GROUP BY d.donor_id
		HAVING MAX(t.donated_at) IS NULL OR MAX(t.donated_at) < $1
		ORDER BY MAX(t.donated_at) ASC NULLS FIRST, d.donor_id ASC`,
		cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*EligibleDonor
	for rows.Next() {
		var e EligibleDonor
		if err := rows.Scan(&e.ID, &e.FirstName, &e.LastName, &e.DateOfBirth,
			&e.Gender, &e.PhoneNumber, &e.BloodGroup, &e.CreatedAt, &e.UpdatedAt,
			&e.LastDonationDate); err != nil {
			return nil, err
		}
		items = append(items, &e)
	}
	return items, rows.Err()
}
