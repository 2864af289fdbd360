package donation

import (
	"context"
	"errors"

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

const txnCols = `transaction_id, donor_id, staff_id, bag_id, donated_at, created_at`

func scanTxn(row pgx.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.DonorID, &t.StaffID, &t.BagID, &t.DonatedAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &t, err
}

func (r *repoPG) Create(ctx context.Context, t *Transaction) error {
	t.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO donation_transaction (transaction_id, donor_id, staff_id, bag_id, donated_at)
		VALUES ($1,$2,$3,$4,$5)`,
		t.ID, t.DonorID, t.StaffID, t.BagID, t.DonatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		// unique_violation on bag_id: one donation per bag
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return &DuplicateBagError{BagID: t.BagID}
		}
		return err
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return scanTxn(r.conn(ctx).QueryRow(ctx,
		`SELECT `+txnCols+` FROM donation_transaction WHERE transaction_id = $1`, id))
}

func (r *repoPG) ListByDonor(ctx context.Context, donorID uuid.UUID) ([]*Transaction, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+txnCols+` FROM donation_transaction
		WHERE donor_id = $1
		ORDER BY donated_at DESC`, donorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Transaction
	for rows.Next() {
		t, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Transaction, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM donation_transaction`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+txnCols+` FROM donation_transaction
		ORDER BY donated_at DESC, transaction_id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Transaction
	for rows.Next() {
		t, err := scanTxn(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}
