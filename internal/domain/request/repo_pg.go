package request

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

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// -- Recipients --

type recipientRepoPG struct{ pool *pgxpool.Pool }

func NewRecipientRepoPG(pool *pgxpool.Pool) RecipientRepository {
	return &recipientRepoPG{pool: pool}
}

func (r *recipientRepoPG) Create(ctx context.Context, rec *Recipient) error {
	rec.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO recipient (patient_id, name, hospital_name, required_blood_group)
		VALUES ($1,$2,$3,$4)`,
		rec.ID, rec.Name, rec.HospitalName, rec.BloodGroup)
	return err
}

func (r *recipientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Recipient, error) {
	var rec Recipient
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT patient_id, name, hospital_name, required_blood_group, created_at
		FROM recipient WHERE patient_id = $1`, id).
		Scan(&rec.ID, &rec.Name, &rec.HospitalName, &rec.BloodGroup, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRecipientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// -- Requests --

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const requestCols = `request_id, patient_id, requested_group, units_requested, fulfillment_status, created_at, updated_at`

func scanRequest(row pgx.Row) (*BloodRequest, error) {
	var br BloodRequest
	err := row.Scan(&br.ID, &br.RecipientID, &br.BloodGroup, &br.Units,
		&br.Status, &br.CreatedAt, &br.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &br, err
}

func (r *repoPG) Create(ctx context.Context, br *BloodRequest) error {
	br.ID = uuid.New()
	br.Status = StatusPending
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO blood_request (request_id, patient_id, requested_group, units_requested, fulfillment_status)
		VALUES ($1,$2,$3,$4,$5)`,
		br.ID, br.RecipientID, br.BloodGroup, br.Units, br.Status)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*BloodRequest, error) {
	return scanRequest(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+requestCols+` FROM blood_request WHERE request_id = $1`, id))
}

func (r *repoPG) List(ctx context.Context, status Status, limit, offset int) ([]*BloodRequest, int, error) {
	q := conn(ctx, r.pool)

	var (
		total int
		rows  pgx.Rows
		err   error
	)
	if status != "" {
		if err = q.QueryRow(ctx,
			`SELECT COUNT(*) FROM blood_request WHERE fulfillment_status = $1`, status).Scan(&total); err != nil {
			return nil, 0, err
		}
		rows, err = q.Query(ctx, `
			SELECT `+requestCols+` FROM blood_request
			WHERE fulfillment_status = $1
			ORDER BY created_at DESC, request_id
			LIMIT $2 OFFSET $3`, status, limit, offset)
	} else {
		if err = q.QueryRow(ctx, `SELECT COUNT(*) FROM blood_request`).Scan(&total); err != nil {
			return nil, 0, err
		}
		rows, err = q.Query(ctx, `
			SELECT `+requestCols+` FROM blood_request
			ORDER BY created_at DESC, request_id
			LIMIT $1 OFFSET $2`, limit, offset)
	}
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*BloodRequest
	for rows.Next() {
		br, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, br)
	}
	return items, total, rows.Err()
}

func (r *repoPG) UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to Status) (bool, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE blood_request SET fulfillment_status = $3, updated_at = NOW()
		WHERE request_id = $1 AND fulfillment_status = $2`,
		id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
