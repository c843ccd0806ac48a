package practitioner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medcard/medcard/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type practitionerRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &practitionerRepoPG{pool: pool} }

func (r *practitionerRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const practCols = `id, doctor_code, registration_number, state_medical_council, first_name, last_name,
	email, phone, specialization, hospital_name, is_verified, verified_at, verified_by,
	created_at, updated_at`

func (r *practitionerRepoPG) scan(row pgx.Row) (*Practitioner, error) {
	var p Practitioner
	err := row.Scan(&p.ID, &p.DoctorCode, &p.RegistrationNumber, &p.Council, &p.FirstName, &p.LastName,
		&p.Email, &p.Phone, &p.Specialization, &p.HospitalName, &p.IsVerified, &p.VerifiedAt, &p.VerifiedBy,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *practitionerRepoPG) Create(ctx context.Context, p *Practitioner) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO practitioner (id, doctor_code, registration_number, state_medical_council,
			first_name, last_name, email, phone, specialization, hospital_name)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		p.ID, p.DoctorCode, p.RegistrationNumber, p.Council,
		p.FirstName, p.LastName, p.Email, p.Phone, p.Specialization, p.HospitalName,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *practitionerRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+practCols+` FROM practitioner WHERE id = $1`, id))
}

func (r *practitionerRepoPG) GetByDoctorCode(ctx context.Context, code string) (*Practitioner, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+practCols+` FROM practitioner WHERE doctor_code = $1`, code))
}

func (r *practitionerRepoPG) List(ctx context.Context, verified *bool, limit, offset int) ([]*Practitioner, int, error) {
	where := ``
	var args []interface{}
	if verified != nil {
		where = `WHERE is_verified = $1`
		args = append(args, *verified)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM practitioner `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM practitioner %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		practCols, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Practitioner
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *practitionerRepoPG) MarkVerified(ctx context.Context, id uuid.UUID, by string, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE practitioner SET is_verified = TRUE, verified_at = $2, verified_by = $3, updated_at = NOW()
		WHERE id = $1 AND is_verified = FALSE`, id, at, by)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrAlreadyVerified
}
