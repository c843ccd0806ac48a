package auditlog

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

type ledgerPG struct{ pool *pgxpool.Pool }

func NewLedgerPG(pool *pgxpool.Pool) Ledger { return &ledgerPG{pool: pool} }

func (r *ledgerPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const entryCols = `id, practitioner_id, patient_id, patient_ref, access_type, access_reason,
	validation_status, decision, denial_reason, ip_address, user_agent, records_viewed,
	registration_number_used, state_council_used, created_at`

func (r *ledgerPG) scanEntry(row pgx.Row) (*AccessLogEntry, error) {
	var e AccessLogEntry
	err := row.Scan(&e.ID, &e.PractitionerID, &e.PatientID, &e.PatientRef, &e.AccessType, &e.Reason,
		&e.ValidationStatus, &e.Decision, &e.DenialReason, &e.IPAddress, &e.UserAgent, &e.RecordsViewed,
		&e.RegistrationNumberUsed, &e.CouncilUsed, &e.CreatedAt)
	return &e, err
}

func (r *ledgerPG) Append(ctx context.Context, e *AccessLogEntry) error {
	e.ID = uuid.New()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO access_log (id, practitioner_id, patient_id, patient_ref, access_type, access_reason,
			validation_status, decision, denial_reason, ip_address, user_agent, records_viewed,
			registration_number_used, state_council_used, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		e.ID, e.PractitionerID, e.PatientID, e.PatientRef, e.AccessType, e.Reason,
		e.ValidationStatus, e.Decision, e.DenialReason, e.IPAddress, e.UserAgent, e.RecordsViewed,
		e.RegistrationNumberUsed, e.CouncilUsed, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert access_log: %w", err)
	}
	return nil
}

func (r *ledgerPG) GetByID(ctx context.Context, id uuid.UUID) (*AccessLogEntry, error) {
	e, err := r.scanEntry(r.conn(ctx).QueryRow(ctx, `SELECT `+entryCols+` FROM access_log WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *ledgerPG) List(ctx context.Context, limit, offset int) ([]*AccessLogEntry, int, error) {
	return r.list(ctx, ``, nil, limit, offset)
}

func (r *ledgerPG) ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]*AccessLogEntry, int, error) {
	return r.list(ctx, `WHERE practitioner_id = $1`, []interface{}{practitionerID}, limit, offset)
}

func (r *ledgerPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*AccessLogEntry, int, error) {
	return r.list(ctx, `WHERE patient_id = $1`, []interface{}{patientID}, limit, offset)
}

// list pages through access_log newest first. seq breaks created_at ties
// in insertion order.
func (r *ledgerPG) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*AccessLogEntry, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM access_log `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM access_log %s ORDER BY created_at DESC, seq DESC LIMIT $%d OFFSET $%d`,
		entryCols, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*AccessLogEntry
	for rows.Next() {
		e, err := r.scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}

func (r *ledgerPG) Statistics(ctx context.Context) (*Statistics, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT access_type, validation_status, decision, COUNT(*)
		FROM access_log
		GROUP BY access_type, validation_status, decision`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	stats := newStatistics()
	for rows.Next() {
		var (
			at     AccessType
			status ValidationStatus
			dec    Decision
			n      int
		)
		if err := rows.Scan(&at, &status, &dec, &n); err != nil {
			return nil, err
		}
		stats.add(at, status, dec, n)
	}
	return stats, rows.Err()
}

func (r *ledgerPG) PractitionerStatistics(ctx context.Context, practitionerID uuid.UUID) (*PractitionerStatistics, error) {
	ps := PractitionerStatistics{PractitionerID: practitionerID}
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE access_type = 'EMERGENCY'),
			COUNT(*) FILTER (WHERE access_type = 'AUTHORIZED'),
			COUNT(*) FILTER (WHERE decision = 'DENIED'),
			COUNT(DISTINCT patient_id),
			MAX(created_at)
		FROM access_log WHERE practitioner_id = $1`, practitionerID).Scan(
		&ps.TotalAccesses, &ps.EmergencyAccesses, &ps.AuthorizedAccesses,
		&ps.DeniedAccesses, &ps.UniquePatients, &ps.LastAccess)
	if err != nil {
		return nil, err
	}
	return &ps, nil
}

func (r *ledgerPG) UpdateRecordsViewed(ctx context.Context, id uuid.UUID, count int) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE access_log SET records_viewed = $2 WHERE id = $1`, id, count)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
