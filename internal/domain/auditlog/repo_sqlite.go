package auditlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS access_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		practitioner_id TEXT NOT NULL,
		patient_id TEXT,
		patient_ref TEXT NOT NULL DEFAULT '',
		access_type TEXT NOT NULL,
		access_reason TEXT NOT NULL,
		validation_status TEXT NOT NULL,
		decision TEXT NOT NULL,
		denial_reason TEXT NOT NULL DEFAULT '',
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		records_viewed INTEGER NOT NULL DEFAULT 0,
		registration_number_used TEXT NOT NULL DEFAULT '',
		state_council_used TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_access_log_practitioner ON access_log(practitioner_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_access_log_patient ON access_log(patient_id, created_at);

	CREATE TRIGGER IF NOT EXISTS access_log_no_delete BEFORE DELETE ON access_log
	BEGIN
		SELECT RAISE(ABORT, 'access_log is append-only');
	END;

	CREATE TRIGGER IF NOT EXISTS access_log_no_update BEFORE UPDATE OF
		id, practitioner_id, patient_id, patient_ref, access_type, access_reason,
		validation_status, decision, denial_reason, ip_address, user_agent,
		registration_number_used, state_council_used, created_at
	ON access_log
	BEGIN
		SELECT RAISE(ABORT, 'access_log is append-only');
	END;
`

// SQLiteLedger stores the ledger in a single SQLite file. created_at is kept
// as unix nanoseconds so ordering is numeric.
type SQLiteLedger struct {
	db *sql.DB
}

// OpenSQLiteLedger opens (creating if needed) the ledger database at path.
// ":memory:" gives a private in-memory ledger.
func OpenSQLiteLedger(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database at '%s': %w", path, err)
	}
	// One writer connection serialises appends. It also keeps ":memory:"
	// bound to a single database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger database connection test failed for '%s': %w", path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ledger schema in '%s': %w", path, err)
	}
	return &SQLiteLedger{db: db}, nil
}

func (l *SQLiteLedger) Close() error { return l.db.Close() }

// Ping reports whether the database is reachable.
func (l *SQLiteLedger) Ping(ctx context.Context) error { return l.db.PingContext(ctx) }

const sqliteCols = `id, practitioner_id, patient_id, patient_ref, access_type, access_reason,
	validation_status, decision, denial_reason, ip_address, user_agent, records_viewed,
	registration_number_used, state_council_used, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteEntry(row rowScanner) (*AccessLogEntry, error) {
	var (
		e         AccessLogEntry
		patientID sql.NullString
		created   int64
	)
	err := row.Scan(&e.ID, &e.PractitionerID, &patientID, &e.PatientRef, &e.AccessType, &e.Reason,
		&e.ValidationStatus, &e.Decision, &e.DenialReason, &e.IPAddress, &e.UserAgent, &e.RecordsViewed,
		&e.RegistrationNumberUsed, &e.CouncilUsed, &created)
	if err != nil {
		return nil, err
	}
	if patientID.Valid {
		id, err := uuid.Parse(patientID.String)
		if err != nil {
			return nil, fmt.Errorf("parse patient_id: %w", err)
		}
		e.PatientID = &id
	}
	e.CreatedAt = time.Unix(0, created).UTC()
	return &e, nil
}

func (l *SQLiteLedger) Append(ctx context.Context, e *AccessLogEntry) error {
	e.ID = uuid.New()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	var patientID sql.NullString
	if e.PatientID != nil {
		patientID = sql.NullString{String: e.PatientID.String(), Valid: true}
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO access_log (`+sqliteCols+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID.String(), e.PractitionerID.String(), patientID, e.PatientRef, e.AccessType, e.Reason,
		e.ValidationStatus, e.Decision, e.DenialReason, e.IPAddress, e.UserAgent, e.RecordsViewed,
		e.RegistrationNumberUsed, e.CouncilUsed, e.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert access_log: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) GetByID(ctx context.Context, id uuid.UUID) (*AccessLogEntry, error) {
	e, err := scanSQLiteEntry(l.db.QueryRowContext(ctx, `SELECT `+sqliteCols+` FROM access_log WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

func (l *SQLiteLedger) List(ctx context.Context, limit, offset int) ([]*AccessLogEntry, int, error) {
	return l.list(ctx, ``, nil, limit, offset)
}

func (l *SQLiteLedger) ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]*AccessLogEntry, int, error) {
	return l.list(ctx, `WHERE practitioner_id = ?`, []any{practitionerID.String()}, limit, offset)
}

func (l *SQLiteLedger) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*AccessLogEntry, int, error) {
	return l.list(ctx, `WHERE patient_id = ?`, []any{patientID.String()}, limit, offset)
}

func (l *SQLiteLedger) list(ctx context.Context, where string, args []any, limit, offset int) ([]*AccessLogEntry, int, error) {
	var total int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM access_log `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+sqliteCols+` FROM access_log `+where+` ORDER BY created_at DESC, seq DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*AccessLogEntry
	for rows.Next() {
		e, err := scanSQLiteEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}

func (l *SQLiteLedger) Statistics(ctx context.Context) (*Statistics, error) {
	rows, err := l.db.QueryContext(ctx, `
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

func (l *SQLiteLedger) PractitionerStatistics(ctx context.Context, practitionerID uuid.UUID) (*PractitionerStatistics, error) {
	ps := PractitionerStatistics{PractitionerID: practitionerID}
	var last sql.NullInt64
	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN access_type = 'EMERGENCY' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN access_type = 'AUTHORIZED' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN decision = 'DENIED' THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT patient_id),
			MAX(created_at)
		FROM access_log WHERE practitioner_id = ?`, practitionerID.String()).Scan(
		&ps.TotalAccesses, &ps.EmergencyAccesses, &ps.AuthorizedAccesses,
		&ps.DeniedAccesses, &ps.UniquePatients, &last)
	if err != nil {
		return nil, err
	}
	if last.Valid {
		t := time.Unix(0, last.Int64).UTC()
		ps.LastAccess = &t
	}
	return &ps, nil
}

func (l *SQLiteLedger) UpdateRecordsViewed(ctx context.Context, id uuid.UUID, count int) error {
	res, err := l.db.ExecContext(ctx, `UPDATE access_log SET records_viewed = ? WHERE id = ?`, count, id.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
