package patient

import (
	"context"
	"errors"

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

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &patientRepoPG{pool: pool} }

func (r *patientRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const patientCols = `id, patient_code, first_name, last_name, email, phone_number, date_of_birth,
	gender, blood_group, allergies, chronic_diseases,
	emergency_contact_name, emergency_contact_phone, emergency_contact_relation,
	created_at, updated_at`

func (r *patientRepoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.PatientCode, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.DateOfBirth,
		&p.Gender, &p.BloodGroup, &p.Allergies, &p.ChronicDiseases,
		&p.EmergencyContactName, &p.EmergencyContactPhone, &p.EmergencyContactRelation,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (id, patient_code, first_name, last_name, email, phone_number, date_of_birth,
			gender, blood_group, allergies, chronic_diseases,
			emergency_contact_name, emergency_contact_phone, emergency_contact_relation)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		p.ID, p.PatientCode, p.FirstName, p.LastName, p.Email, p.Phone, p.DateOfBirth,
		p.Gender, p.BloodGroup, p.Allergies, p.ChronicDiseases,
		p.EmergencyContactName, p.EmergencyContactPhone, p.EmergencyContactRelation,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *patientRepoPG) GetByCode(ctx context.Context, code string) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE patient_code = $1`, code))
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+patientCols+` FROM patient ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

const documentCols = `id, patient_id, record_type, title, description, hospital_name, doctor_name,
	date_of_record, file_key, uploaded_at`

func (r *patientRepoPG) AddDocument(ctx context.Context, d *MedicalDocument) error {
	d.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_document (id, patient_id, record_type, title, description, hospital_name,
			doctor_name, date_of_record, file_key)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING uploaded_at`,
		d.ID, d.PatientID, d.RecordType, d.Title, d.Description, d.HospitalName,
		d.DoctorName, d.DateOfRecord, d.FileKey,
	).Scan(&d.UploadedAt)
}

func (r *patientRepoPG) ListDocuments(ctx context.Context, patientID uuid.UUID) ([]*MedicalDocument, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+documentCols+` FROM medical_document WHERE patient_id = $1 ORDER BY uploaded_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*MedicalDocument
	for rows.Next() {
		var d MedicalDocument
		if err := rows.Scan(&d.ID, &d.PatientID, &d.RecordType, &d.Title, &d.Description, &d.HospitalName,
			&d.DoctorName, &d.DateOfRecord, &d.FileKey, &d.UploadedAt); err != nil {
			return nil, err
		}
		items = append(items, &d)
	}
	return items, rows.Err()
}
