package integration

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medcard/medcard/internal/domain/patient"
	"github.com/medcard/medcard/internal/domain/practitioner"
	"github.com/medcard/medcard/internal/platform/db"
)

// testDB holds the shared database for integration tests. Tests isolate
// themselves with unique codes and emails rather than separate databases.
type testDB struct {
	Pool          *pgxpool.Pool
	ConnStr       string
	MigrationsDir string
}

var globalDB *testDB

// TestMain uses MEDCARD_TEST_DATABASE_URL when set and otherwise starts a
// throwaway postgres container. Without either the suite is skipped.
func TestMain(m *testing.M) {
	ctx := context.Background()

	connStr := os.Getenv("MEDCARD_TEST_DATABASE_URL")
	cleanup := func() {}
	if connStr == "" {
		if _, err := exec.LookPath("docker"); err != nil {
			fmt.Fprintln(os.Stderr, "skipping integration tests: set MEDCARD_TEST_DATABASE_URL or install docker")
			os.Exit(0)
		}
		var err error
		connStr, cleanup, err = startPostgresContainer(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to setup postgres container: %v\n", err)
			os.Exit(1)
		}
	}

	tdb, err := setupDatabase(ctx, connStr)
	if err != nil {
		cleanup()
		fmt.Fprintf(os.Stderr, "failed to setup database: %v\n", err)
		os.Exit(1)
	}

	globalDB = tdb
	code := m.Run()
	tdb.Pool.Close()
	cleanup()
	os.Exit(code)
}

func setupDatabase(ctx context.Context, connStr string) (*testDB, error) {
	pool, err := db.NewPool(ctx, db.PoolOptions{URL: connStr, MaxConns: 10, MinConns: 1, ApplicationName: "medcard-integration"})
	if err != nil {
		return nil, err
	}

	dir := findMigrationsDir()
	if _, err := db.NewMigrator(pool, dir).Up(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &testDB{Pool: pool, ConnStr: connStr, MigrationsDir: dir}, nil
}

// findMigrationsDir locates the migrations directory relative to this file.
func findMigrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// withConn acquires a connection and puts it into the context the same way
// db.ConnMiddleware does for HTTP requests.
func withConn(ctx context.Context, fn func(ctx context.Context) error) error {
	conn, err := globalDB.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Release()
	return fn(db.WithConn(ctx, conn))
}

func uniqueSuffix() string {
	return uuid.NewString()[:8]
}

func createTestPractitioner(t *testing.T, ctx context.Context, reg, council string, verified bool) *practitioner.Practitioner {
	t.Helper()
	svc := practitioner.NewService(practitioner.NewRepoPG(globalDB.Pool))
	p := &practitioner.Practitioner{
		RegistrationNumber: reg,
		Council:            council,
		FirstName:          "Asha",
		LastName:           "Rao",
		Email:              fmt.Sprintf("asha.%s@hospital.example", uniqueSuffix()),
	}
	if err := svc.Create(ctx, p); err != nil {
		t.Fatalf("create test practitioner: %v", err)
	}
	if verified {
		v, err := svc.Verify(ctx, p.ID, "admin@medcard")
		if err != nil {
			t.Fatalf("verify test practitioner: %v", err)
		}
		p = v
	}
	return p
}

func createTestPatient(t *testing.T, ctx context.Context) *patient.Patient {
	t.Helper()
	svc := patient.NewService(patient.NewRepoPG(globalDB.Pool))
	bg := "O+"
	p := &patient.Patient{
		FirstName:             "Ravi",
		LastName:              "Kumar",
		Email:                 fmt.Sprintf("ravi.%s@example.com", uniqueSuffix()),
		Phone:                 "+91-9800000000",
		BloodGroup:            &bg,
		Allergies:             "Penicillin",
		EmergencyContactName:  "Meera Kumar",
		EmergencyContactPhone: "+91-9811111111",
	}
	if err := svc.Create(ctx, p); err != nil {
		t.Fatalf("create test patient: %v", err)
	}
	return p
}

func addTestDocument(t *testing.T, ctx context.Context, patientID uuid.UUID, title string) {
	t.Helper()
	svc := patient.NewService(patient.NewRepoPG(globalDB.Pool))
	d := &patient.MedicalDocument{PatientID: patientID, RecordType: patient.RecordLabResult, Title: title}
	if err := svc.AddDocument(ctx, d); err != nil {
		t.Fatalf("add test document: %v", err)
	}
}
