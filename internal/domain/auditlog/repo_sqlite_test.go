package auditlog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteLedger(t *testing.T) *SQLiteLedger {
	t.Helper()
	l, err := OpenSQLiteLedger(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func granted(practitionerID uuid.UUID, patientID *uuid.UUID, at AccessType) *AccessLogEntry {
	return &AccessLogEntry{
		PractitionerID:   practitionerID,
		PatientID:        patientID,
		PatientRef:       "PT1A2B3C4D",
		AccessType:       at,
		Reason:           "unconscious on arrival",
		ValidationStatus: StatusAuthorized,
		Decision:         DecisionGranted,
	}
}

func TestSQLiteLedger_AppendAndGet(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLedger(t)

	patientID := uuid.New()
	e := granted(uuid.New(), &patientID, AccessEmergency)
	e.IPAddress = "10.0.0.7"
	e.RegistrationNumberUsed = "1001"
	require.NoError(t, l.Append(ctx, e))
	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.False(t, e.CreatedAt.IsZero())

	got, err := l.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.PractitionerID, got.PractitionerID)
	require.NotNil(t, got.PatientID)
	assert.Equal(t, patientID, *got.PatientID)
	assert.Equal(t, "10.0.0.7", got.IPAddress)
	assert.Equal(t, "1001", got.RegistrationNumberUsed)
	assert.Equal(t, e.CreatedAt.UnixNano(), got.CreatedAt.UnixNano())

	_, err = l.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteLedger_NilPatient(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLedger(t)

	e := &AccessLogEntry{
		PractitionerID:   uuid.New(),
		PatientRef:       "PT-MISSING",
		AccessType:       AccessEmergency,
		Reason:           "trauma",
		ValidationStatus: StatusPending,
		Decision:         DecisionDenied,
		DenialReason:     "PATIENT_NOT_FOUND",
	}
	require.NoError(t, l.Append(ctx, e))

	got, err := l.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Nil(t, got.PatientID)
	assert.Equal(t, "PT-MISSING", got.PatientRef)
}

func TestSQLiteLedger_NewestFirst(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLedger(t)

	practID := uuid.New()
	patientID := uuid.New()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		e := granted(practID, &patientID, AccessAuthorized)
		e.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, l.Append(ctx, e))
		ids = append(ids, e.ID)
	}
	// Same timestamp as the last one: insertion order breaks the tie.
	tie := granted(practID, &patientID, AccessAuthorized)
	tie.CreatedAt = base.Add(3 * time.Minute)
	require.NoError(t, l.Append(ctx, tie))
	ids = append(ids, tie.ID)

	items, total, err := l.ListByPractitioner(ctx, practID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, items, 5)
	for i, e := range items {
		assert.Equal(t, ids[len(ids)-1-i], e.ID, "position %d", i)
	}

	page, total, err := l.ListByPatient(ctx, patientID, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)
}

func TestSQLiteLedger_Filters(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLedger(t)

	a, b := uuid.New(), uuid.New()
	p1, p2 := uuid.New(), uuid.New()
	require.NoError(t, l.Append(ctx, granted(a, &p1, AccessEmergency)))
	require.NoError(t, l.Append(ctx, granted(a, &p2, AccessEmergency)))
	require.NoError(t, l.Append(ctx, granted(b, &p1, AccessRoutine)))

	items, total, err := l.ListByPractitioner(ctx, b, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, items, 1)

	items, total, err = l.ListByPatient(ctx, p1, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 2)

	_, total, err = l.List(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestSQLiteLedger_Statistics(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLedger(t)

	practID := uuid.New()
	p1, p2 := uuid.New(), uuid.New()
	require.NoError(t, l.Append(ctx, granted(practID, &p1, AccessEmergency)))
	require.NoError(t, l.Append(ctx, granted(practID, &p2, AccessAuthorized)))
	require.NoError(t, l.Append(ctx, granted(practID, &p2, AccessAuthorized)))
	denied := &AccessLogEntry{
		PractitionerID:   practID,
		PatientID:        &p1,
		AccessType:       AccessRoutine,
		Reason:           "follow-up",
		ValidationStatus: StatusBlacklisted,
		Decision:         DecisionDenied,
		DenialReason:     "BLACKLISTED",
	}
	require.NoError(t, l.Append(ctx, denied))
	require.NoError(t, l.Append(ctx, granted(uuid.New(), &p1, AccessEmergency)))

	stats, err := l.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 2, stats.ByAccessType[AccessEmergency])
	assert.Equal(t, 2, stats.ByAccessType[AccessAuthorized])
	assert.Equal(t, 1, stats.ByValidationStatus[StatusBlacklisted])
	assert.Equal(t, 4, stats.ByDecision[DecisionGranted])
	assert.Equal(t, 1, stats.ByDecision[DecisionDenied])

	ps, err := l.PractitionerStatistics(ctx, practID)
	require.NoError(t, err)
	assert.Equal(t, 4, ps.TotalAccesses)
	assert.Equal(t, 1, ps.EmergencyAccesses)
	assert.Equal(t, 2, ps.AuthorizedAccesses)
	assert.Equal(t, 1, ps.DeniedAccesses)
	assert.Equal(t, 2, ps.UniquePatients)
	assert.NotNil(t, ps.LastAccess)

	empty, err := l.PractitionerStatistics(ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, empty.TotalAccesses)
	assert.Nil(t, empty.LastAccess)
}

func TestSQLiteLedger_UpdateRecordsViewed(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLedger(t)

	patientID := uuid.New()
	e := granted(uuid.New(), &patientID, AccessEmergency)
	require.NoError(t, l.Append(ctx, e))

	require.NoError(t, l.UpdateRecordsViewed(ctx, e.ID, 3))
	got, err := l.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.RecordsViewed)

	assert.ErrorIs(t, l.UpdateRecordsViewed(ctx, uuid.New(), 1), ErrNotFound)
}

func TestSQLiteLedger_AppendOnly(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLedger(t)

	patientID := uuid.New()
	e := granted(uuid.New(), &patientID, AccessEmergency)
	require.NoError(t, l.Append(ctx, e))

	_, err := l.db.ExecContext(ctx, `UPDATE access_log SET decision = 'DENIED' WHERE id = ?`, e.ID.String())
	assert.Error(t, err)
	_, err = l.db.ExecContext(ctx, `DELETE FROM access_log WHERE id = ?`, e.ID.String())
	assert.Error(t, err)

	got, err := l.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, DecisionGranted, got.Decision)
}

func TestOpenSQLiteLedger_FileReopen(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/ledger.db"

	l, err := OpenSQLiteLedger(path)
	require.NoError(t, err)
	patientID := uuid.New()
	e := granted(uuid.New(), &patientID, AccessEmergency)
	require.NoError(t, l.Append(ctx, e))
	require.NoError(t, l.Close())

	l, err = OpenSQLiteLedger(path)
	require.NoError(t, err)
	defer l.Close()
	_, total, err := l.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.NoError(t, l.Ping(ctx))
}
