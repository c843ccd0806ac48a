package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/medcard/medcard/internal/domain/patient"
	"github.com/medcard/medcard/internal/domain/practitioner"
)

func TestPractitionerLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := practitioner.NewService(practitioner.NewRepoPG(globalDB.Pool))

	p := createTestPractitioner(t, ctx, "KA-"+uniqueSuffix(), "Karnataka Medical Council", false)
	if p.IsVerified {
		t.Fatal("expected a new practitioner to be unverified")
	}

	t.Run("GetByDoctorCode", func(t *testing.T) {
		got, err := svc.GetByDoctorCode(ctx, " "+p.DoctorCode+" ")
		if err != nil {
			t.Fatalf("GetByDoctorCode: %v", err)
		}
		if got.ID != p.ID {
			t.Errorf("expected %s, got %s", p.ID, got.ID)
		}
	})

	t.Run("VerifyOnce", func(t *testing.T) {
		v, err := svc.Verify(ctx, p.ID, "admin@medcard")
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if !v.IsVerified || v.VerifiedAt == nil || v.VerifiedBy == nil || *v.VerifiedBy != "admin@medcard" {
			t.Errorf("unexpected verification state %+v", v)
		}
		if _, err := svc.Verify(ctx, p.ID, "other-admin"); !errors.Is(err, practitioner.ErrAlreadyVerified) {
			t.Errorf("expected ErrAlreadyVerified, got %v", err)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, err := svc.GetByDoctorCode(ctx, "DR00000000"); !errors.Is(err, practitioner.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		dup := &practitioner.Practitioner{
			RegistrationNumber: "KA-" + uniqueSuffix(),
			Council:            "Karnataka Medical Council",
			FirstName:          "Other",
			LastName:           "Doctor",
			Email:              p.Email,
		}
		if err := svc.Create(ctx, dup); err == nil {
			t.Error("expected unique violation on email")
		}
	})
}

func TestPatientResolveAndDocuments(t *testing.T) {
	ctx := context.Background()
	svc := patient.NewService(patient.NewRepoPG(globalDB.Pool))
	p := createTestPatient(t, ctx)
	addTestDocument(t, ctx, p.ID, "CBC panel")
	addTestDocument(t, ctx, p.ID, "Lipid profile")

	err := withConn(ctx, func(ctx context.Context) error {
		byID, err := svc.Resolve(ctx, p.ID.String())
		if err != nil {
			return err
		}
		byCode, err := svc.Resolve(ctx, " "+p.PatientCode+" ")
		if err != nil {
			return err
		}
		if byID.ID != byCode.ID {
			t.Errorf("id and code resolved to different patients")
		}
		docs, err := svc.Documents(ctx, p.ID)
		if err != nil {
			return err
		}
		if len(docs) != 2 {
			t.Errorf("expected 2 documents, got %d", len(docs))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Resolve(ctx, "PT00000000"); !errors.Is(err, patient.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
