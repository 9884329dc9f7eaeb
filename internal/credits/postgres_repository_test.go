package credits

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
)

func TestReserveOldestMapsNoRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := NewPostgresRepositoryWithQuerier(mock)

	patientID := uuid.New()
	mock.ExpectQuery(`UPDATE credits SET status = 'reserved'`).
		WithArgs(patientID).
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.ReserveOldest(context.Background(), patientID)
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReserveOldestReturnsCreditID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := NewPostgresRepositoryWithQuerier(mock)

	patientID := uuid.New()
	creditID := uuid.New()
	mock.ExpectQuery(`UPDATE credits SET status = 'reserved'`).
		WithArgs(patientID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(creditID))

	got, err := repo.ReserveOldest(context.Background(), patientID)
	if err != nil {
		t.Fatalf("ReserveOldest: %v", err)
	}
	if got != creditID {
		t.Fatalf("expected %s, got %s", creditID, got)
	}
}

func TestConfirmSpendGuardMiss(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := NewPostgresRepositoryWithQuerier(mock)

	creditID := uuid.New()
	bookingID := uuid.New()

	// Guarded UPDATE matches nothing; the repo inspects the row and finds
	// it already spent.
	mock.ExpectExec(`UPDATE credits`).
		WithArgs(creditID, bookingID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT status FROM credits`).
		WithArgs(creditID).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(StatusSpent))

	err = repo.ConfirmSpend(context.Background(), creditID, bookingID)
	if !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
}

func TestReleaseAlreadyAvailableIsNoop(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := NewPostgresRepositoryWithQuerier(mock)

	creditID := uuid.New()
	mock.ExpectExec(`UPDATE credits`).
		WithArgs(creditID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT status FROM credits`).
		WithArgs(creditID).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(StatusAvailable))

	if err := repo.Release(context.Background(), creditID); err != nil {
		t.Fatalf("expected idempotent release, got %v", err)
	}
}

func TestReleaseUnknownCredit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := NewPostgresRepositoryWithQuerier(mock)

	creditID := uuid.New()
	mock.ExpectExec(`UPDATE credits`).
		WithArgs(creditID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT status FROM credits`).
		WithArgs(creditID).
		WillReturnError(pgx.ErrNoRows)

	if err := repo.Release(context.Background(), creditID); !errors.Is(err, ErrCreditNotFound) {
		t.Fatalf("expected ErrCreditNotFound, got %v", err)
	}
}

func TestGrantInsertsInOneTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := NewPostgresRepositoryWithQuerier(mock)

	patientID := uuid.New()
	mock.ExpectBegin()
	for i := 0; i < 3; i++ {
		mock.ExpectExec(`INSERT INTO credits`).
			WithArgs(pgxmock.AnyArg(), patientID, "starter-3").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	ids, err := repo.Grant(context.Background(), patientID, 3, "starter-3")
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 credit ids, got %d", len(ids))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
