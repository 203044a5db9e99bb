package tokens

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoCreateInsertsAllColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Now().UTC()
	req := Request{
		ID:        "req-1",
		Token:     "tok-1",
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jane@example.com",
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}

	mock.ExpectExec("INSERT INTO kyc_requests").
		WithArgs(
			req.ID,
			req.Token,
			req.FirstName,
			req.LastName,
			req.Email,
			req.Status,
			req.CreatedAt,
			req.UpdatedAt,
			req.ExpiresAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), req); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByTokenNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	mock.ExpectQuery("SELECT (.+) FROM kyc_requests").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := repo.GetByToken(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoCompareAndSetStatusReportsLostRace(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectExec("UPDATE kyc_requests").
		WithArgs(StatusInProgress, sqlmock.AnyArg(), "req-1", StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.CompareAndSetStatus(context.Background(), "req-1", StatusPending, StatusInProgress)
	if err != nil {
		t.Fatalf("CompareAndSetStatus: %v", err)
	}
	if ok {
		t.Fatal("zero rows updated must report a lost race")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
