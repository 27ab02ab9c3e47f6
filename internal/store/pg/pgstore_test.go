package pg

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"wardenhq.org/internal/approval"
	"wardenhq.org/internal/audit"
	"wardenhq.org/internal/command"
	"wardenhq.org/internal/dispatch"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

func TestCompareAndResolveWinsOnPendingRow(t *testing.T) {
	store, mock := newMock(t)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`update approval_requests`).
		WithArgs("a1", "APPROVED", "u2", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	swapped, err := store.CompareAndResolve(context.Background(), "a1", approval.StatusApproved, "u2", at)
	if err != nil {
		t.Fatalf("cas: %v", err)
	}
	if !swapped {
		t.Fatal("expected the update to win")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCompareAndResolveLosesOnResolvedRow(t *testing.T) {
	store, mock := newMock(t)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`update approval_requests`).
		WithArgs("a1", "REJECTED", "u3", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	swapped, err := store.CompareAndResolve(context.Background(), "a1", approval.StatusRejected, "u3", at)
	if err != nil {
		t.Fatalf("cas: %v", err)
	}
	if swapped {
		t.Fatal("a non-pending row must not be updated")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestLastCommandExecution(t *testing.T) {
	store, mock := newMock(t)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`select created_at from audit_log`).
		WithArgs("c1", "u1", audit.EventCommandExecuted, "HIGH").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(at))

	got, found, err := store.LastCommandExecution(context.Background(), "c1", "u1", command.RiskHigh)
	if err != nil || !found {
		t.Fatalf("lookup: %v, found=%v", err, found)
	}
	if !got.Equal(at) {
		t.Fatalf("got %v, want %v", got, at)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestLastCommandExecutionNone(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery(`select created_at from audit_log`).
		WithArgs("c1", "u1", audit.EventCommandExecuted, "CRITICAL").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}))

	_, found, err := store.LastCommandExecution(context.Background(), "c1", "u1", command.RiskCritical)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if found {
		t.Fatal("no row was returned")
	}
}

func TestAppendAuditMapsFailureToUnavailable(t *testing.T) {
	store, mock := newMock(t)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`insert into audit_log`).
		WillReturnError(context.DeadlineExceeded)

	err := store.AppendAudit(context.Background(), &audit.Entry{
		ID: "e1", CommunityID: "c1", UserID: "u1",
		EventType: audit.EventCommandExecuted, Risk: command.RiskLow, CreatedAt: at,
	})
	if err != audit.ErrUnavailable {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestCompareAndSetStatus(t *testing.T) {
	store, mock := newMock(t)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`update dispatch_calls`).
		WithArgs("d1", "OPEN", "ASSIGNED", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	swapped, err := store.CompareAndSetStatus(context.Background(), "d1", dispatch.StatusOpen, dispatch.StatusAssigned, at)
	if err != nil || !swapped {
		t.Fatalf("cas = %v, %v", swapped, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
