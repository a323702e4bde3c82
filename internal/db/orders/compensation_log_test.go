package ordersdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestCompensationLog_InitSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS order_compensations").
		WillReturnResult(sqlmock.NewResult(0, 0))

	log := NewCompensationLog(db)
	if err := log.InitSchema(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCompensationLog_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO order_compensations").
		WithArgs("order-1", "refund_payment", false, "refund endpoint down").
		WillReturnResult(sqlmock.NewResult(1, 1))

	log := NewCompensationLog(db)
	if err := log.Record(context.Background(), "order-1", "refund_payment", false, "refund endpoint down"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCompensationLog_RecordError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO order_compensations").
		WithArgs("order-1", "release_reservation", true, "").
		WillReturnError(errors.New("connection reset"))

	log := NewCompensationLog(db)
	if err := log.Record(context.Background(), "order-1", "release_reservation", true, ""); err == nil {
		t.Fatalf("expected error")
	}
}

func TestCompensationLog_RecentForOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"order_id", "action", "succeeded", "detail", "created_at"}).
		AddRow("order-1", "release_reservation", true, "", now).
		AddRow("order-1", "refund_payment", false, "refund down", now.Add(-time.Minute))
	mock.ExpectQuery("SELECT order_id, action, succeeded, detail, created_at").
		WithArgs("order-1", 10).
		WillReturnRows(rows)

	log := NewCompensationLog(db)
	records, err := log.RecentForOrder(context.Background(), "order-1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Action != "release_reservation" || !records[0].Succeeded {
		t.Fatalf("unexpected first record: %+v", records[0])
	}
	if records[1].Detail != "refund down" {
		t.Fatalf("unexpected second record: %+v", records[1])
	}
}

func TestNewCompensationLogWithSchema_InitFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS order_compensations").
		WillReturnError(errors.New("permission denied"))

	if _, err := NewCompensationLogWithSchema(context.Background(), db); err == nil {
		t.Fatalf("expected schema error")
	}
}
