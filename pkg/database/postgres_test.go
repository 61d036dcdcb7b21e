package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"fars-analytics/pkg/logging"
	"fars-analytics/pkg/metrics"
)

func TestConfig_DSN(t *testing.T) {
	cfg := &Config{
		Host:     "db.internal",
		Port:     5433,
		User:     "fars",
		Password: "secret",
		Database: "fatalities",
		SSLMode:  "require",
	}

	want := "host=db.internal port=5433 user=fars password=secret dbname=fatalities sslmode=require"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestNewPostgresDB_Unreachable(t *testing.T) {
	cfg := &Config{
		Host:         "127.0.0.1",
		Port:         1, // nothing listens here
		User:         "fars",
		Database:     "fars",
		SSLMode:      "disable",
		MaxOpenConns: 1,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	collector := metrics.NewCollectorWith("fars_test", prometheus.NewRegistry())
	db, err := NewPostgresDB(ctx, cfg, logging.NewNopLogger(), collector)
	if err == nil {
		db.Close()
		t.Fatal("NewPostgresDB() should fail when the server is unreachable")
	}
}

func TestPostgresDB_ExecContext(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	collector := metrics.NewCollectorWith("fars_test", prometheus.NewRegistry())
	db := NewFromDB(sqlx.NewDb(conn, "postgres"), &Config{Database: "fars"}, logging.NewNopLogger(), collector)

	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP TABLE").WillReturnError(errors.New("permission denied"))

	if _, err := db.ExecContext(context.Background(), "migrate_up", "CREATE TABLE t (id int)"); err != nil {
		t.Fatalf("ExecContext() error = %v", err)
	}
	if _, err := db.ExecContext(context.Background(), "migrate_down", "DROP TABLE t"); err == nil {
		t.Fatal("ExecContext() should return the driver error")
	}

	if got := testutil.ToFloat64(collector.DBErrorsTotal.WithLabelValues("exec_error")); got != 1 {
		t.Errorf("exec_error count = %v, want 1", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
