package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsSqlState(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     string
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			code:     pgUniqueViolation,
			expected: false,
		},
		{
			name:     "generic error",
			err:      errors.New("some error"),
			code:     pgUniqueViolation,
			expected: false,
		},
		{
			name:     "matching pg error",
			err:      &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"},
			code:     pgUniqueViolation,
			expected: true,
		},
		{
			name:     "mismatching pg error",
			err:      &pgconn.PgError{Code: "42P01", Message: "relation does not exist"},
			code:     pgUniqueViolation,
			expected: false,
		},
		{
			name:     "wrapped pg error",
			err:      fmt.Errorf("execute failed: %w", &pgconn.PgError{Code: "23505"}),
			code:     pgUniqueViolation,
			expected: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := isSqlState(tc.err, tc.code)
			if result != tc.expected {
				t.Errorf("expected %v, got %v", tc.expected, result)
			}
		})
	}
}

func TestBuildUrl(t *testing.T) {
	cases := []struct {
		name     string
		user     string
		password string
		hostname string
		port     int
		database string
		schema   string
		sslmode  string
	}{
		{
			name:     "basic",
			user:     "testuser",
			password: "secretpassword",
			hostname: "localhost",
			port:     5432,
			database: "testdb",
		},
		{
			name:     "empty password",
			user:     "testuser",
			hostname: "localhost",
			port:     5432,
			database: "testdb",
		},
		{
			name:     "all fields",
			user:     "user",
			password: "secretpass",
			hostname: "host",
			port:     5432,
			database: "db",
			schema:   "admin",
			sslmode:  "verify-full",
		},
	}

	store := &PostgresStore{}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			url, maskedUrl := store.buildUrl(tc.user, tc.password, tc.hostname, tc.port, tc.database, tc.schema, tc.sslmode, false)

			if tc.password != "" {
				if !strings.Contains(url, "password="+tc.password) {
					t.Errorf("real url should contain actual password")
				}
				if strings.Contains(maskedUrl, tc.password) {
					t.Errorf("masked url should NOT contain actual password")
				}
				if !strings.Contains(maskedUrl, "password=*****") {
					t.Errorf("masked url should contain masked password")
				}
			} else if strings.Contains(url, "password=") || strings.Contains(maskedUrl, "password=") {
				t.Errorf("url should not contain password field if empty")
			}

			if !strings.Contains(url, "user="+tc.user) || !strings.Contains(maskedUrl, "user="+tc.user) {
				t.Errorf("both urls should contain user")
			}
			if tc.schema != "" && !strings.Contains(url, "search_path="+tc.schema) {
				t.Errorf("url should contain search_path")
			}
		})
	}
}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { db.Close() })

	store := &PostgresStore{}
	store.DB = db
	store.SqlGenerator = &SqlGenPostgres{CreateTablesSql: CreateTablesSql}
	return store, mock
}

func TestTryLockDuplicateKey(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectExec("INSERT INTO seaweed_compaction_lock").
		WithArgs(uint32(5), "pictures", "vs1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO seaweed_compaction_lock").
		WithArgs(uint32(5), "pictures", "vs2", sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectExec("INSERT INTO seaweed_compaction_lock").
		WithArgs(uint32(5), "pictures", "vs3", sqlmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	ctx := context.Background()
	if ok, err := store.TryLock(ctx, 5, "pictures", "vs1", now); err != nil || !ok {
		t.Errorf("first lock: ok=%v err=%v", ok, err)
	}
	if ok, err := store.TryLock(ctx, 5, "pictures", "vs2", now); err != nil || ok {
		t.Errorf("second lock: ok=%v err=%v", ok, err)
	}
	if _, err := store.TryLock(ctx, 5, "pictures", "vs3", now); err == nil {
		t.Errorf("expected error for broken connection")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestCreateTablesRunsEveryStatement(t *testing.T) {
	store, mock := newMockStore(t)

	for _, table := range []string{"seaweed_repair_status", "seaweed_compaction_status", "seaweed_compaction_lock", "seaweed_delete_queue"} {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + table).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS seaweed_delete_queue_retry_at").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.CreateTables(context.Background()); err != nil {
		t.Errorf("CreateTables() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestSetupCreatesTablesAfterPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	store := &PostgresStore{}
	store.DB = db
	store.SqlGenerator = &SqlGenPostgres{CreateTablesSql: CreateTablesSql}

	mock.ExpectPing()
	for _, table := range []string{"seaweed_repair_status", "seaweed_compaction_status", "seaweed_compaction_lock", "seaweed_delete_queue"} {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + table).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS seaweed_delete_queue_retry_at").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.setup(context.Background(), "host=db.local"); err != nil {
		t.Errorf("setup() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestSetupReportsTableCreationFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	store := &PostgresStore{}
	store.DB = db
	store.SqlGenerator = &SqlGenPostgres{CreateTablesSql: CreateTablesSql}

	mock.ExpectPing()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS seaweed_repair_status").
		WillReturnError(&pgconn.PgError{Code: "42501", Message: "permission denied for schema public"})

	err = store.setup(context.Background(), "host=db.local")
	if err == nil || !strings.Contains(err.Error(), "init tables") {
		t.Errorf("setup() error = %v, want init tables failure", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}
