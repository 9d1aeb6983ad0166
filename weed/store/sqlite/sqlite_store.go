package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/brstgt/seaweed-admin/weed/store"
	"github.com/brstgt/seaweed-admin/weed/store/abstract_sql"
	"github.com/brstgt/seaweed-admin/weed/store/mysql"
	"github.com/brstgt/seaweed-admin/weed/util"
)

const (
	CreateTablesSql = `
CREATE TABLE IF NOT EXISTS seaweed_repair_status (
  volume_id INTEGER NOT NULL,
  collection VARCHAR(255) NOT NULL DEFAULT '',
  repaired_at DATETIME NOT NULL,
  PRIMARY KEY (volume_id, collection)
);

CREATE TABLE IF NOT EXISTS seaweed_compaction_status (
  host VARCHAR(255) NOT NULL,
  volume_id INTEGER NOT NULL,
  collection VARCHAR(255) NOT NULL DEFAULT '',
  compacted_at DATETIME NOT NULL,
  PRIMARY KEY (host, volume_id, collection)
);

CREATE TABLE IF NOT EXISTS seaweed_compaction_lock (
  volume_id INTEGER NOT NULL,
  collection VARCHAR(255) NOT NULL DEFAULT '',
  locked_by VARCHAR(255) NOT NULL,
  locked_at DATETIME NOT NULL,
  PRIMARY KEY (volume_id, collection)
);

CREATE TABLE IF NOT EXISTS seaweed_delete_queue (
  file_id VARCHAR(64) NOT NULL PRIMARY KEY,
  collection VARCHAR(255) NOT NULL DEFAULT '',
  replication VARCHAR(8) NOT NULL DEFAULT '',
  try_count INTEGER NOT NULL DEFAULT 0,
  enqueued_at DATETIME NOT NULL,
  status_change DATETIME NOT NULL,
  retry_at DATETIME NOT NULL,
  exception TEXT
);

CREATE INDEX IF NOT EXISTS seaweed_delete_queue_retry_at ON seaweed_delete_queue (retry_at);
`
	upsertRepairedAt = `INSERT INTO seaweed_repair_status (volume_id,collection,repaired_at) VALUES(?,?,?)
ON CONFLICT(volume_id,collection) DO UPDATE SET repaired_at=excluded.repaired_at`
	upsertCompactedAt = `INSERT INTO seaweed_compaction_status (host,volume_id,collection,compacted_at) VALUES(?,?,?,?)
ON CONFLICT(host,volume_id,collection) DO UPDATE SET compacted_at=excluded.compacted_at`
)

func init() {
	store.Stores = append(store.Stores, &SqliteStore{})
}

type SqliteStore struct {
	abstract_sql.AbstractSqlStore
}

func (s *SqliteStore) GetName() string {
	return "sqlite"
}

func (s *SqliteStore) Initialize(configuration util.Configuration, prefix string) (err error) {
	dbFile := configuration.GetString(prefix + "dbFile")
	if dbFile == "" {
		dbFile = "seaweed-admin.db"
	}
	return s.initialize(util.ResolvePath(dbFile))
}

// Open prepares a store on dbFile, ":memory:" gives a private in-memory database.
func Open(dbFile string) (*SqliteStore, error) {
	s := &SqliteStore{}
	if err := s.initialize(dbFile); err != nil {
		return nil, err
	}
	return s, nil
}

func dsn(dbFile string) string {
	params := "_time_format=sqlite&_pragma=busy_timeout(10000)"
	if dbFile == ":memory:" {
		return "file::memory:?" + params
	}
	return "file:" + dbFile + "?" + params + "&_pragma=journal_mode(WAL)"
}

func (s *SqliteStore) initialize(dbFile string) (err error) {

	s.SqlGenerator = &mysql.SqlGenMysql{
		CreateTablesSql:       CreateTablesSql,
		UpsertRepairedAtSql:   upsertRepairedAt,
		UpsertCompactedAtSql:  upsertCompactedAt,
		DuplicateKeyRecognize: isConstraintViolation,
	}

	var dbErr error
	s.DB, dbErr = sql.Open("sqlite", dsn(dbFile))
	if dbErr != nil {
		if s.DB != nil {
			s.DB.Close()
			s.DB = nil
		}
		return fmt.Errorf("can not connect to %s error:%v", dbFile, dbErr)
	}

	// one writer at a time; also keeps a :memory: database on a single connection
	s.DB.SetMaxOpenConns(1)

	if err = s.DB.Ping(); err != nil {
		return fmt.Errorf("connect to %s error:%v", dbFile, err)
	}

	if err = s.CreateTables(context.Background()); err != nil {
		return fmt.Errorf("init tables: %v", err)
	}

	return nil
}

func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed")
		}
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
