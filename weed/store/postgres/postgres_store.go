package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/brstgt/seaweed-admin/weed/store"
	"github.com/brstgt/seaweed-admin/weed/store/abstract_sql"
	"github.com/brstgt/seaweed-admin/weed/util"
)

const (
	CreateTablesSql = `
CREATE TABLE IF NOT EXISTS seaweed_repair_status (
  volume_id BIGINT NOT NULL,
  collection VARCHAR(255) NOT NULL DEFAULT '',
  repaired_at TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (volume_id, collection)
);

CREATE TABLE IF NOT EXISTS seaweed_compaction_status (
  host VARCHAR(255) NOT NULL,
  volume_id BIGINT NOT NULL,
  collection VARCHAR(255) NOT NULL DEFAULT '',
  compacted_at TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (host, volume_id, collection)
);

CREATE TABLE IF NOT EXISTS seaweed_compaction_lock (
  volume_id BIGINT NOT NULL,
  collection VARCHAR(255) NOT NULL DEFAULT '',
  locked_by VARCHAR(255) NOT NULL,
  locked_at TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (volume_id, collection)
);

CREATE TABLE IF NOT EXISTS seaweed_delete_queue (
  file_id VARCHAR(64) NOT NULL PRIMARY KEY,
  collection VARCHAR(255) NOT NULL DEFAULT '',
  replication VARCHAR(8) NOT NULL DEFAULT '',
  try_count INT NOT NULL DEFAULT 0,
  enqueued_at TIMESTAMPTZ NOT NULL,
  status_change TIMESTAMPTZ NOT NULL,
  retry_at TIMESTAMPTZ NOT NULL,
  exception TEXT
);

CREATE INDEX IF NOT EXISTS seaweed_delete_queue_retry_at ON seaweed_delete_queue (retry_at);
`
)

func init() {
	store.Stores = append(store.Stores, &PostgresStore{})
}

type PostgresStore struct {
	abstract_sql.AbstractSqlStore
}

func (s *PostgresStore) GetName() string {
	return "postgres"
}

func (s *PostgresStore) Initialize(configuration util.Configuration, prefix string) (err error) {
	return s.initialize(
		configuration.GetString(prefix+"username"),
		configuration.GetString(prefix+"password"),
		configuration.GetString(prefix+"hostname"),
		configuration.GetInt(prefix+"port"),
		configuration.GetString(prefix+"database"),
		configuration.GetString(prefix+"schema"),
		configuration.GetString(prefix+"sslmode"),
		configuration.GetBool(prefix+"pgbouncer_compatible"),
		configuration.GetInt(prefix+"connection_max_idle"),
		configuration.GetInt(prefix+"connection_max_open"),
		configuration.GetInt(prefix+"connection_max_lifetime_seconds"),
	)
}

// buildUrl returns the pgx keyword/value connection string and a copy with the password masked.
func (s *PostgresStore) buildUrl(user, password, hostname string, port int, database, schema, sslmode string, pgbouncerCompatible bool) (string, string) {
	sqlUrl := "connect_timeout=30"

	// simple protocol avoids prepared statements, which pgbouncer transaction pooling breaks
	if pgbouncerCompatible {
		sqlUrl += " prefer_simple_protocol=true"
	}
	if hostname != "" {
		sqlUrl += " host=" + hostname
	}
	if port != 0 {
		sqlUrl += " port=" + strconv.Itoa(port)
	}
	if sslmode != "" {
		sqlUrl += " sslmode=" + sslmode
	}
	if user != "" {
		sqlUrl += " user=" + user
	}
	maskedUrl := sqlUrl
	if password != "" {
		sqlUrl += " password=" + password
		maskedUrl += " password=*****"
	}
	if database != "" {
		sqlUrl += " dbname=" + database
		maskedUrl += " dbname=" + database
	}
	if schema != "" && !pgbouncerCompatible {
		sqlUrl += " search_path=" + schema
		maskedUrl += " search_path=" + schema
	}
	return sqlUrl, maskedUrl
}

func (s *PostgresStore) initialize(user, password, hostname string, port int, database, schema, sslmode string, pgbouncerCompatible bool, maxIdle, maxOpen, maxLifetimeSeconds int) (err error) {

	s.SqlGenerator = &SqlGenPostgres{
		CreateTablesSql: CreateTablesSql,
	}

	sqlUrl, maskedUrl := s.buildUrl(user, password, hostname, port, database, schema, sslmode, pgbouncerCompatible)

	var dbErr error
	s.DB, dbErr = sql.Open("pgx", sqlUrl)
	if dbErr != nil {
		if s.DB != nil {
			s.DB.Close()
		}
		s.DB = nil
		return fmt.Errorf("can not connect to %s error:%v", maskedUrl, dbErr)
	}

	s.DB.SetMaxIdleConns(maxIdle)
	s.DB.SetMaxOpenConns(maxOpen)
	s.DB.SetConnMaxLifetime(time.Duration(maxLifetimeSeconds) * time.Second)

	return s.setup(context.Background(), maskedUrl)
}

// setup checks the connection and creates missing tables.
func (s *PostgresStore) setup(ctx context.Context, maskedUrl string) error {
	if err := s.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("connect to %s error:%v", maskedUrl, err)
	}
	if err := s.CreateTables(ctx); err != nil {
		return fmt.Errorf("init tables: %v", err)
	}
	return nil
}
