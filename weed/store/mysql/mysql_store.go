package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/brstgt/seaweed-admin/weed/store"
	"github.com/brstgt/seaweed-admin/weed/store/abstract_sql"
	"github.com/brstgt/seaweed-admin/weed/util"
)

const (
	CreateTablesSql = `
CREATE TABLE IF NOT EXISTS seaweed_repair_status (
  volume_id INT UNSIGNED NOT NULL,
  collection VARCHAR(255) NOT NULL DEFAULT '',
  repaired_at DATETIME NOT NULL,
  PRIMARY KEY (volume_id, collection)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS seaweed_compaction_status (
  host VARCHAR(255) NOT NULL,
  volume_id INT UNSIGNED NOT NULL,
  collection VARCHAR(255) NOT NULL DEFAULT '',
  compacted_at DATETIME NOT NULL,
  PRIMARY KEY (host, volume_id, collection)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS seaweed_compaction_lock (
  volume_id INT UNSIGNED NOT NULL,
  collection VARCHAR(255) NOT NULL DEFAULT '',
  locked_by VARCHAR(255) NOT NULL,
  locked_at DATETIME NOT NULL,
  PRIMARY KEY (volume_id, collection)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS seaweed_delete_queue (
  file_id VARCHAR(64) NOT NULL,
  collection VARCHAR(255) NOT NULL DEFAULT '',
  replication VARCHAR(8) NOT NULL DEFAULT '',
  try_count INT NOT NULL DEFAULT 0,
  enqueued_at DATETIME NOT NULL,
  status_change DATETIME NOT NULL,
  retry_at DATETIME NOT NULL,
  exception TEXT,
  PRIMARY KEY (file_id),
  KEY retry_at (retry_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`
)

func init() {
	store.Stores = append(store.Stores, &MysqlStore{})
}

type MysqlStore struct {
	abstract_sql.AbstractSqlStore
}

func (s *MysqlStore) GetName() string {
	return "mysql"
}

func (s *MysqlStore) Initialize(configuration util.Configuration, prefix string) (err error) {
	return s.initialize(
		configuration.GetString(prefix+"username"),
		configuration.GetString(prefix+"password"),
		configuration.GetString(prefix+"hostname"),
		configuration.GetInt(prefix+"port"),
		configuration.GetString(prefix+"database"),
		configuration.GetInt(prefix+"connection_max_idle"),
		configuration.GetInt(prefix+"connection_max_open"),
		configuration.GetInt(prefix+"connection_max_lifetime_seconds"),
	)
}

// BuildDsn returns the real DSN and a copy safe for logging.
func BuildDsn(user, password, hostname string, port int, database string) (dsn string, masked string) {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", hostname, port)
	cfg.DBName = database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	dsn = cfg.FormatDSN()
	if password != "" {
		cfg.Passwd = "<ADAPTED>"
	}
	return dsn, cfg.FormatDSN()
}

func (s *MysqlStore) initialize(user, password, hostname string, port int, database string, maxIdle, maxOpen,
	maxLifetimeSeconds int) (err error) {

	s.SqlGenerator = &SqlGenMysql{
		CreateTablesSql: CreateTablesSql,
	}

	sqlUrl, adaptedSqlUrl := BuildDsn(user, password, hostname, port, database)

	var dbErr error
	s.DB, dbErr = sql.Open("mysql", sqlUrl)
	if dbErr != nil {
		if s.DB != nil {
			s.DB.Close()
		}
		s.DB = nil
		return fmt.Errorf("can not connect to %s error:%v", adaptedSqlUrl, dbErr)
	}

	s.DB.SetMaxIdleConns(maxIdle)
	s.DB.SetMaxOpenConns(maxOpen)
	s.DB.SetConnMaxLifetime(time.Duration(maxLifetimeSeconds) * time.Second)

	return s.setup(context.Background(), adaptedSqlUrl)
}

// setup checks the connection and creates missing tables.
func (s *MysqlStore) setup(ctx context.Context, maskedUrl string) error {
	if err := s.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("connect to %s error:%v", maskedUrl, err)
	}
	if err := s.CreateTables(ctx); err != nil {
		return fmt.Errorf("init tables: %v", err)
	}
	return nil
}
