package mysql

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/brstgt/seaweed-admin/weed/store/abstract_sql"
)

const mysqlDuplicateEntry = 1062

// SqlGenMysql uses ? placeholders. The sqlite store reuses it with its own
// create and upsert statements.
type SqlGenMysql struct {
	CreateTablesSql       string
	UpsertRepairedAtSql   string
	UpsertCompactedAtSql  string
	DuplicateKeyRecognize func(err error) bool
}

var (
	_ = abstract_sql.SqlGenerator(&SqlGenMysql{})
)

func (gen *SqlGenMysql) GetSqlCreateTables() string {
	return gen.CreateTablesSql
}

func (gen *SqlGenMysql) GetSqlFindRepairedAt() string {
	return "SELECT repaired_at FROM seaweed_repair_status WHERE volume_id=? AND collection=?"
}

func (gen *SqlGenMysql) GetSqlUpsertRepairedAt() string {
	if gen.UpsertRepairedAtSql != "" {
		return gen.UpsertRepairedAtSql
	}
	return "INSERT INTO seaweed_repair_status (volume_id,collection,repaired_at) VALUES(?,?,?) ON DUPLICATE KEY UPDATE repaired_at=VALUES(repaired_at)"
}

func (gen *SqlGenMysql) GetSqlFindCompactedAt() string {
	return "SELECT compacted_at FROM seaweed_compaction_status WHERE host=? AND volume_id=? AND collection=?"
}

func (gen *SqlGenMysql) GetSqlUpsertCompactedAt() string {
	if gen.UpsertCompactedAtSql != "" {
		return gen.UpsertCompactedAtSql
	}
	return "INSERT INTO seaweed_compaction_status (host,volume_id,collection,compacted_at) VALUES(?,?,?,?) ON DUPLICATE KEY UPDATE compacted_at=VALUES(compacted_at)"
}

func (gen *SqlGenMysql) GetSqlInsertLock() string {
	return "INSERT INTO seaweed_compaction_lock (volume_id,collection,locked_by,locked_at) VALUES(?,?,?,?)"
}

func (gen *SqlGenMysql) GetSqlDeleteLock() string {
	return "DELETE FROM seaweed_compaction_lock WHERE volume_id=? AND collection=?"
}

func (gen *SqlGenMysql) GetSqlInsertDelete() string {
	return "INSERT INTO seaweed_delete_queue (file_id,collection,replication,try_count,enqueued_at,status_change,retry_at,exception) VALUES(?,?,?,?,?,?,?,?)"
}

func (gen *SqlGenMysql) GetSqlUpdateDelete() string {
	return "UPDATE seaweed_delete_queue SET try_count=?, retry_at=?, status_change=?, exception=? WHERE file_id=?"
}

func (gen *SqlGenMysql) GetSqlPopDeletes() string {
	return "SELECT file_id,collection,replication,try_count,enqueued_at,status_change,retry_at,exception FROM seaweed_delete_queue WHERE retry_at<=? ORDER BY retry_at ASC LIMIT ?"
}

func (gen *SqlGenMysql) GetSqlFindDelete() string {
	return "SELECT file_id,collection,replication,try_count,enqueued_at,status_change,retry_at,exception FROM seaweed_delete_queue WHERE file_id=?"
}

func (gen *SqlGenMysql) GetSqlRemoveDelete() string {
	return "DELETE FROM seaweed_delete_queue WHERE file_id=?"
}

func (gen *SqlGenMysql) GetSqlCountDeletes() string {
	return "SELECT COUNT(*) FROM seaweed_delete_queue"
}

func (gen *SqlGenMysql) GetSqlTruncateDeletes() string {
	return "DELETE FROM seaweed_delete_queue"
}

func (gen *SqlGenMysql) IsDuplicateKey(err error) bool {
	if gen.DuplicateKeyRecognize != nil {
		return gen.DuplicateKeyRecognize(err)
	}
	return IsDuplicateEntry(err)
}

func IsDuplicateEntry(err error) bool {
	if err == nil {
		return false
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate entry")
}
