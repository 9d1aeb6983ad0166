package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/brstgt/seaweed-admin/weed/store/abstract_sql"
)

const pgUniqueViolation = "23505"

type SqlGenPostgres struct {
	CreateTablesSql string
}

var (
	_ = abstract_sql.SqlGenerator(&SqlGenPostgres{})
)

func (gen *SqlGenPostgres) GetSqlCreateTables() string {
	return gen.CreateTablesSql
}

func (gen *SqlGenPostgres) GetSqlFindRepairedAt() string {
	return "SELECT repaired_at FROM seaweed_repair_status WHERE volume_id=$1 AND collection=$2"
}

func (gen *SqlGenPostgres) GetSqlUpsertRepairedAt() string {
	return `INSERT INTO seaweed_repair_status (volume_id,collection,repaired_at) VALUES($1,$2,$3)
ON CONFLICT (volume_id,collection) DO UPDATE SET repaired_at=EXCLUDED.repaired_at`
}

func (gen *SqlGenPostgres) GetSqlFindCompactedAt() string {
	return "SELECT compacted_at FROM seaweed_compaction_status WHERE host=$1 AND volume_id=$2 AND collection=$3"
}

func (gen *SqlGenPostgres) GetSqlUpsertCompactedAt() string {
	return `INSERT INTO seaweed_compaction_status (host,volume_id,collection,compacted_at) VALUES($1,$2,$3,$4)
ON CONFLICT (host,volume_id,collection) DO UPDATE SET compacted_at=EXCLUDED.compacted_at`
}

func (gen *SqlGenPostgres) GetSqlInsertLock() string {
	return "INSERT INTO seaweed_compaction_lock (volume_id,collection,locked_by,locked_at) VALUES($1,$2,$3,$4)"
}

func (gen *SqlGenPostgres) GetSqlDeleteLock() string {
	return "DELETE FROM seaweed_compaction_lock WHERE volume_id=$1 AND collection=$2"
}

func (gen *SqlGenPostgres) GetSqlInsertDelete() string {
	return "INSERT INTO seaweed_delete_queue (file_id,collection,replication,try_count,enqueued_at,status_change,retry_at,exception) VALUES($1,$2,$3,$4,$5,$6,$7,$8)"
}

func (gen *SqlGenPostgres) GetSqlUpdateDelete() string {
	return "UPDATE seaweed_delete_queue SET try_count=$1, retry_at=$2, status_change=$3, exception=$4 WHERE file_id=$5"
}

func (gen *SqlGenPostgres) GetSqlPopDeletes() string {
	return "SELECT file_id,collection,replication,try_count,enqueued_at,status_change,retry_at,exception FROM seaweed_delete_queue WHERE retry_at<=$1 ORDER BY retry_at ASC LIMIT $2"
}

func (gen *SqlGenPostgres) GetSqlFindDelete() string {
	return "SELECT file_id,collection,replication,try_count,enqueued_at,status_change,retry_at,exception FROM seaweed_delete_queue WHERE file_id=$1"
}

func (gen *SqlGenPostgres) GetSqlRemoveDelete() string {
	return "DELETE FROM seaweed_delete_queue WHERE file_id=$1"
}

func (gen *SqlGenPostgres) GetSqlCountDeletes() string {
	return "SELECT COUNT(*) FROM seaweed_delete_queue"
}

func (gen *SqlGenPostgres) GetSqlTruncateDeletes() string {
	return "DELETE FROM seaweed_delete_queue"
}

func (gen *SqlGenPostgres) IsDuplicateKey(err error) bool {
	return isSqlState(err, pgUniqueViolation)
}

func isSqlState(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
