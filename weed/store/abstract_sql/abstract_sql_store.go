package abstract_sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/brstgt/seaweed-admin/weed/store"
	"github.com/brstgt/seaweed-admin/weed/util/sqlutil"
)

type SqlGenerator interface {
	GetSqlCreateTables() string
	GetSqlFindRepairedAt() string
	GetSqlUpsertRepairedAt() string
	GetSqlFindCompactedAt() string
	GetSqlUpsertCompactedAt() string
	GetSqlInsertLock() string
	GetSqlDeleteLock() string
	GetSqlInsertDelete() string
	GetSqlUpdateDelete() string
	GetSqlPopDeletes() string
	GetSqlFindDelete() string
	GetSqlRemoveDelete() string
	GetSqlCountDeletes() string
	GetSqlTruncateDeletes() string
	// IsDuplicateKey recognizes a primary key violation of the dialect
	IsDuplicateKey(err error) bool
}

type AbstractSqlStore struct {
	SqlGenerator
	DB *sql.DB
}

var (
	_ = store.WatermarkStore(&AbstractSqlStore{})
	_ = store.LockStore(&AbstractSqlStore{})
	_ = store.DeleteQueueStore(&AbstractSqlStore{})
)

func (s *AbstractSqlStore) CreateTables(ctx context.Context) error {
	for _, statement := range sqlutil.SplitStatements(s.GetSqlCreateTables()) {
		if _, err := s.DB.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("create tables: %s: %w", statement, err)
		}
	}
	return nil
}

func (s *AbstractSqlStore) findTime(ctx context.Context, query string, args ...interface{}) (time.Time, bool, error) {
	var t timeValue
	err := s.DB.QueryRowContext(ctx, query, args...).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return t.Time, t.Valid, nil
}

func (s *AbstractSqlStore) GetRepairedAt(ctx context.Context, vid uint32, collection string) (time.Time, bool, error) {
	t, found, err := s.findTime(ctx, s.GetSqlFindRepairedAt(), vid, collection)
	if err != nil {
		return t, false, fmt.Errorf("find repaired_at of %s_%d: %w", collection, vid, err)
	}
	return t, found, nil
}

func (s *AbstractSqlStore) SetRepairedAt(ctx context.Context, vid uint32, collection string, at time.Time) error {
	if _, err := s.DB.ExecContext(ctx, s.GetSqlUpsertRepairedAt(), vid, collection, dbTime(at)); err != nil {
		return fmt.Errorf("upsert repaired_at of %s_%d: %w", collection, vid, err)
	}
	return nil
}

func (s *AbstractSqlStore) GetCompactedAt(ctx context.Context, host string, vid uint32, collection string) (time.Time, bool, error) {
	t, found, err := s.findTime(ctx, s.GetSqlFindCompactedAt(), host, vid, collection)
	if err != nil {
		return t, false, fmt.Errorf("find compacted_at of %s_%d on %s: %w", collection, vid, host, err)
	}
	return t, found, nil
}

func (s *AbstractSqlStore) SetCompactedAt(ctx context.Context, host string, vid uint32, collection string, at time.Time) error {
	if _, err := s.DB.ExecContext(ctx, s.GetSqlUpsertCompactedAt(), host, vid, collection, dbTime(at)); err != nil {
		return fmt.Errorf("upsert compacted_at of %s_%d on %s: %w", collection, vid, host, err)
	}
	return nil
}

// TryLock relies on the primary key: the first insert wins, every other one sees a duplicate key.
func (s *AbstractSqlStore) TryLock(ctx context.Context, vid uint32, collection string, owner string, at time.Time) (bool, error) {
	_, err := s.DB.ExecContext(ctx, s.GetSqlInsertLock(), vid, collection, owner, dbTime(at))
	if err == nil {
		return true, nil
	}
	if s.IsDuplicateKey(err) {
		glog.V(2).Infof("volume %s_%d is locked: %v", collection, vid, err)
		return false, nil
	}
	return false, fmt.Errorf("lock %s_%d: %w", collection, vid, err)
}

func (s *AbstractSqlStore) Unlock(ctx context.Context, vid uint32, collection string) error {
	if _, err := s.DB.ExecContext(ctx, s.GetSqlDeleteLock(), vid, collection); err != nil {
		return fmt.Errorf("unlock %s_%d: %w", collection, vid, err)
	}
	return nil
}

func (s *AbstractSqlStore) InsertDelete(ctx context.Context, item *store.DeleteQueueItem) error {
	_, err := s.DB.ExecContext(ctx, s.GetSqlInsertDelete(),
		item.FileId, item.Collection, item.Replication, item.TryCount,
		dbTime(item.EnqueuedAt), dbTime(item.StatusChange), dbTime(item.RetryAt), item.Exception)
	if err != nil {
		if s.IsDuplicateKey(err) {
			return fmt.Errorf("enqueue %s: already queued: %w", item.FileId, err)
		}
		return fmt.Errorf("enqueue %s: %w", item.FileId, err)
	}
	return nil
}

func (s *AbstractSqlStore) UpdateDelete(ctx context.Context, item *store.DeleteQueueItem) error {
	res, err := s.DB.ExecContext(ctx, s.GetSqlUpdateDelete(),
		item.TryCount, dbTime(item.RetryAt), dbTime(item.StatusChange), item.Exception, item.FileId)
	if err != nil {
		return fmt.Errorf("requeue %s: %w", item.FileId, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("requeue %s: %w", item.FileId, store.ErrNotFound)
	}
	return nil
}

func (s *AbstractSqlStore) PopDeletes(ctx context.Context, now time.Time, limit int) ([]*store.DeleteQueueItem, error) {
	rows, err := s.DB.QueryContext(ctx, s.GetSqlPopDeletes(), dbTime(now), limit)
	if err != nil {
		return nil, fmt.Errorf("pop deletes: %w", err)
	}
	defer rows.Close()

	var items []*store.DeleteQueueItem
	for rows.Next() {
		item, err := scanDeleteQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delete queue: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *AbstractSqlStore) FindDelete(ctx context.Context, fileId string) (*store.DeleteQueueItem, error) {
	row := s.DB.QueryRowContext(ctx, s.GetSqlFindDelete(), fileId)
	item, err := scanDeleteQueueItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find %s in delete queue: %w", fileId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s in delete queue: %w", fileId, err)
	}
	return item, nil
}

func (s *AbstractSqlStore) RemoveDelete(ctx context.Context, fileId string) error {
	if _, err := s.DB.ExecContext(ctx, s.GetSqlRemoveDelete(), fileId); err != nil {
		return fmt.Errorf("dequeue %s: %w", fileId, err)
	}
	return nil
}

func (s *AbstractSqlStore) CountDeletes(ctx context.Context) (count int64, err error) {
	if err = s.DB.QueryRowContext(ctx, s.GetSqlCountDeletes()).Scan(&count); err != nil {
		return 0, fmt.Errorf("count delete queue: %w", err)
	}
	return count, nil
}

func (s *AbstractSqlStore) TruncateDeletes(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, s.GetSqlTruncateDeletes()); err != nil {
		return fmt.Errorf("flush delete queue: %w", err)
	}
	return nil
}

func (s *AbstractSqlStore) Shutdown() {
	if s.DB != nil {
		s.DB.Close()
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDeleteQueueItem(row rowScanner) (*store.DeleteQueueItem, error) {
	var item store.DeleteQueueItem
	var enqueuedAt, statusChange, retryAt timeValue
	var exception sql.NullString
	err := row.Scan(&item.FileId, &item.Collection, &item.Replication, &item.TryCount,
		&enqueuedAt, &statusChange, &retryAt, &exception)
	if err != nil {
		return nil, err
	}
	item.EnqueuedAt = enqueuedAt.Time
	item.StatusChange = statusChange.Time
	item.RetryAt = retryAt.Time
	item.Exception = exception.String
	return &item, nil
}
