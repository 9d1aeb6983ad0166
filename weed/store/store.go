package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/brstgt/seaweed-admin/weed/util"
)

var ErrNotFound = errors.New("not found")

// WatermarkStore remembers when a volume was last repaired or compacted.
type WatermarkStore interface {
	GetRepairedAt(ctx context.Context, vid uint32, collection string) (time.Time, bool, error)
	SetRepairedAt(ctx context.Context, vid uint32, collection string, at time.Time) error
	GetCompactedAt(ctx context.Context, host string, vid uint32, collection string) (time.Time, bool, error)
	SetCompactedAt(ctx context.Context, host string, vid uint32, collection string, at time.Time) error
}

// LockStore provides one compaction lock per (volume, collection).
// TryLock returns false when somebody else holds the lock.
type LockStore interface {
	TryLock(ctx context.Context, vid uint32, collection string, owner string, at time.Time) (bool, error)
	Unlock(ctx context.Context, vid uint32, collection string) error
}

type DeleteQueueItem struct {
	FileId       string
	Collection   string
	Replication  string
	TryCount     int
	EnqueuedAt   time.Time
	StatusChange time.Time
	RetryAt      time.Time
	Exception    string
}

type DeleteQueueStore interface {
	InsertDelete(ctx context.Context, item *DeleteQueueItem) error
	UpdateDelete(ctx context.Context, item *DeleteQueueItem) error
	PopDeletes(ctx context.Context, now time.Time, limit int) ([]*DeleteQueueItem, error)
	FindDelete(ctx context.Context, fileId string) (*DeleteQueueItem, error)
	RemoveDelete(ctx context.Context, fileId string) error
	CountDeletes(ctx context.Context) (int64, error)
	TruncateDeletes(ctx context.Context) error
}

type AdminStore interface {
	// GetName gets the name to locate the configuration in admin.toml file
	GetName() string
	// Initialize initializes the store from the configuration section prefix
	Initialize(configuration util.Configuration, prefix string) error
	// CreateTables creates all tables if they do not exist yet
	CreateTables(ctx context.Context) error
	WatermarkStore
	LockStore
	DeleteQueueStore
	Shutdown()
}

var (
	Stores []AdminStore
)

// LoadStore initializes the single store section marked enabled in the configuration.
func LoadStore(configuration util.Configuration) (AdminStore, error) {
	var enabled []AdminStore
	for _, store := range Stores {
		if configuration.GetBool(store.GetName() + ".enabled") {
			enabled = append(enabled, store)
		}
	}
	switch len(enabled) {
	case 0:
		return nil, fmt.Errorf("no store enabled, configure one of the sections [mysql], [postgres] or [sqlite]")
	case 1:
	default:
		return nil, fmt.Errorf("more than one store enabled: %s and %s", enabled[0].GetName(), enabled[1].GetName())
	}

	store := enabled[0]
	if err := store.Initialize(configuration, store.GetName()+"."); err != nil {
		return nil, fmt.Errorf("initialize store %s: %w", store.GetName(), err)
	}
	glog.V(0).Infof("configured store %s", store.GetName())
	return store, nil
}
