package deletequeue

import (
	"context"
	"errors"
	"fmt"

	"github.com/brstgt/seaweed-admin/weed/operation"
)

var ErrReplicationMismatch = errors.New("required replication count not met")

type VolumeLocator interface {
	RawLookup(ctx context.Context, vid string, collection string) (*operation.LookupResult, error)
}

type FileDeleter interface {
	Delete(ctx context.Context, server, fid string) error
}

// SafeDeleter deletes a file only when every replica of its volume is
// online, so no replica is left behind holding the file.
type SafeDeleter struct {
	locator     VolumeLocator
	files       FileDeleter
	collections *operation.Collections
}

func NewSafeDeleter(locator VolumeLocator, files FileDeleter, collections *operation.Collections) *SafeDeleter {
	return &SafeDeleter{locator: locator, files: files, collections: collections}
}

func (d *SafeDeleter) DeleteNoQueue(ctx context.Context, fid, collection string) error {
	replication, err := d.collections.ReplicationOf(collection)
	if err != nil {
		return err
	}
	return d.DeleteSafe(ctx, fid, replication, collection)
}

// DeleteSafe looks the volume up uncached and deletes on the first location
// when the number of locations equals the replica count of replication.
func (d *SafeDeleter) DeleteSafe(ctx context.Context, fid, replication, collection string) error {
	expected, err := operation.ReplicaCount(replication)
	if err != nil {
		return err
	}
	vid, _, err := operation.ParseFileId(fid)
	if err != nil {
		return err
	}
	lookup, err := d.locator.RawLookup(ctx, vid, collection)
	if err != nil {
		return fmt.Errorf("lookup %s in collection %q: %w", fid, collection, err)
	}
	servers := lookup.Servers()
	if len(servers) != expected {
		return fmt.Errorf("%w for %s/%s, expected %d, got %d", ErrReplicationMismatch, fid, collection, expected, len(servers))
	}
	return d.files.Delete(ctx, servers[0], fid)
}
