package blob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/brstgt/seaweed-admin/weed/deletequeue"
	"github.com/brstgt/seaweed-admin/weed/operation"
	"github.com/brstgt/seaweed-admin/weed/stats"
	util_http "github.com/brstgt/seaweed-admin/weed/util/http"
)

const (
	invalidateTimeout = time.Second
	// volumes added to a collection that ran out of writable ones
	growCount = 1
)

type Master interface {
	Assign(ctx context.Context, request *operation.VolumeAssignRequest) (*operation.AssignResult, error)
	Lookup(ctx context.Context, vid string, collection string) (*operation.LookupResult, error)
	RawLookup(ctx context.Context, vid string, collection string) (*operation.LookupResult, error)
	Grow(ctx context.Context, collection, replication string, count int) error
}

type VolumeServer interface {
	Store(ctx context.Context, server, fid string, request *operation.StoreRequest) error
	Retrieve(ctx context.Context, server, fid string) ([]byte, error)
	Exists(ctx context.Context, server, fid string) (bool, error)
	Delete(ctx context.Context, server, fid string) error
}

type Enqueuer interface {
	Enqueue(ctx context.Context, fid, collection, replication string) error
}

type StorageOption struct {
	Master       Master
	VolumeServer VolumeServer
	Collections  *operation.Collections
	Queue        Enqueuer
	// InvalidateUrl is a format with two %s verbs, the frontend url and the fid.
	InvalidateUrl string
	FrontendUrl   string
	HttpClient    *util_http.HttpClient
}

// Storage is the application facing side of the cluster: it writes with the
// configured replication, reads from any replica and never loses a delete.
type Storage struct {
	option *StorageOption
	safe   *deletequeue.SafeDeleter
}

func NewStorage(option *StorageOption) *Storage {
	return &Storage{
		option: option,
		safe:   deletequeue.NewSafeDeleter(option.Master, option.VolumeServer, option.Collections),
	}
}

func observe(collection, requestType string, start time.Time) {
	stats.BlobRequestCounter.WithLabelValues(collection, requestType).Inc()
	stats.BlobRequestHistogram.WithLabelValues(requestType).Observe(time.Since(start).Seconds())
}

func trackCollection(collection string) string {
	if collection == "" {
		return "unknown"
	}
	return collection
}

// Put assigns a file id in the collection and stores data on the assigned volume server.
func (s *Storage) Put(ctx context.Context, collection, fileName, mimeType string, data []byte) (string, error) {
	start := time.Now()
	replication, err := s.option.Collections.ReplicationOf(collection)
	if err != nil {
		return "", err
	}
	ttl := s.option.Collections.TtlOf(collection)

	request := &operation.VolumeAssignRequest{
		Count:       1,
		Collection:  collection,
		Replication: replication,
		Ttl:         ttl,
	}
	assign, err := s.option.Master.Assign(ctx, request)
	if errors.Is(err, operation.ErrNoWritableVolumes) {
		glog.Warningf("no writable volumes in %s, grow %d", collection, growCount)
		if err = s.option.Master.Grow(ctx, collection, replication, growCount); err == nil {
			assign, err = s.option.Master.Assign(ctx, request)
		}
	}
	if err != nil {
		stats.BlobRequestCounter.WithLabelValues(collection, "exception").Inc()
		return "", fmt.Errorf("assign in %s: %w", collection, err)
	}
	server := assign.PublicUrl
	if server == "" {
		server = assign.Url
	}
	err = s.option.VolumeServer.Store(ctx, server, assign.Fid, &operation.StoreRequest{
		FileName: fileName,
		MimeType: mimeType,
		Data:     data,
		Ttl:      ttl,
	})
	if err != nil {
		stats.BlobRequestCounter.WithLabelValues(collection, "exception").Inc()
		return "", err
	}
	observe(collection, "put", start)
	return assign.Fid, nil
}

// Get reads the file from the first replica that answers.
func (s *Storage) Get(ctx context.Context, fid, collection string) ([]byte, error) {
	start := time.Now()
	servers, err := s.locate(ctx, fid, collection)
	if err != nil {
		return nil, err
	}
	var lastErr error
	for _, server := range servers {
		data, err := s.option.VolumeServer.Retrieve(ctx, server, fid)
		if err == nil {
			observe(trackCollection(collection), "get", start)
			return data, nil
		}
		glog.V(2).Infof("get %s from %s: %v", fid, server, err)
		lastErr = err
	}
	stats.BlobRequestCounter.WithLabelValues(trackCollection(collection), "exception").Inc()
	return nil, lastErr
}

// Exists is true when any replica has the file. When none has it, the error
// of a replica that could not be asked is returned.
func (s *Storage) Exists(ctx context.Context, fid, collection string) (bool, error) {
	servers, err := s.locate(ctx, fid, collection)
	if err != nil {
		return false, err
	}
	var lastErr error
	for _, server := range servers {
		found, err := s.option.VolumeServer.Exists(ctx, server, fid)
		if err != nil {
			lastErr = err
			continue
		}
		if found {
			return true, nil
		}
	}
	return false, lastErr
}

func (s *Storage) locate(ctx context.Context, fid, collection string) ([]string, error) {
	vid, _, err := operation.ParseFileId(fid)
	if err != nil {
		return nil, err
	}
	lookup, err := s.option.Master.Lookup(ctx, vid, collection)
	if err != nil {
		return nil, fmt.Errorf("lookup %s in collection %q: %w", fid, collection, err)
	}
	return lookup.Servers(), nil
}

// DeleteNoQueue deletes only if every replica is online, then invalidates the frontend cache.
func (s *Storage) DeleteNoQueue(ctx context.Context, fid, collection string) error {
	start := time.Now()
	if err := s.safe.DeleteNoQueue(ctx, fid, collection); err != nil {
		stats.BlobRequestCounter.WithLabelValues(trackCollection(collection), "exception").Inc()
		return err
	}
	s.Invalidate(ctx, fid)
	observe(trackCollection(collection), "delete", start)
	return nil
}

// Delete falls back to the delete queue when the file cannot be deleted right away.
func (s *Storage) Delete(ctx context.Context, fid, collection string) error {
	deleteErr := s.DeleteNoQueue(ctx, fid, collection)
	if deleteErr == nil {
		return nil
	}
	if errors.Is(deleteErr, operation.ErrUndefinedCollection) {
		return deleteErr
	}
	glog.V(1).Infof("delete %s/%s queued: %v", collection, fid, deleteErr)
	replication, err := s.option.Collections.ReplicationOf(collection)
	if err != nil {
		return err
	}
	return s.option.Queue.Enqueue(ctx, fid, collection, replication)
}

// Invalidate asks the frontend cache to drop fid. Failures are only logged.
func (s *Storage) Invalidate(ctx context.Context, fid string) bool {
	if s.option.InvalidateUrl == "" || s.option.HttpClient == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, invalidateTimeout)
	defer cancel()
	u := fmt.Sprintf(s.option.InvalidateUrl, s.option.FrontendUrl, fid)
	if _, err := s.option.HttpClient.Get(ctx, u); err != nil {
		glog.V(1).Infof("invalidate %s: %v", u, err)
		return false
	}
	return true
}
