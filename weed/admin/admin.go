package admin

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/brstgt/seaweed-admin/weed/operation"
	"github.com/brstgt/seaweed-admin/weed/remote"
	"github.com/brstgt/seaweed-admin/weed/store"
)

var (
	ErrUndefinedCollection = operation.ErrUndefinedCollection
	ErrVolumeNotFound      = errors.New("volume not found on server")
)

const (
	DefaultVolumePort = 8080
	DefaultDataRoot   = "/weedfs/"
	// MaxVolumeFileSize is the size above which a .dat file is considered broken.
	MaxVolumeFileSize = 32 * 1024 * 1024 * 1024
)

var DefaultSkipCollections = []string{"", "unittest"}

type MasterAPI interface {
	ClusterStatus(ctx context.Context) (*operation.ClusterStatusResult, error)
	DirStatus(ctx context.Context, master string) (*operation.DirStatusResult, error)
}

type VolumeServerAPI interface {
	Status(ctx context.Context, server string) (*operation.VolumeServerStatusResult, error)
	DiskStats(ctx context.Context, server string) (*operation.DiskStatsResult, error)
	Mount(ctx context.Context, server string, vid uint32) error
	Unmount(ctx context.Context, server string, vid uint32) error
	Retrieve(ctx context.Context, server, fid string) ([]byte, error)
	LastModified(ctx context.Context, server, fid string) (time.Time, error)
	Store(ctx context.Context, server, fid string, request *operation.StoreRequest) error
}

type AdminStore interface {
	store.WatermarkStore
	store.LockStore
}

type AdminOption struct {
	Master       MasterAPI
	VolumeServer VolumeServerAPI
	Store        AdminStore
	Shells       *remote.Pool
	Collections  *operation.Collections

	SkipCollections []string
	VolumePort      int
	DataRoot        string
	// ExportLocation is the time zone the remote weed export parses -newer in.
	ExportLocation *time.Location

	Workers      int
	DryRun       bool
	CreateBackup bool
	// LockRetryWait is the pause before deferred volumes are tried again.
	LockRetryWait time.Duration
	// AlivePollInterval is the pause between checks while waiting for a volume server.
	AlivePollInterval time.Duration

	Now func() time.Time
}

// Admin bundles the collaborators every maintenance operation needs.
// It is not safe for concurrent use; workers get their own copy via forWorker.
type Admin struct {
	option *AdminOption
	shells *remote.Pool
}

func NewAdmin(option *AdminOption) *Admin {
	if option.VolumePort == 0 {
		option.VolumePort = DefaultVolumePort
	}
	if option.DataRoot == "" {
		option.DataRoot = DefaultDataRoot
	}
	if option.SkipCollections == nil {
		option.SkipCollections = DefaultSkipCollections
	}
	if option.ExportLocation == nil {
		option.ExportLocation = time.Local
	}
	if option.LockRetryWait == 0 {
		option.LockRetryWait = 10 * time.Second
	}
	if option.AlivePollInterval == 0 {
		option.AlivePollInterval = 5 * time.Second
	}
	if option.Now == nil {
		option.Now = time.Now
	}
	if option.Collections == nil {
		option.Collections = &operation.Collections{}
	}
	return &Admin{option: option, shells: option.Shells}
}

// forWorker shares everything but the remote shells, which are reconnected per worker.
func (a *Admin) forWorker() *Admin {
	return &Admin{option: a.option, shells: a.shells.Fork()}
}

func (a *Admin) Close() error {
	if a.shells == nil {
		return nil
	}
	return a.shells.Close()
}

func (a *Admin) now() time.Time {
	return a.option.Now()
}

func (a *Admin) isSkipped(collection string) bool {
	for _, c := range a.option.SkipCollections {
		if c == collection {
			return true
		}
	}
	return false
}

func (a *Admin) shellFor(server string) (remote.Shell, error) {
	return a.shells.ForHost(HostName(server))
}

// HostName strips scheme and port from a volume server address.
func HostName(server string) string {
	if u, err := url.Parse(operation.NormalizeUrl(server)); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return server
}

// ServerAddress is the volume server address for a host name.
func (a *Admin) ServerAddress(host string) string {
	return "http://" + host + ":" + strconv.Itoa(a.option.VolumePort)
}

func logPrefix(vid uint32, collection string) string {
	return fmt.Sprintf("(%s/%d) ", collection, vid)
}
