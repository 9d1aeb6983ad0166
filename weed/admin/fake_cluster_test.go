package admin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brstgt/seaweed-admin/weed/operation"
	"github.com/brstgt/seaweed-admin/weed/remote"
	"github.com/brstgt/seaweed-admin/weed/store/sqlite"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeNeedle struct {
	record   FileRecord
	modified time.Time
	data     []byte
	// gone needles are listed by export but can no longer be read
	gone bool
}

type fakeVolume struct {
	info    *operation.VolumeInformation
	dir     string
	needles map[string]*fakeNeedle
}

type fakeServer struct {
	host    string
	disks   []string
	volumes map[uint32]*fakeVolume
	// downFor answers that many /status calls with an error
	downFor int
}

// fakeCluster plays master, volume servers and their shells.
type fakeCluster struct {
	mu             sync.Mutex
	servers        map[string]*fakeServer
	commands       map[string][]string
	mounts         []string
	unmounts       []string
	stored         []string
	compactResults map[uint32]*remote.Result
}

func newFakeCluster() *fakeCluster {
	return &fakeCluster{
		servers:        make(map[string]*fakeServer),
		commands:       make(map[string][]string),
		compactResults: make(map[uint32]*remote.Result),
	}
}

func vsAddress(host string) string {
	return "http://" + host + ":8080"
}

func (c *fakeCluster) server(host string, disks ...string) *fakeServer {
	if len(disks) == 0 {
		disks = []string{"/weedfs/1"}
	}
	s := &fakeServer{host: host, disks: disks, volumes: make(map[uint32]*fakeVolume)}
	c.servers[host] = s
	return s
}

func (s *fakeServer) volume(vid uint32, collection, dir string, fileCount int64) *fakeVolume {
	v := &fakeVolume{
		info:    &operation.VolumeInformation{Id: vid, Collection: collection, FileCount: fileCount, Size: 1 << 20},
		dir:     dir,
		needles: make(map[string]*fakeNeedle),
	}
	s.volumes[vid] = v
	return v
}

func (v *fakeVolume) needle(fid string, modified time.Time) *fakeNeedle {
	n := &fakeNeedle{
		record:   FileRecord{FileId: fid, Name: "file-" + fid, Size: int64(len(fid)), Mime: "image/jpeg"},
		modified: modified,
		data:     []byte("data of " + fid),
	}
	v.needles[fid] = n
	return n
}

func (c *fakeCluster) lookup(server string) (*fakeServer, error) {
	s, found := c.servers[HostName(server)]
	if !found {
		return nil, fmt.Errorf("dial %s: connection refused", server)
	}
	return s, nil
}

func (c *fakeCluster) commandsOn(host string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.commands[host]...)
}

func (c *fakeCluster) ClusterStatus(ctx context.Context) (*operation.ClusterStatusResult, error) {
	return &operation.ClusterStatusResult{IsLeader: true, Leader: "m1:9333", Peers: []string{"m2:9333"}}, nil
}

func (c *fakeCluster) DirStatus(ctx context.Context, master string) (*operation.DirStatusResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rack := &operation.RackInfo{Id: "rack1"}
	hosts := make([]string, 0, len(c.servers))
	for host := range c.servers {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	for _, host := range hosts {
		rack.DataNodes = append(rack.DataNodes, &operation.DataNodeInfo{Url: host + ":8080", PublicUrl: host + ":8080"})
	}
	return &operation.DirStatusResult{Topology: operation.TopologyInfo{
		DataCenters: []*operation.DataCenterInfo{{Id: "dc1", Racks: []*operation.RackInfo{rack}}},
	}}, nil
}

func (c *fakeCluster) Status(ctx context.Context, server string) (*operation.VolumeServerStatusResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.lookup(server)
	if err != nil {
		return nil, err
	}
	if s.downFor > 0 {
		s.downFor--
		return nil, fmt.Errorf("dial %s: connection refused", server)
	}
	result := &operation.VolumeServerStatusResult{Version: "30GB 3.59"}
	for _, v := range s.volumes {
		result.Volumes = append(result.Volumes, v.info)
	}
	sort.Slice(result.Volumes, func(i, j int) bool { return result.Volumes[i].Id < result.Volumes[j].Id })
	return result, nil
}

func (c *fakeCluster) DiskStats(ctx context.Context, server string) (*operation.DiskStatsResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.lookup(server)
	if err != nil {
		return nil, err
	}
	result := &operation.DiskStatsResult{}
	for _, dir := range s.disks {
		result.DiskStatuses = append(result.DiskStatuses, &operation.DiskStatus{Dir: dir})
	}
	return result, nil
}

func (c *fakeCluster) Mount(ctx context.Context, server string, vid uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mounts = append(c.mounts, fmt.Sprintf("%s/%d", server, vid))
	return nil
}

func (c *fakeCluster) Unmount(ctx context.Context, server string, vid uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unmounts = append(c.unmounts, fmt.Sprintf("%s/%d", server, vid))
	return nil
}

func (c *fakeCluster) findNeedle(server, fid string) (*fakeNeedle, error) {
	s, err := c.lookup(server)
	if err != nil {
		return nil, err
	}
	for _, v := range s.volumes {
		if n, found := v.needles[fid]; found && !n.gone {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%s/%s: %w", server, fid, operation.ErrNotFound)
}

func (c *fakeCluster) Retrieve(ctx context.Context, server, fid string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.findNeedle(server, fid)
	if err != nil {
		return nil, err
	}
	return n.data, nil
}

func (c *fakeCluster) LastModified(ctx context.Context, server, fid string) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.findNeedle(server, fid)
	if err != nil {
		return time.Time{}, err
	}
	return n.modified, nil
}

func (c *fakeCluster) Store(ctx context.Context, server, fid string, request *operation.StoreRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.lookup(server)
	if err != nil {
		return err
	}
	if !request.NoReplicate {
		return errors.New("repair writes must not replicate")
	}
	volumeId, _, _ := strings.Cut(fid, ",")
	vid, err := strconv.ParseUint(volumeId, 10, 32)
	if err != nil {
		return err
	}
	v, found := s.volumes[uint32(vid)]
	if !found {
		return fmt.Errorf("volume %d not on %s", vid, server)
	}
	v.needles[fid] = &fakeNeedle{
		record:   FileRecord{FileId: fid, Name: request.FileName, Size: int64(len(request.Data)), Mime: request.MimeType},
		modified: request.LastModified,
		data:     request.Data,
	}
	c.stored = append(c.stored, server+"/"+fid)
	return nil
}

type fakeShell struct {
	cluster *fakeCluster
	host    string
}

func (s *fakeShell) Host() string { return s.host }

func flagValue(fields []string, name string) string {
	for i := 0; i+1 < len(fields); i++ {
		if fields[i] == name {
			return strings.Trim(fields[i+1], "'")
		}
	}
	return ""
}

func (s *fakeShell) Execute(ctx context.Context, command string) (*remote.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := s.cluster
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands[s.host] = append(c.commands[s.host], command)
	server, found := c.servers[s.host]
	if !found {
		return nil, fmt.Errorf("ssh %s: no route to host", s.host)
	}

	fields := strings.Fields(command)
	switch {
	case fields[0] == "ls":
		for vid, v := range server.volumes {
			if VolumePath(v.dir, vid, v.info.Collection, "dat") == strings.Trim(fields[1], "'") {
				return &remote.Result{Output: []string{fields[1]}}, nil
			}
		}
		return &remote.Result{ExitCode: 2, Stderr: "No such file or directory"}, nil

	case fields[0] == "find":
		largeOnly := strings.Contains(command, "-size")
		var lines []string
		for vid, v := range server.volumes {
			if largeOnly && v.info.Size <= MaxVolumeFileSize {
				continue
			}
			lines = append(lines, fmt.Sprintf("-rw-r--r-- 1 root root %d May  1 10:00 %s",
				v.info.Size, VolumePath(v.dir, vid, v.info.Collection, "dat")))
		}
		sort.Strings(lines)
		return &remote.Result{Output: lines}, nil

	case len(fields) > 1 && fields[0] == "weed" && fields[1] == "export":
		return server.export(fields)

	case len(fields) > 1 && fields[0] == "weed" && fields[1] == "compact":
		vid, _ := strconv.ParseUint(flagValue(fields, "-volumeId"), 10, 32)
		if result, found := c.compactResults[uint32(vid)]; found {
			return result, nil
		}
		return &remote.Result{Output: []string{"compact volume done"}}, nil

	case len(fields) > 1 && fields[0] == "supervisorctl" && fields[1] == "restart":
		server.downFor = 2
	}
	return &remote.Result{}, nil
}

func (s *fakeServer) export(fields []string) (*remote.Result, error) {
	vid, _ := strconv.ParseUint(flagValue(fields, "-volumeId"), 10, 32)
	v, found := s.volumes[uint32(vid)]
	if !found || v.dir != flagValue(fields, "-dir") || v.info.Collection != flagValue(fields, "-collection") {
		return &remote.Result{ExitCode: 1, Stderr: "volume not found"}, nil
	}
	var newer time.Time
	if value := flagValue(fields, "-newer"); value != "" {
		var err error
		if newer, err = time.ParseInLocation(exportTimeFormat, value, time.UTC); err != nil {
			return &remote.Result{ExitCode: 1, Stderr: err.Error()}, nil
		}
	}
	var lines []string
	for _, n := range v.needles {
		if !newer.IsZero() && !n.modified.After(newer) {
			continue
		}
		lines = append(lines, fmt.Sprintf("key=%s Name=%s Size=%d gzip=false mime=%s",
			n.record.FileId, n.record.Name, n.record.Size, n.record.Mime))
	}
	sort.Strings(lines)
	return &remote.Result{Output: lines}, nil
}

func testCollections() *operation.Collections {
	return &operation.Collections{
		Replication: map[string]string{"pictures": "001", "docs": "010", "unittest": "001", "": "000"},
		Ttl:         map[string]string{"docs": "7d"},
	}
}

func newTestAdmin(t *testing.T, cluster *fakeCluster, store AdminStore, option *AdminOption) *Admin {
	if store == nil {
		s, err := sqlite.Open(":memory:")
		require.NoError(t, err)
		t.Cleanup(s.Shutdown)
		store = s
	}
	if option == nil {
		option = &AdminOption{}
	}
	option.Master = cluster
	option.VolumeServer = cluster
	option.Store = store
	option.Shells = remote.NewPool(func(host string) (remote.Shell, error) {
		return &fakeShell{cluster: cluster, host: host}, nil
	})
	if option.Collections == nil {
		option.Collections = testCollections()
	}
	option.ExportLocation = time.UTC
	option.LockRetryWait = time.Millisecond
	option.AlivePollInterval = time.Millisecond
	option.Now = func() time.Time { return testNow }
	a := NewAdmin(option)
	t.Cleanup(func() { a.Close() })
	return a
}
