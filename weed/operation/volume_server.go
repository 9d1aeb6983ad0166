package operation

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	util_http "github.com/brstgt/seaweed-admin/weed/util/http"
)

// VolumeInformation is one volume as reported by a volume server's /status.
type VolumeInformation struct {
	Id               uint32 `json:"Id"`
	Size             uint64 `json:"Size"`
	Collection       string `json:"Collection"`
	Version          int    `json:"Version"`
	FileCount        int64  `json:"FileCount"`
	DeleteCount      int64  `json:"DeleteCount"`
	DeletedByteCount uint64 `json:"DeletedByteCount"`
	ReadOnly         bool   `json:"ReadOnly"`
}

func (vi *VolumeInformation) String() string {
	return fmt.Sprintf("Id:%d, Size:%d, Collection:%s, FileCount:%d, DeleteCount:%d, DeletedByteCount:%d, ReadOnly:%v",
		vi.Id, vi.Size, vi.Collection, vi.FileCount, vi.DeleteCount, vi.DeletedByteCount, vi.ReadOnly)
}

func (vi *VolumeInformation) LiveSize() uint64 {
	if vi.DeletedByteCount >= vi.Size {
		return 0
	}
	return vi.Size - vi.DeletedByteCount
}

func (vi *VolumeInformation) LiveFileCount() int64 {
	if vi.DeleteCount >= vi.FileCount {
		return 0
	}
	return vi.FileCount - vi.DeleteCount
}

// GarbageRatio is the share of deleted files, 0 for an empty volume.
func (vi *VolumeInformation) GarbageRatio() float64 {
	if vi.FileCount <= 0 {
		return 0
	}
	return float64(vi.DeleteCount) / float64(vi.FileCount)
}

type VolumeServerStatusResult struct {
	Version string               `json:"Version"`
	Volumes []*VolumeInformation `json:"Volumes"`
}

type DiskStatus struct {
	Dir         string  `json:"Dir"`
	All         uint64  `json:"All"`
	Used        uint64  `json:"Used"`
	Free        uint64  `json:"Free"`
	PercentFree float32 `json:"PercentFree"`
	PercentUsed float32 `json:"PercentUsed"`
}

type DiskStatsResult struct {
	Version      string        `json:"Version"`
	DiskStatuses []*DiskStatus `json:"DiskStatuses"`
}

// VolumeServerClient wraps the admin and needle endpoints of volume servers.
// Server arguments are base addresses such as http://host:8080.
type VolumeServerClient struct {
	httpClient *util_http.HttpClient
}

func NewVolumeServerClient(httpClient *util_http.HttpClient) *VolumeServerClient {
	return &VolumeServerClient{httpClient: httpClient}
}

func (c *VolumeServerClient) Status(ctx context.Context, server string) (*VolumeServerStatusResult, error) {
	var ret VolumeServerStatusResult
	if err := c.httpClient.GetJson(ctx, NormalizeUrl(server)+"/status", &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

func (c *VolumeServerClient) DiskStats(ctx context.Context, server string) (*DiskStatsResult, error) {
	var ret DiskStatsResult
	if err := c.httpClient.GetJson(ctx, NormalizeUrl(server)+"/stats/disk", &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

func (c *VolumeServerClient) volumeAdmin(ctx context.Context, server, action string, vid uint32) error {
	values := make(url.Values)
	values.Add("volume", strconv.FormatUint(uint64(vid), 10))
	u := NormalizeUrl(server) + "/admin/volume/" + action + "?" + values.Encode()
	if _, err := c.httpClient.Get(ctx, u); err != nil {
		return fmt.Errorf("%s volume %d on %s: %w", action, vid, server, err)
	}
	return nil
}

func (c *VolumeServerClient) Mount(ctx context.Context, server string, vid uint32) error {
	return c.volumeAdmin(ctx, server, "mount", vid)
}

func (c *VolumeServerClient) Unmount(ctx context.Context, server string, vid uint32) error {
	return c.volumeAdmin(ctx, server, "unmount", vid)
}

func (c *VolumeServerClient) DeleteVolume(ctx context.Context, server string, vid uint32) error {
	return c.volumeAdmin(ctx, server, "delete", vid)
}
