package operation

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/golang/glog"

	util_http "github.com/brstgt/seaweed-admin/weed/util/http"
)

var ErrConnect = errors.New("could not connect to any master")

const LookupCacheTtl = 10 * time.Second

// MasterClient talks to the configured masters, falling over to the next
// one whenever a master cannot be reached at all.
type MasterClient struct {
	masters    []string
	httpClient *util_http.HttpClient
	vidCache   *VidCache
}

func NewMasterClient(httpClient *util_http.HttpClient, masters []string) *MasterClient {
	return &MasterClient{
		masters:    masters,
		httpClient: httpClient,
		vidCache:   NewVidCache(LookupCacheTtl),
	}
}

func (mc *MasterClient) Close() {
	mc.vidCache.Stop()
}

// masterGet sends the request to each master in turn. Only connection
// failures move on to the next master; HTTP errors are returned as is.
func (mc *MasterClient) masterGet(ctx context.Context, path string, values url.Values, v interface{}) error {
	if len(mc.masters) == 0 {
		return fmt.Errorf("no master configured: %w", ErrConnect)
	}
	for _, master := range mc.masters {
		err := mc.getFrom(ctx, master, path, values, v)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !util_http.IsConnectError(err) {
			return err
		}
		glog.V(1).Infof("master %s unreachable: %v", master, err)
	}
	return ErrConnect
}

func (mc *MasterClient) getFrom(ctx context.Context, master, path string, values url.Values, v interface{}) error {
	u := NormalizeUrl(master) + path
	if len(values) > 0 {
		u += "?" + values.Encode()
	}
	return mc.httpClient.GetJson(ctx, u, v)
}

type ClusterStatusResult struct {
	IsLeader bool     `json:"IsLeader,omitempty"`
	Leader   string   `json:"Leader,omitempty"`
	Peers    []string `json:"Peers,omitempty"`
}

func (mc *MasterClient) ClusterStatus(ctx context.Context) (*ClusterStatusResult, error) {
	var ret ClusterStatusResult
	if err := mc.masterGet(ctx, "/cluster/status", nil, &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

type DataNodeInfo struct {
	Url       string `json:"Url"`
	PublicUrl string `json:"PublicUrl"`
	Volumes   int    `json:"Volumes"`
	Max       int    `json:"Max"`
	Free      int    `json:"Free"`
}

type RackInfo struct {
	Id        string          `json:"Id"`
	DataNodes []*DataNodeInfo `json:"DataNodes"`
}

type DataCenterInfo struct {
	Id    string      `json:"Id"`
	Racks []*RackInfo `json:"Racks"`
}

type TopologyInfo struct {
	Max         int               `json:"Max"`
	Free        int               `json:"Free"`
	DataCenters []*DataCenterInfo `json:"DataCenters"`
}

type DirStatusResult struct {
	Version  string       `json:"Version"`
	Topology TopologyInfo `json:"Topology"`
}

// DirStatus reads the topology from one specific master, usually the leader.
func (mc *MasterClient) DirStatus(ctx context.Context, master string) (*DirStatusResult, error) {
	var ret DirStatusResult
	if err := mc.getFrom(ctx, master, "/dir/status", nil, &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

// Grow asks the master to pre-allocate count volumes for a collection.
func (mc *MasterClient) Grow(ctx context.Context, collection, replication string, count int) error {
	values := make(url.Values)
	values.Add("count", strconv.Itoa(count))
	if collection != "" {
		values.Add("collection", collection)
	}
	if replication != "" {
		values.Add("replication", replication)
	}
	var ret map[string]interface{}
	return mc.masterGet(ctx, "/vol/grow", values, &ret)
}

func NormalizeUrl(server string) string {
	if len(server) > 7 && (server[:7] == "http://" || (len(server) > 8 && server[:8] == "https://")) {
		return server
	}
	return "http://" + server
}
