package admin

import (
	"context"
	"sort"

	"github.com/golang/glog"

	"github.com/brstgt/seaweed-admin/weed/operation"
)

// Replica is one physical copy of a volume on a volume server.
type Replica struct {
	Server string
	Volume *operation.VolumeInformation
}

// VolumeDistribution maps volume id to collection to the replicas found in the cluster.
type VolumeDistribution map[uint32]map[string][]*Replica

func (d VolumeDistribution) add(server string, volume *operation.VolumeInformation) {
	collections, found := d[volume.Id]
	if !found {
		collections = make(map[string][]*Replica)
		d[volume.Id] = collections
	}
	collections[volume.Collection] = append(collections[volume.Collection], &Replica{Server: server, Volume: volume})
}

func (d VolumeDistribution) VolumeIds() []uint32 {
	ids := make([]uint32, 0, len(d))
	for vid := range d {
		ids = append(ids, vid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Collections of one volume id, sorted.
func (d VolumeDistribution) Collections(vid uint32) []string {
	collections := make([]string, 0, len(d[vid]))
	for collection := range d[vid] {
		collections = append(collections, collection)
	}
	sort.Strings(collections)
	return collections
}

// Each visits every (volume, collection) in volume id then collection order.
func (d VolumeDistribution) Each(fn func(vid uint32, collection string, replicas []*Replica)) {
	for _, vid := range d.VolumeIds() {
		for _, collection := range d.Collections(vid) {
			fn(vid, collection, d[vid][collection])
		}
	}
}

func (d VolumeDistribution) Servers(vid uint32, collection string) []string {
	var servers []string
	for _, replica := range d[vid][collection] {
		servers = append(servers, replica.Server)
	}
	return servers
}

func (a *Admin) leader(ctx context.Context) (string, error) {
	status, err := a.option.Master.ClusterStatus(ctx)
	if err != nil {
		return "", err
	}
	return status.Leader, nil
}

// MasterServers returns the leader followed by its peers.
func (a *Admin) MasterServers(ctx context.Context) ([]string, error) {
	status, err := a.option.Master.ClusterStatus(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{status.Leader: true}
	masters := []string{status.Leader}
	for _, peer := range status.Peers {
		if !seen[peer] {
			seen[peer] = true
			masters = append(masters, peer)
		}
	}
	return masters, nil
}

// VolumeServers lists the volume servers known to the leader, sorted.
func (a *Admin) VolumeServers(ctx context.Context) ([]string, error) {
	leader, err := a.leader(ctx)
	if err != nil {
		return nil, err
	}
	return a.VolumeServersOnMaster(ctx, leader)
}

func (a *Admin) VolumeServersOnMaster(ctx context.Context, master string) ([]string, error) {
	glog.V(1).Infof("get volume servers on %s", master)
	status, err := a.option.Master.DirStatus(ctx, master)
	if err != nil {
		return nil, err
	}
	var servers []string
	for _, dc := range status.Topology.DataCenters {
		for _, rack := range dc.Racks {
			for _, node := range rack.DataNodes {
				servers = append(servers, operation.NormalizeUrl(node.Url))
			}
		}
	}
	sort.Strings(servers)
	return servers, nil
}

func (a *Admin) VolumesOnServer(ctx context.Context, server string) ([]*operation.VolumeInformation, error) {
	glog.V(1).Infof("get volumes on %s", server)
	status, err := a.option.VolumeServer.Status(ctx, server)
	if err != nil {
		return nil, err
	}
	return status.Volumes, nil
}

// Discover builds the volume distribution of the whole cluster. A volume server
// that does not answer is logged and left out.
func (a *Admin) Discover(ctx context.Context) (VolumeDistribution, error) {
	servers, err := a.VolumeServers(ctx)
	if err != nil {
		return nil, err
	}
	distribution := make(VolumeDistribution)
	for _, server := range servers {
		volumes, err := a.VolumesOnServer(ctx, server)
		if err != nil {
			glog.Errorf("list volumes on %s: %v", server, err)
			continue
		}
		for _, volume := range volumes {
			distribution.add(server, volume)
		}
	}
	return distribution, nil
}

func (a *Admin) ServersForVolume(ctx context.Context, vid uint32, collection string) ([]string, error) {
	distribution, err := a.Discover(ctx)
	if err != nil {
		return nil, err
	}
	return distribution.Servers(vid, collection), nil
}
