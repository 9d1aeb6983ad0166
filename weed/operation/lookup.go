package operation

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

type Location struct {
	Url       string `json:"url,omitempty"`
	PublicUrl string `json:"publicUrl,omitempty"`
}
type LookupResult struct {
	VolumeId  string     `json:"volumeId,omitempty"`
	Locations []Location `json:"locations,omitempty"`
	Error     string     `json:"error,omitempty"`
}

func (lr *LookupResult) String() string {
	return fmt.Sprintf("VolumeId:%s, Locations:%v, Error:%s", lr.VolumeId, lr.Locations, lr.Error)
}

// Servers returns the public volume server addresses, http prefixed.
func (lr *LookupResult) Servers() []string {
	var servers []string
	for _, loc := range lr.Locations {
		addr := loc.PublicUrl
		if addr == "" {
			addr = loc.Url
		}
		servers = append(servers, NormalizeUrl(addr))
	}
	return servers
}

// Lookup resolves a volume id, served from a short lived cache when possible.
func (mc *MasterClient) Lookup(ctx context.Context, vid string, collection string) (*LookupResult, error) {
	if locations, found := mc.vidCache.Get(vid); found {
		return &LookupResult{VolumeId: vid, Locations: locations}, nil
	}
	ret, err := mc.RawLookup(ctx, vid, collection)
	if err != nil {
		return nil, err
	}
	mc.vidCache.Set(vid, ret.Locations)
	return ret, nil
}

func (mc *MasterClient) RawLookup(ctx context.Context, vid string, collection string) (*LookupResult, error) {
	values := make(url.Values)
	values.Add("volumeId", vid)
	if collection != "" {
		values.Add("collection", collection)
	}
	var ret LookupResult
	if err := mc.masterGet(ctx, "/dir/lookup", values, &ret); err != nil {
		return nil, err
	}
	if ret.Error != "" {
		return nil, errors.New(ret.Error)
	}
	if len(ret.Locations) == 0 {
		return nil, fmt.Errorf("volume %s has no locations", vid)
	}
	return &ret, nil
}

// InvalidateLookup drops a cached volume location.
func (mc *MasterClient) InvalidateLookup(vid string) {
	mc.vidCache.Delete(vid)
}

func ParseFileId(fid string) (vid string, key_cookie string, err error) {
	commaIndex := strings.Index(fid, ",")
	if commaIndex <= 0 || commaIndex == len(fid)-1 {
		return "", "", fmt.Errorf("wrong fid format: %q", fid)
	}
	return fid[:commaIndex], fid[commaIndex+1:], nil
}
