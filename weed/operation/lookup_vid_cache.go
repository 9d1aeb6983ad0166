package operation

import (
	"time"

	"github.com/karlseguin/ccache/v2"
)

// VidCache remembers volume locations for a short while so bursts of
// deletes or reads against one volume hit the master only once.
type VidCache struct {
	cache *ccache.Cache
	ttl   time.Duration
}

func NewVidCache(ttl time.Duration) *VidCache {
	return &VidCache{
		cache: ccache.New(ccache.Configure().MaxSize(10000).ItemsToPrune(100)),
		ttl:   ttl,
	}
}

func (vc *VidCache) Get(vid string) ([]Location, bool) {
	item := vc.cache.Get(vid)
	if item == nil || item.Expired() {
		return nil, false
	}
	return item.Value().([]Location), true
}

func (vc *VidCache) Set(vid string, locations []Location) {
	vc.cache.Set(vid, locations, vc.ttl)
}

func (vc *VidCache) Delete(vid string) {
	vc.cache.Delete(vid)
}

func (vc *VidCache) Stop() {
	vc.cache.Stop()
}
