package operation

import (
	"fmt"
)

// ReplicaPlacement is the xyz replication string of a collection:
// x copies in other data centers, y on other racks, z on the same rack.
type ReplicaPlacement struct {
	SameRackCount       int `json:"node,omitempty"`
	DiffRackCount       int `json:"rack,omitempty"`
	DiffDataCenterCount int `json:"dc,omitempty"`
}

func NewReplicaPlacementFromString(t string) (*ReplicaPlacement, error) {
	rp := &ReplicaPlacement{}
	switch len(t) {
	case 0:
		t = "000"
	case 1:
		t = "00" + t
	case 2:
		t = "0" + t
	}
	if len(t) != 3 {
		return rp, fmt.Errorf("unknown replication type: %s", t)
	}
	for i, c := range t {
		count := int(c - '0')
		if count < 0 || count > 9 {
			return rp, fmt.Errorf("unknown replication type: %s", t)
		}
		switch i {
		case 0:
			rp.DiffDataCenterCount = count
		case 1:
			rp.DiffRackCount = count
		case 2:
			rp.SameRackCount = count
		}
	}
	return rp, nil
}

func (rp *ReplicaPlacement) String() string {
	b := make([]byte, 3)
	b[0] = byte(rp.DiffDataCenterCount + '0')
	b[1] = byte(rp.DiffRackCount + '0')
	b[2] = byte(rp.SameRackCount + '0')
	return string(b)
}

// GetCopyCount is the number of physical replicas a volume should have.
func (rp *ReplicaPlacement) GetCopyCount() int {
	return rp.DiffDataCenterCount + rp.DiffRackCount + rp.SameRackCount + 1
}

// ReplicaCount parses a replication string and returns its copy count.
func ReplicaCount(replication string) (int, error) {
	rp, err := NewReplicaPlacementFromString(replication)
	if err != nil {
		return 0, err
	}
	return rp.GetCopyCount(), nil
}
