package operation

import (
	"errors"
	"fmt"
)

var ErrUndefinedCollection = errors.New("undefined collection")

// Collections holds the configured replication and ttl per collection.
type Collections struct {
	Replication map[string]string
	Ttl         map[string]string
}

func (c *Collections) ReplicationOf(collection string) (string, error) {
	replication, found := c.Replication[collection]
	if !found {
		return "", fmt.Errorf("%w %q", ErrUndefinedCollection, collection)
	}
	return replication, nil
}

// ReplicaCountOf is the number of physical copies a volume of the collection must have.
func (c *Collections) ReplicaCountOf(collection string) (int, error) {
	replication, err := c.ReplicationOf(collection)
	if err != nil {
		return 0, err
	}
	return ReplicaCount(replication)
}

func (c *Collections) TtlOf(collection string) string {
	return c.Ttl[collection]
}
