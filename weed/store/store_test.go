package store

import (
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brstgt/seaweed-admin/weed/util"
)

type fakeStore struct {
	AdminStore
	name        string
	initPrefix  string
	initialized bool
}

func (s *fakeStore) GetName() string { return s.name }

func (s *fakeStore) Initialize(configuration util.Configuration, prefix string) error {
	s.initPrefix = prefix
	s.initialized = true
	return nil
}

func (s *fakeStore) CreateTables(ctx context.Context) error { return nil }

func withStores(t *testing.T, stores ...AdminStore) {
	saved := Stores
	Stores = stores
	t.Cleanup(func() { Stores = saved })
}

func TestLoadStorePicksEnabledSection(t *testing.T) {
	a, b := &fakeStore{name: "mysql"}, &fakeStore{name: "sqlite"}
	withStores(t, a, b)

	v := viper.New()
	v.Set("sqlite.enabled", true)
	v.Set("mysql.enabled", false)

	s, err := LoadStore(util.NewViperConfiguration(v))
	require.NoError(t, err)
	assert.Same(t, b, s)
	assert.Equal(t, "sqlite.", b.initPrefix)
	assert.False(t, a.initialized)
}

func TestLoadStoreRequiresExactlyOne(t *testing.T) {
	withStores(t, &fakeStore{name: "mysql"}, &fakeStore{name: "postgres"})

	_, err := LoadStore(util.NewViperConfiguration(viper.New()))
	assert.ErrorContains(t, err, "no store enabled")

	v := viper.New()
	v.Set("mysql.enabled", true)
	v.Set("postgres.enabled", true)
	_, err = LoadStore(util.NewViperConfiguration(v))
	assert.ErrorContains(t, err, "more than one store enabled")
}
