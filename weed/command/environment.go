package command

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/brstgt/seaweed-admin/weed/admin"
	"github.com/brstgt/seaweed-admin/weed/blob"
	"github.com/brstgt/seaweed-admin/weed/deletequeue"
	"github.com/brstgt/seaweed-admin/weed/operation"
	"github.com/brstgt/seaweed-admin/weed/remote"
	"github.com/brstgt/seaweed-admin/weed/store"
	_ "github.com/brstgt/seaweed-admin/weed/store/mysql"
	_ "github.com/brstgt/seaweed-admin/weed/store/postgres"
	_ "github.com/brstgt/seaweed-admin/weed/store/sqlite"
	"github.com/brstgt/seaweed-admin/weed/util"
	util_http "github.com/brstgt/seaweed-admin/weed/util/http"
)

const configName = "admin"

func setDefaults(configuration util.Configuration) {
	configuration.SetDefault("master.addresses", []string{"localhost:9333"})
	configuration.SetDefault("http.timeout", "60s")
	configuration.SetDefault("volume.port", admin.DefaultVolumePort)
	configuration.SetDefault("volume.data_root", admin.DefaultDataRoot)
	configuration.SetDefault("volume.export_timezone", "Local")
	configuration.SetDefault("ssh.port", 22)
	configuration.SetDefault("ssh.user", "root")
	configuration.SetDefault("ssh.key_file", "~/.ssh/id_rsa")
	configuration.SetDefault("ssh.timeout", "10s")
}

// environment holds the clients shared by all subcommands.
type environment struct {
	configuration util.Configuration
	httpClient    *util_http.HttpClient
	master        *operation.MasterClient
	volumeServer  *operation.VolumeServerClient
	collections   *operation.Collections
	store         store.AdminStore
	shells        *remote.Pool
}

// loadEnvironment reads admin.toml. Remote shells are only set up withShells,
// commands talking http only do not need an ssh key.
func loadEnvironment(withShells bool) (*environment, error) {
	util.LoadConfiguration(configName, false)
	return newEnvironment(util.GetViper(), withShells)
}

func newEnvironment(configuration util.Configuration, withShells bool) (*environment, error) {
	setDefaults(configuration)

	collections, err := loadCollections(configuration)
	if err != nil {
		return nil, err
	}

	httpClient := util_http.NewHttpClient(httpClientOptions(configuration)...)
	env := &environment{
		configuration: configuration,
		httpClient:    httpClient,
		master:        operation.NewMasterClient(httpClient, configuration.GetStringSlice("master.addresses")),
		volumeServer:  operation.NewVolumeServerClient(httpClient),
		collections:   collections,
	}

	if env.store, err = store.LoadStore(configuration); err != nil {
		env.Close()
		return nil, err
	}

	if !withShells {
		return env, nil
	}
	dial, err := remote.SSHDialer(sshConfig(configuration))
	if err != nil {
		env.Close()
		return nil, err
	}
	env.shells = remote.NewPool(dial)
	return env, nil
}

func httpClientOptions(configuration util.Configuration) []util_http.HttpClientOpt {
	opts := []util_http.HttpClientOpt{
		util_http.AddDialContext,
		util_http.WithTimeout(configuration.GetDuration("http.timeout")),
	}
	if configuration.GetBool("http.https") {
		opts = append(opts, util_http.WithHttps(&tls.Config{
			InsecureSkipVerify: configuration.GetBool("http.insecure_skip_verify"),
		}))
	}
	return opts
}

// loadCollections reads the [collections] replication table and the optional [ttl] table.
func loadCollections(configuration util.Configuration) (*operation.Collections, error) {
	collections := &operation.Collections{
		Replication: configuration.GetStringMapString("collections"),
		Ttl:         configuration.GetStringMapString("ttl"),
	}
	for name, replication := range collections.Replication {
		if _, err := operation.ReplicaCount(replication); err != nil {
			return nil, fmt.Errorf("collection %q: %w", name, err)
		}
	}
	if len(collections.Replication) == 0 {
		glog.Warningf("no collections configured, replica checks will skip every volume")
	}
	return collections, nil
}

func sshConfig(configuration util.Configuration) *remote.SSHConfig {
	return &remote.SSHConfig{
		User:           configuration.GetString("ssh.user"),
		Port:           configuration.GetInt("ssh.port"),
		KeyFile:        configuration.GetString("ssh.key_file"),
		KnownHostsFile: configuration.GetString("ssh.known_hosts"),
		SudoUser:       configuration.GetString("ssh.sudo_user"),
		Timeout:        configuration.GetDuration("ssh.timeout"),
	}
}

func (env *environment) exportLocation() *time.Location {
	name := env.configuration.GetString("volume.export_timezone")
	location, err := time.LoadLocation(name)
	if err != nil {
		glog.Warningf("volume.export_timezone %q: %v, using local time", name, err)
		return time.Local
	}
	return location
}

func (env *environment) newAdmin(option *admin.AdminOption) *admin.Admin {
	option.Master = env.master
	option.VolumeServer = env.volumeServer
	option.Store = env.store
	option.Shells = env.shells
	option.Collections = env.collections
	option.VolumePort = env.configuration.GetInt("volume.port")
	option.DataRoot = env.configuration.GetString("volume.data_root")
	option.ExportLocation = env.exportLocation()
	return admin.NewAdmin(option)
}

func (env *environment) newDeleteQueue() *deletequeue.Queue {
	return deletequeue.NewQueue(env.store)
}

func (env *environment) newStorage(queue *deletequeue.Queue) *blob.Storage {
	return blob.NewStorage(&blob.StorageOption{
		Master:        env.master,
		VolumeServer:  env.volumeServer,
		Collections:   env.collections,
		Queue:         queue,
		InvalidateUrl: env.configuration.GetString("frontend.invalidate_url"),
		FrontendUrl:   env.configuration.GetString("frontend.url"),
		HttpClient:    env.httpClient,
	})
}

func (env *environment) Close() {
	if env.shells != nil {
		if err := env.shells.Close(); err != nil {
			glog.V(1).Infof("close ssh connections: %v", err)
		}
	}
	if env.store != nil {
		env.store.Shutdown()
	}
	if env.master != nil {
		env.master.Close()
	}
}
