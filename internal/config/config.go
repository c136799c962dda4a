// Package config defines the tracker's typed configuration and loads it
// from an optional TOML file, the same way the node configuration in the
// wider Go BitTorrent/chain tooling in this codebase's lineage is loaded:
// a struct with sane zero-config defaults, overlaid by a file when one is
// given. TOML parsing itself (as opposed to the shape of Config) is an
// external collaborator of the tracker core.
package config

import (
	"os"
	"time"

	"github.com/naoina/toml"
	"github.com/pkg/errors"

	"github.com/kirinse/aquatic-go/internal/consts"
)

// AccessListMode selects how the access list treats the info-hashes it
// holds.
type AccessListMode string

const (
	AccessListOff   AccessListMode = "off"
	AccessListAllow AccessListMode = "allow"
	AccessListDeny  AccessListMode = "deny"
)

// CPUPinningDirection controls whether ascending worker indices map to
// ascending or descending core indices.
type CPUPinningDirection string

const (
	DirectionAscending  CPUPinningDirection = "ascending"
	DirectionDescending CPUPinningDirection = "descending"
)

// HyperthreadMapping names the hyperthread layout the pinner assumes. It
// only decides which core indices cpuaffinity.TooManyWorkers rejects;
// hyperthread siblings are never added to a worker's affinity set, which
// is always the single computed core.
type HyperthreadMapping string

const (
	HyperthreadSystem     HyperthreadMapping = "system"
	HyperthreadSplit      HyperthreadMapping = "split"
	HyperthreadSubsequent HyperthreadMapping = "subsequent"
)

// NetworkConfig holds the UDP bind address and socket tuning knobs.
type NetworkConfig struct {
	Address              string `toml:"address"`
	SocketRecvBufferSize int    `toml:"socket_recv_buffer_size"`
	PollEventCapacity    int    `toml:"poll_event_capacity"`
}

// CleaningConfig holds the periodic sweep intervals and record lifetimes.
type CleaningConfig struct {
	Interval          int `toml:"interval"`
	MaxPeerAge        int `toml:"max_peer_age"`
	MaxConnectionAge  int `toml:"max_connection_age"`
}

// HandlersConfig holds announce/scrape response tuning knobs.
type HandlersConfig struct {
	MaxPeersReturned  int `toml:"max_peers_returned"`
	DefaultNumWant    int `toml:"default_num_want"`
	AnnounceInterval  int `toml:"announce_interval"`
}

// AccessListConfig configures the info-hash allow/deny set.
type AccessListConfig struct {
	Mode            AccessListMode `toml:"mode"`
	Path            string         `toml:"path"`
	ReloadInterval  int            `toml:"reload_interval"`
}

// CPUPinningConfig configures worker-to-core affinity (§4.7 / C7).
type CPUPinningConfig struct {
	Active      bool                `toml:"active"`
	Direction   CPUPinningDirection `toml:"direction"`
	CoreOffset  int                 `toml:"core_offset"`
	Hyperthread HyperthreadMapping  `toml:"hyperthread"`
}

// PrivilegesConfig configures the optional chroot/user drop. The tracker
// core only carries the struct; applying it is an external collaborator.
type PrivilegesConfig struct {
	ChrootPath string `toml:"chroot_path"`
	User       string `toml:"user"`
}

// Config is the full set of recognized tracker options from spec.md §6.
type Config struct {
	SocketWorkers int              `toml:"socket_workers"`
	Network       NetworkConfig    `toml:"network"`
	Cleaning      CleaningConfig   `toml:"cleaning"`
	Handlers      HandlersConfig   `toml:"handlers"`
	AccessList    AccessListConfig `toml:"access_list"`
	CPUPinning    CPUPinningConfig `toml:"cpu_pinning"`
	Privileges    PrivilegesConfig `toml:"privileges"`
}

// Default returns a Config populated with the defaults from spec.md §6.
func Default() *Config {
	return &Config{
		SocketWorkers: 0, // 0 means "use CPU count", resolved at startup.
		Network: NetworkConfig{
			Address:              "0.0.0.0:3000",
			SocketRecvBufferSize: 256 * 1024,
			PollEventCapacity:    4096,
		},
		Cleaning: CleaningConfig{
			Interval:         60,
			MaxPeerAge:       1200,
			MaxConnectionAge: 120,
		},
		Handlers: HandlersConfig{
			MaxPeersReturned: 100,
			DefaultNumWant:   50,
			AnnounceInterval: 900,
		},
		AccessList: AccessListConfig{
			Mode:           AccessListOff,
			ReloadInterval: 60,
		},
		CPUPinning: CPUPinningConfig{
			Active:      false,
			Direction:   DirectionAscending,
			Hyperthread: HyperthreadSystem,
		},
	}
}

// CleaningIntervalDuration is config.Cleaning.Interval as a time.Duration.
func (c *Config) CleaningIntervalDuration() time.Duration {
	return time.Duration(c.Cleaning.Interval) * time.Second
}

// MaxPeerAgeDuration is config.Cleaning.MaxPeerAge as a time.Duration.
func (c *Config) MaxPeerAgeDuration() time.Duration {
	return time.Duration(c.Cleaning.MaxPeerAge) * time.Second
}

// MaxConnectionAgeDuration is config.Cleaning.MaxConnectionAge as a
// time.Duration.
func (c *Config) MaxConnectionAgeDuration() time.Duration {
	return time.Duration(c.Cleaning.MaxConnectionAge) * time.Second
}

// Load reads a TOML config file at path and overlays it onto the defaults.
// An empty path returns the defaults unchanged, matching the teacher's
// convention that the tracker always has a workable zero-config state.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open config %s", path)
	}
	defer f.Close()

	if err := toml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, errors.Wrapf(err, "decode config %s", path)
	}
	return cfg, validate(cfg)
}

func validate(cfg *Config) error {
	if cfg.Handlers.MaxPeersReturned <= 0 {
		return errors.Wrap(consts.ErrInvalidConfig, "handlers.max_peers_returned must be positive")
	}
	if cfg.Cleaning.MaxConnectionAge <= 0 {
		return errors.Wrap(consts.ErrInvalidConfig, "cleaning.max_connection_age must be positive")
	}
	switch cfg.AccessList.Mode {
	case AccessListOff, AccessListAllow, AccessListDeny:
	default:
		return errors.Wrapf(consts.ErrInvalidConfig, "access_list.mode %q unrecognized", cfg.AccessList.Mode)
	}
	return nil
}
