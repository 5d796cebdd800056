package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Global settings
	Format  string `mapstructure:"format" yaml:"format"`
	Level   string `mapstructure:"level" yaml:"level"`
	Quiet   bool   `mapstructure:"quiet" yaml:"quiet"`
	Verbose bool   `mapstructure:"verbose" yaml:"verbose"`

	RPC     RPCConfig     `mapstructure:"rpc" yaml:"rpc"`
	Project ProjectConfig `mapstructure:"project" yaml:"project"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
}

// RPCConfig controls the connection to the dune build daemon
type RPCConfig struct {
	// Socket is relative to the project root unless absolute
	Socket         string        `mapstructure:"socket" yaml:"socket"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	ClientName     string        `mapstructure:"client_name" yaml:"client_name"`
	ClientVersion  string        `mapstructure:"client_version" yaml:"client_version"`
	DuneVersion    string        `mapstructure:"dune_version" yaml:"dune_version"`
}

// ProjectConfig describes the source tree being watched
type ProjectConfig struct {
	Root       string   `mapstructure:"root" yaml:"root"`
	SrcDir     string   `mapstructure:"src_dir" yaml:"src_dir"`
	BuildDir   string   `mapstructure:"build_dir" yaml:"build_dir"`
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`
}

// ServerConfig controls the HMR websocket server
type ServerConfig struct {
	// Listen is host:port; empty disables the server
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Format:  "text",
		Level:   "warn",
		Quiet:   false,
		Verbose: false,
		RPC: RPCConfig{
			Socket:         filepath.Join("_build", ".rpc", "dune"),
			ReconnectDelay: 200 * time.Millisecond,
			ClientName:     "dunehmr",
			ClientVersion:  "3",
			DuneVersion:    "3.15",
		},
		Project: ProjectConfig{
			Root:       ".",
			SrcDir:     "src",
			BuildDir:   "_build",
			Extensions: []string{".ml", ".re", ".res", ".mli", ".rei"},
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:24678",
		},
	}
}

// SocketPath resolves the daemon socket against the project root
func (c *Config) SocketPath() string {
	if filepath.IsAbs(c.RPC.Socket) {
		return c.RPC.Socket
	}
	return filepath.Join(c.Project.Root, c.RPC.Socket)
}

// SrcPath resolves the source directory against the project root
func (c *Config) SrcPath() string {
	if filepath.IsAbs(c.Project.SrcDir) {
		return c.Project.SrcDir
	}
	return filepath.Join(c.Project.Root, c.Project.SrcDir)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	// Environment variables, e.g. DUNEHMR_RPC_SOCKET
	v.SetEnvPrefix("DUNEHMR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	cfg := Default()
	v.SetDefault("format", cfg.Format)
	v.SetDefault("level", cfg.Level)
	v.SetDefault("quiet", cfg.Quiet)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("rpc.socket", cfg.RPC.Socket)
	v.SetDefault("rpc.reconnect_delay", cfg.RPC.ReconnectDelay)
	v.SetDefault("rpc.client_name", cfg.RPC.ClientName)
	v.SetDefault("rpc.client_version", cfg.RPC.ClientVersion)
	v.SetDefault("rpc.dune_version", cfg.RPC.DuneVersion)
	v.SetDefault("project.root", cfg.Project.Root)
	v.SetDefault("project.src_dir", cfg.Project.SrcDir)
	v.SetDefault("project.build_dir", cfg.Project.BuildDir)
	v.SetDefault("project.extensions", cfg.Project.Extensions)
	v.SetDefault("server.listen", cfg.Server.Listen)
	return v
}

// searchPaths lists config directories, lowest precedence first
func searchPaths() []string {
	paths := []string{"/etc/dunehmr"}
	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "dunehmr"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}
	return append(paths, ".")
}

// Load loads configuration from files and environment
func Load() (*Config, error) {
	v := newViper()

	if path := ConfigFile(); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigFile returns the config file Load would read, or "" if there is
// none. Later search paths win; in each directory dunehmr.yaml is preferred
// over .dunehmr.yaml.
func ConfigFile() string {
	paths := searchPaths()
	for i := len(paths) - 1; i >= 0; i-- {
		for _, name := range []string{"dunehmr", ".dunehmr"} {
			v := viper.New()
			v.SetConfigName(name)
			v.SetConfigType("yaml")
			v.AddConfigPath(paths[i])
			err := v.ReadInConfig()
			if err == nil {
				return v.ConfigFileUsed()
			}
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				// present but unreadable; Load reports the error
				if used := v.ConfigFileUsed(); used != "" {
					return used
				}
			}
		}
	}
	return ""
}
