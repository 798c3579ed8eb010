package config

import (
	"errors"
	"path/filepath"
	"strconv"
	"strings"
)

// Config is intentionally small: everything except the port is fixed.
type Config struct {
	// Port is the TCP port to listen on. Default: 80.
	Port int

	// Host is the listen address. Always all interfaces.
	Host string

	// Root is the directory served by GET requests (the working directory).
	Root string

	// UploadDir receives POST /upload files. Created on first use.
	UploadDir string
}

const (
	DefaultPort = 80
	MinPort     = 1
	MaxPort     = 65535
)

var ErrInvalidPort = errors.New("invalid port number")

// Default returns the configuration used when no port argument is given.
func Default() Config {
	return Config{
		Port:      DefaultPort,
		Host:      "0.0.0.0",
		Root:      ".",
		UploadDir: filepath.Join(".", "uploads"),
	}
}

// FromArgs builds a Config from the positional command line arguments
// (without the program name).
func FromArgs(args []string) (Config, error) {
	cfg := Default()
	port, err := ParsePort(args)
	if err != nil {
		return Config{}, err
	}
	cfg.Port = port
	return cfg, nil
}

// ParsePort reads the optional port argument. Extra arguments are ignored.
func ParsePort(args []string) (int, error) {
	if len(args) == 0 {
		return DefaultPort, nil
	}
	port, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil || port < MinPort || port > MaxPort {
		return 0, ErrInvalidPort
	}
	return port, nil
}

// Addr is the host:port pair handed to the listener.
func (c Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
