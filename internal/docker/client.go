package docker

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/docker/docker/client"
)

// defaultPingTimeout bounds a single daemon ping. Docker Desktop on
// macOS can take a few seconds to answer when waking up.
const defaultPingTimeout = 5 * time.Second

// Client wraps the Docker Engine SDK client. It exists so the rest of
// the harness sees a two-method surface (Ping, Close) plus the socket
// address that was chosen, instead of the full SDK.
type Client struct {
	inner *client.Client
	host  string
}

// NewClient creates a Docker client with automatic socket detection.
//
// Detection order:
//  1. DOCKER_HOST environment variable, used as-is when set
//  2. Platform defaults:
//     - Linux: /var/run/docker.sock
//     - macOS: /var/run/docker.sock, then ~/.docker/run/docker.sock
//     - Windows: npipe:////./pipe/docker_engine
//
// A successful return means a plausible endpoint was found, not that a
// daemon is listening; call Ping to verify reachability.
func NewClient() (*Client, error) {
	if dockerHost := os.Getenv("DOCKER_HOST"); dockerHost != "" {
		return newClientWithHost(dockerHost)
	}

	host, err := detectDockerHost()
	if err != nil {
		return nil, err
	}

	return newClientWithHost(host)
}

// newClientWithHost creates a client for a specific connection string,
// e.g. "unix:///var/run/docker.sock" or "npipe:////./pipe/docker_engine".
func newClientWithHost(host string) (*Client, error) {
	// Version negotiation keeps the wrapper compatible with whatever
	// daemon version happens to be installed.
	c, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client for host %q: %w", host, err)
	}

	return &Client{inner: c, host: host}, nil
}

// detectDockerHost returns the daemon address for the current platform.
// Unix socket paths are checked for existence; reachability is left to
// Ping.
func detectDockerHost() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return detectUnixSocket([]string{
			"/var/run/docker.sock",
		})

	case "darwin":
		// Newer Docker Desktop versions place the socket under the
		// user's home directory and only sometimes symlink the
		// standard path.
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return detectUnixSocket([]string{
				"/var/run/docker.sock",
			})
		}
		return detectUnixSocket([]string{
			"/var/run/docker.sock",
			homeDir + "/.docker/run/docker.sock",
		})

	case "windows":
		// Docker Desktop exposes a fixed named pipe. Its existence
		// cannot be checked with os.Stat, so hand the address to the
		// SDK and let Ping report reachability.
		return "npipe:////./pipe/docker_engine", nil

	default:
		return "", fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// detectUnixSocket probes socket paths in order and returns the Docker
// host URI for the first one that exists on the filesystem.
func detectUnixSocket(paths []string) (string, error) {
	for _, path := range paths {
		// A successful Stat confirms the socket file exists, not that
		// a daemon is listening on it.
		if _, err := os.Stat(path); err == nil {
			return "unix://" + path, nil
		}
	}
	return "", fmt.Errorf("Docker socket not found at any of: %v", paths)
}

// Host returns the connection string the client was created with.
func (c *Client) Host() string {
	return c.host
}

// Ping verifies the daemon is reachable and returns its negotiated API
// version for display. The wait is bounded by defaultPingTimeout even
// when the caller's context has no deadline.
func (c *Client) Ping(ctx context.Context) (string, error) {
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	pong, err := c.inner.Ping(pingCtx)
	if err != nil {
		return "", fmt.Errorf("Docker daemon is not responding at %s: %w", c.host, err)
	}
	return pong.APIVersion, nil
}

// Close releases the client's resources. Safe to call multiple times.
func (c *Client) Close() error {
	if c.inner != nil {
		return c.inner.Close()
	}
	return nil
}
