package server

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const pipePrefix = `\\.\pipe\`

// Listen opens a listener for addr. A bare host:port listens on TCP; the
// tcp://, unix://, npipe:// and fd:// schemes select the other transports.
// fd:// takes over a listener inherited from the parent process.
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	scheme, rest, ok := strings.Cut(addr, "://")
	if !ok {
		return listenTCP(ctx, addr)
	}

	switch scheme {
	case "tcp":
		return listenTCP(ctx, rest)
	case "unix":
		return listenUnix(ctx, rest)
	case "npipe":
		return listenNamedPipe(pipePath(rest))
	case "fd":
		return listenFD(rest)
	default:
		return nil, fmt.Errorf("unsupported listen address %q", addr)
	}
}

// pipePath turns "voice-agent" into `\\.\pipe\voice-agent`.
func pipePath(name string) string {
	if strings.HasPrefix(name, pipePrefix) {
		return name
	}
	return pipePrefix + strings.TrimLeft(name, `\/`)
}

// listenUnix replaces a stale socket file and restricts the new one to the
// current user.
func listenUnix(ctx context.Context, path string) (net.Listener, error) {
	if path == "" {
		return nil, fmt.Errorf("empty unix socket path")
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale socket: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return nil, err
	}
	return ln, nil
}

func listenTCP(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(ctx, "tcp", addr)
}

func listenFD(value string) (net.Listener, error) {
	fd, err := strconv.Atoi(value)
	if err != nil || fd < 0 {
		return nil, fmt.Errorf("invalid file descriptor %q", value)
	}

	f := os.NewFile(uintptr(fd), "listener-"+value)
	defer f.Close()
	return net.FileListener(f)
}
