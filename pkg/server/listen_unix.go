//go:build !windows

package server

import (
	"errors"
	"net"
)

var errNamedPipes = errors.New("named pipes are only available on Windows")

func listenNamedPipe(string) (net.Listener, error) {
	return nil, errNamedPipes
}
