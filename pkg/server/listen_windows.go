package server

import (
	"net"

	winio "github.com/Microsoft/go-winio"
)

// listenNamedPipe only admits clients of the current user.
func listenNamedPipe(path string) (net.Listener, error) {
	return winio.ListenPipe(path, &winio.PipeConfig{
		SecurityDescriptor: "D:P(A;;GA;;;OW)",
	})
}
