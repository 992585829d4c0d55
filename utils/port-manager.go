package utils

import (
	"fmt"
	"net"
)

// CheckListenAddr reports whether addr ("host:port") can be bound right now.
// It is used before daemonizing, when the child could not report the error.
func CheckListenAddr(addr string) error {
	Verbose("Checking if %s is available", addr)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		Verbose("error: %v", err)
		return fmt.Errorf("cannot listen on %s: %w", addr, err)
	}

	defer listener.Close()
	return nil
}
