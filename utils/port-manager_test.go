package utils

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckListenAddr_FreePort(t *testing.T) {
	// port 0 lets the OS pick a free port
	assert.NoError(t, CheckListenAddr("127.0.0.1:0"))
}

func TestCheckListenAddr_PortInUse(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "Failed to create test listener")
	defer listener.Close()

	addr := listener.Addr().String()
	err = CheckListenAddr(addr)
	require.Error(t, err, "%s should be unavailable (in use)", addr)
	assert.Contains(t, err.Error(), "cannot listen on "+addr)
}

func TestCheckListenAddr_Invalid(t *testing.T) {
	tests := []struct {
		name string
		addr string
	}{
		{"missing port", "127.0.0.1"},
		{"port too high", "127.0.0.1:65536"},
		{"negative port", "127.0.0.1:-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, CheckListenAddr(tt.addr), "CheckListenAddr(%q) should fail", tt.addr)
		})
	}
}
