package common

import (
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Socket transport options
// --------------------------------------------------------------------------

// SocketConf holds buffer settings applied to every dialed socket.
// A value of zero keeps the operating system default.
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific settings applied to every dialed connection.
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int // 0 disables keep-alive
	TCPLingerSec    int // negative keeps the OS default
}

// TransportConfig bundles the socket level options of the client transport.
type TransportConfig struct {
	SocketConf
	TCPConf
}

// DefaultTransportConfig returns the transport options used when none are given.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		TCPConf: TCPConf{
			TCPNoDelay:   true,
			TCPLingerSec: -1,
		},
	}
}

// String returns a formatted string representation of the transport options
func (c TransportConfig) String() string {
	var sb strings.Builder
	WriteSection(&sb, "Transport")
	WriteField(&sb, "TCP No Delay", fmt.Sprintf("%t", c.TCPNoDelay))
	WriteField(&sb, "TCP Keep Alive", fmt.Sprintf("%d sec", c.TCPKeepAliveSec))
	WriteField(&sb, "TCP Linger", fmt.Sprintf("%d sec", c.TCPLingerSec))
	WriteField(&sb, "Write Buffer", fmt.Sprintf("%d bytes", c.WriteBufferSize))
	WriteField(&sb, "Read Buffer", fmt.Sprintf("%d bytes", c.ReadBufferSize))
	return sb.String()
}

// --------------------------------------------------------------------------
// Formatting helpers shared by config printers
// --------------------------------------------------------------------------

// WriteSection writes an upper case section title
func WriteSection(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
}

// WriteField writes an aligned name: value line
func WriteField(sb *strings.Builder, name, value string) {
	sb.WriteString(fmt.Sprintf("  %-26s: %s\n", name, value))
}
