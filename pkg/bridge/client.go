package bridge

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"
)

// Client speaks the wire protocol to a running transaction server. The
// bridge is a regular client of the TCP interface; it holds no privileged
// access. Each command uses a fresh connection, consuming the greeting
// before sending.
type Client struct {
	addr    string
	timeout time.Duration
}

// NewClient creates a wire-protocol client for the given server address.
func NewClient(addr string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Client{addr: addr, timeout: timeout}
}

// Do sends one command line and returns the single-line reply.
func (c *Client) Do(command string) (string, error) {
	conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
	if err != nil {
		return "", fmt.Errorf("bridge: dial %s: %w", c.addr, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(c.timeout))

	reader := bufio.NewReader(conn)

	// The server opens with a greeting line.
	if _, err := reader.ReadString('\n'); err != nil {
		return "", fmt.Errorf("bridge: read greeting: %w", err)
	}

	if _, err := conn.Write([]byte(command + "\n")); err != nil {
		return "", fmt.Errorf("bridge: send command: %w", err)
	}

	reply, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("bridge: read reply: %w", err)
	}
	return strings.TrimSuffix(reply, "\n"), nil
}

// Reply is a parsed wire-protocol reply.
type Reply struct {
	OK     bool     `json:"ok"`
	Fields []string `json:"fields"`
	Raw    string   `json:"raw"`
}

// parseReply splits a reply line into its status and fields.
func parseReply(line string) Reply {
	parts := strings.Split(line, "|")
	return Reply{
		OK:     parts[0] == "OK",
		Fields: parts[1:],
		Raw:    line,
	}
}
