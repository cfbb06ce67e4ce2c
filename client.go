package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"time"

	"tabcomplete/logger"
)

const (
	daemonStartTimeout = 5 * time.Second
	dialTimeout        = 200 * time.Millisecond
)

// Client relays one editor's RPC channel to the shared daemon
type Client struct {
	socketPath string
}

func NewClient() *Client {
	return &Client{
		socketPath: getSocketPath(),
	}
}

// Connect relays stdin to the daemon socket and the socket to stdout until
// either side closes
func (c *Client) Connect() error {
	conn, err := net.Dial("unix", c.socketPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := io.Copy(conn, os.Stdin); err != nil {
			logger.Debug("relay to daemon: %v", err)
		}
		// let the daemon see EOF while we drain its replies
		if uc, ok := conn.(*net.UnixConn); ok {
			uc.CloseWrite()
		}
	}()

	if _, err := io.Copy(os.Stdout, conn); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("relay from daemon: %w", err)
	}
	return nil
}

// EnsureDaemonRunning starts the daemon unless one is already accepting
// connections. A pid file whose process is alive but whose socket refuses
// connections means the daemon is still starting up.
func (c *Client) EnsureDaemonRunning() error {
	if c.socketReady() {
		return nil
	}
	if running, pid := isDaemonRunning(); running {
		logger.Debug("daemon PID %d not accepting yet, waiting", pid)
		return c.waitForDaemon()
	}
	return c.startDaemon()
}

func (c *Client) socketReady() bool {
	conn, err := net.DialTimeout("unix", c.socketPath, dialTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (c *Client) startDaemon() error {
	logger.Debug("starting daemon")

	self, err := os.Executable()
	if err != nil {
		self = os.Args[0]
	}

	// The environment carries TABCOMPLETE_CONFIG to the daemon. A new
	// session keeps the daemon alive when the editor exits.
	_, err = os.StartProcess(self, []string{self, "--daemon"}, &os.ProcAttr{
		Env:   os.Environ(),
		Files: []*os.File{nil, nil, nil},
		Sys:   &syscall.SysProcAttr{Setsid: true},
	})
	if err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	return c.waitForDaemon()
}

func (c *Client) waitForDaemon() error {
	deadline := time.Now().Add(daemonStartTimeout)
	for time.Now().Before(deadline) {
		if c.socketReady() {
			logger.Debug("daemon accepting connections")
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("daemon not accepting connections after %s", daemonStartTimeout)
}
