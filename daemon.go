package main

import (
	"context"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"tabcomplete/buffer"
	"tabcomplete/config"
	"tabcomplete/engine"
	"tabcomplete/logger"
	"tabcomplete/metrics"
	"tabcomplete/process"
	"tabcomplete/syntax"

	"github.com/neovim/go-client/nvim"
	"golang.org/x/sync/singleflight"
)

// Daemon shares one engine process between every connected editor. Each
// connection gets its own completion session.
type Daemon struct {
	mu       sync.Mutex
	settings *config.Settings
	rawEnv   string

	manager    *process.Manager
	syntax     *syntax.Resolver
	tracker    *metrics.Tracker
	prefetches singleflight.Group
	sessions   map[*engine.Engine]struct{}

	listener    net.Listener
	socketPath  string
	pidPath     string
	clientCount int64
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewDaemon(settings *config.Settings, rawEnv string) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		settings:   settings,
		rawEnv:     rawEnv,
		manager:    process.NewManager(processConfig(settings)),
		syntax:     syntax.NewResolver(settings.InstallDir, settings.SyntaxMapPath, settings.SyntaxCacheTTL()),
		tracker:    metrics.NewTracker(),
		sessions:   make(map[*engine.Engine]struct{}),
		socketPath: getSocketPath(),
		pidPath:    getPidPath(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func processConfig(s *config.Settings) process.Config {
	return process.Config{
		CustomBinaryPath: s.CustomBinaryPath,
		InstallDir:       s.InstallDir,
		LogFilePath:      s.LogFilePath,
		ExtraArgs:        s.ExtraArgs,
		RequestTimeout:   s.RequestTimeout(),
	}
}

func engineConfig(s *config.Settings) engine.Config {
	return engine.Config{
		MaxNumResults: s.MaxNumResults,
		Documentation: s.Documentation,
		Detail:        s.Detail,
	}
}

func (d *Daemon) Start() error {
	// Setup logging and PID management
	d.writePidFile()
	defer d.removePidFile()

	// Setup socket
	if err := d.setupSocket(); err != nil {
		return err
	}
	defer d.cleanup()

	log.Printf("daemon listening on socket: %s", d.socketPath)

	d.manager.Start()
	defer d.manager.Close()
	defer d.syntax.Close()

	// Setup shutdown handling
	d.setupShutdownHandling()

	if d.settings.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(d.ctx, d.settings.MetricsAddr); err != nil {
				logger.Error("metrics listener: %v", err)
			}
		}()
	}

	if d.settings.SettingsFile != "" {
		go func() {
			if err := config.Watch(d.ctx, d.settings.SettingsFile, d.reloadSettings); err != nil {
				logger.Error("settings watcher: %v", err)
			}
		}()
	}

	// Start connection handling
	go d.acceptConnections()

	// Start idle monitoring
	go d.monitorIdleShutdown()

	// Wait for shutdown
	<-d.ctx.Done()
	log.Printf("daemon shutting down...")
	return nil
}

func (d *Daemon) setupSocket() error {
	// Remove existing socket
	os.Remove(d.socketPath)

	// Listen on Unix socket
	listener, err := net.Listen("unix", d.socketPath)
	if err != nil {
		return err
	}
	d.listener = listener
	return nil
}

func (d *Daemon) setupShutdownHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Printf("received shutdown signal")
		d.Stop()
	}()
}

func (d *Daemon) acceptConnections() {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			select {
			case <-d.ctx.Done():
				return // Server is shutting down
			default:
				log.Printf("error accepting connection: %v", err)
				continue
			}
		}

		atomic.AddInt64(&d.clientCount, 1)
		log.Printf("new client connected, total clients: %d", atomic.LoadInt64(&d.clientCount))
		go d.handleConnection(conn)
	}
}

func (d *Daemon) handleConnection(conn net.Conn) {
	defer conn.Close()
	defer func() {
		atomic.AddInt64(&d.clientCount, -1)
		log.Printf("client disconnected, remaining clients: %d", atomic.LoadInt64(&d.clientCount))
	}()

	// Create Neovim client from the connection
	n, err := nvim.New(conn, conn, conn, log.Printf)
	if err != nil {
		log.Printf("error creating nvim client: %v", err)
		return
	}

	buf := buffer.New()
	buf.SetClient(n)

	d.mu.Lock()
	cfg := engineConfig(d.settings)
	d.mu.Unlock()

	eng := engine.NewEngine(d.manager, buf, cfg, engine.Options{
		Syntax:     d.syntax,
		Tracker:    d.tracker,
		Prefetches: &d.prefetches,
	})
	if err := buf.RegisterHandlers(eng, d.applySettings); err != nil {
		log.Printf("error registering handlers: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(d.ctx)
	defer cancel()
	eng.Start(ctx)
	d.addSession(eng)
	defer d.removeSession(eng)

	// Serve this connection until it closes or context is done
	select {
	case <-d.ctx.Done():
		return
	default:
		if err := n.Serve(); err != nil && err != io.EOF {
			log.Printf("error serving connection: %v", err)
		}
	}
}

func (d *Daemon) addSession(eng *engine.Engine) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions[eng] = struct{}{}
}

func (d *Daemon) removeSession(eng *engine.Engine) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sessions, eng)
	eng.Stop()
}

// applySettings handles a settings blob sent by an editor. It replaces the
// environment config for later reloads.
func (d *Daemon) applySettings(raw string) {
	d.mu.Lock()
	d.rawEnv = raw
	d.mu.Unlock()
	d.reloadSettings()
}

// reloadSettings re-parses the config, restarts the engine with a fresh
// restart budget and resets every session
func (d *Daemon) reloadSettings() {
	d.mu.Lock()
	defer d.mu.Unlock()

	settings, err := config.Parse(d.rawEnv)
	if err != nil {
		logger.Error("reload settings: %v", err)
		return
	}
	d.settings = settings
	logger.SetGlobalLevel(logger.ParseLogLevel(settings.LogLevel))

	d.manager.Reconfigure(processConfig(settings))

	cfg := engineConfig(settings)
	for eng := range d.sessions {
		eng.Reset(cfg)
	}
	logger.Info("settings reloaded, %d sessions reset", len(d.sessions))
}

func (d *Daemon) monitorIdleShutdown() {
	// In debug mode, shut down immediately when no clients are connected
	if d.settings.DebugImmediateShutdown {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-d.ctx.Done():
				return
			case <-ticker.C:
				if atomic.LoadInt64(&d.clientCount) == 0 {
					log.Printf("debug mode: no clients connected, shutting down daemon immediately")
					d.Stop()
					return
				}
			}
		}
	} else {
		// Normal mode: wait for timeout period before shutting down
		idleTimer := time.NewTimer(30 * time.Second)
		defer idleTimer.Stop()

		for {
			select {
			case <-d.ctx.Done():
				return
			case <-idleTimer.C:
				if atomic.LoadInt64(&d.clientCount) == 0 {
					log.Printf("no clients connected for timeout period, shutting down daemon")
					d.Stop()
					return
				}
			}

			// Reset timer when no clients
			if atomic.LoadInt64(&d.clientCount) == 0 {
				idleTimer.Reset(5 * time.Second)
			} else {
				idleTimer.Reset(30 * time.Second)
			}
		}
	}
}

func (d *Daemon) Stop() {
	d.mu.Lock()
	for eng := range d.sessions {
		eng.Stop()
	}
	d.mu.Unlock()

	if d.listener != nil {
		d.listener.Close()
	}
	d.cancel()
}

func (d *Daemon) cleanup() {
	os.Remove(d.socketPath)
}

func (d *Daemon) writePidFile() {
	pid := os.Getpid()
	err := os.WriteFile(d.pidPath, []byte(strconv.Itoa(pid)), 0644)
	if err != nil {
		log.Printf("warning: could not write PID file: %v", err)
	}
	log.Printf("server started with PID %d", pid)
}

func (d *Daemon) removePidFile() {
	if err := os.Remove(d.pidPath); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not remove PID file: %v", err)
	}
}
