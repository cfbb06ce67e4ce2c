package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"tabcomplete/binary"
	"tabcomplete/config"
	"tabcomplete/logger"

	"github.com/spf13/cobra"
)

var (
	daemonMode bool
	archived   bool

	rootCmd = &cobra.Command{
		Use:   "tabcomplete",
		Short: "Neovim completion client for the TabNine engine",
		Long: `tabcomplete relays a Neovim RPC channel on stdin/stdout to a
shared background daemon, starting the daemon when needed.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if daemonMode {
				return runDaemon()
			}
			return runClient()
		},
	}

	resolveCmd = &cobra.Command{
		Use:   "resolve",
		Short: "Print the engine binary that would be launched",
		RunE:  runResolve,
	}

	logsCmd = &cobra.Command{
		Use:   "logs",
		Short: "Print the daemon log",
		RunE:  runLogs,
	}
)

func init() {
	rootCmd.Flags().BoolVar(&daemonMode, "daemon", false, "run as the background daemon")
	logsCmd.Flags().BoolVar(&archived, "archived", false, "print lines trimmed from the log on rotation")
	rootCmd.AddCommand(resolveCmd, logsCmd)
}

// Setup logger to log to a file in the same directory as the executable
// Caller must defer logger.Close()
func setupLogger(logLevel string) *logger.LimitedLogger {
	logPath := getLogPath()

	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening file: %v", err)
	}

	level := logger.ParseLogLevel(logLevel)
	limitedLogger := logger.NewLimitedLogger(f, level, logPath+logger.ArchiveSuffix)
	log.SetOutput(limitedLogger)
	return limitedLogger
}

func execDir() string {
	execPath, err := os.Executable()
	if err != nil {
		log.Fatalf("error getting executable path: %v", err)
	}
	return filepath.Dir(execPath)
}

func getLogPath() string {
	return filepath.Join(execDir(), "tabcomplete.log")
}

func getSocketPath() string {
	return filepath.Join(execDir(), "tabcomplete.sock")
}

func getPidPath() string {
	return filepath.Join(execDir(), "tabcomplete.pid")
}

func isDaemonRunning() (bool, int) {
	pidPath := getPidPath()
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false, 0
	}

	// Check if process is still running
	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}

	// On Unix, Signal(0) checks if process exists
	err = process.Signal(syscall.Signal(0))
	return err == nil, pid
}

func runDaemon() error {
	settings, err := config.Load()
	if err != nil {
		return err
	}

	logger := setupLogger(settings.LogLevel)
	defer logger.Close()
	log.Printf("config: %+v", settings)

	daemon := NewDaemon(settings, os.Getenv(config.EnvVar))
	return daemon.Start()
}

func runClient() error {
	client := NewClient()

	if err := client.EnsureDaemonRunning(); err != nil {
		return fmt.Errorf("error ensuring daemon is running: %w", err)
	}

	if err := client.Connect(); err != nil {
		return fmt.Errorf("error connecting to daemon: %w", err)
	}
	return nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	settings, err := config.Load()
	if err != nil {
		return err
	}
	path, err := binary.Locate(settings.CustomBinaryPath, settings.InstallDir)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	logPath := getLogPath()
	if archived {
		lines, err := logger.ReadArchive(logPath + logger.ArchiveSuffix)
		if err != nil {
			return err
		}
		for _, line := range lines {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
