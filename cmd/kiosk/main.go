package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"kiosk/internal/app"
	"kiosk/internal/config"
	"kiosk/internal/dto"
	"kiosk/internal/logger"
	"kiosk/internal/scanner"
)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := config.Default()
	var cfgPath string

	// loadConfig layers file, environment and flags onto cfg.
	loadConfig := func(cmd *cobra.Command) (map[string]bool, error) {
		changed := map[string]bool{}
		cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

		path := cfgPath
		if path == "" {
			path = config.DefaultConfigPath()
		}
		if err := config.Load(cfg, path, changed); err != nil {
			return nil, err
		}
		return changed, nil
	}

	serve := func(cmd *cobra.Command, args []string) error {
		changed, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := app.NewApp(cfg, changed)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Run(ctx)
	}

	root := &cobra.Command{
		Use:           "kiosk",
		Short:         "Scan QR codes and barcodes from a camera and push them to browsers",
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scanner and the web server (default)",
		RunE:  serve,
	}

	var count int
	var once bool
	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan from the camera and print events to stdout",
		Example: `  kiosk scan --count 3
  kiosk scan --once --device /dev/video2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(cmd); err != nil {
				return err
			}

			log := logger.NewWithWriter(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
			s, err := app.NewScanner(cfg, log)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			emit := func(result scanner.ScanResult) {
				msg, err := dto.NewScanEvent(result).Encode()
				if err != nil {
					log.Error("Error encoding scan event: %v", err)
					return
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(msg))
			}

			if once {
				result, ok, err := s.CaptureOnce(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("no code in frame")
				}
				emit(result)
				return nil
			}

			if count > 0 {
				err = s.RunN(ctx, count, emit)
			} else {
				err = s.Run(ctx, emit)
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	scanCmd.Flags().IntVar(&count, "count", 0, "stop after this many distinct codes (0 = until interrupted)")
	scanCmd.Flags().BoolVar(&once, "once", false, "capture a single frame and exit")

	var limit int
	var clearHistory bool
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show or clear the scan history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(cmd); err != nil {
				return err
			}

			db, scans, err := app.OpenHistory(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if clearHistory {
				if err := scans.DeleteAll(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
				return nil
			}

			items, err := scans.GetAll(&dto.ScanFilter{Limit: limit})
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSCANNED AT\tTYPE\tSYMBOLOGY\tCODE")
			for _, s := range items {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", s.ID, s.ScannedAt.Local().Format(time.DateTime), s.Type, s.Symbology, s.Code)
			}
			return tw.Flush()
		},
	}
	historyCmd.Flags().IntVar(&limit, "limit", 20, "number of most recent scans to show")
	historyCmd.Flags().BoolVar(&clearHistory, "clear", false, "delete the whole history")

	// Flags
	flags := root.PersistentFlags()
	flags.StringVar(&cfgPath, "config", "", "path to config file (default: ./kiosk.toml or $HOME/.kiosk/config.toml)")
	flags.StringVar(&cfg.Host, "host", cfg.Host, "listen host")
	flags.IntVar(&cfg.Port, "port", cfg.Port, "listen port")
	flags.StringVar(&cfg.Password, "password", cfg.Password, "admin password (empty disables admin routes)")
	flags.StringVar(&cfg.StaticDirectory, "static-dir", cfg.StaticDirectory, "front-end directory")
	flags.StringVar(&cfg.LogDirectory, "log-dir", cfg.LogDirectory, "log directory")
	flags.BoolVar(&cfg.Debug, "debug", cfg.Debug, "log per-frame debug output")

	flags.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "scan history database")
	flags.BoolVar(&cfg.HistoryEnabled, "history", cfg.HistoryEnabled, "record scans in the history database")
	flags.IntVar(&cfg.HistoryWorkers, "history-workers", cfg.HistoryWorkers, "history writer goroutines")

	flags.StringVar(&cfg.DevicePath, "device", cfg.DevicePath, "video device")
	flags.IntVar(&cfg.FrameWidth, "width", cfg.FrameWidth, "capture width")
	flags.IntVar(&cfg.FrameHeight, "height", cfg.FrameHeight, "capture height")
	flags.IntVar(&cfg.BufferDepth, "buffers", cfg.BufferDepth, "camera stream buffers")

	flags.IntVar(&cfg.BroadcastCapacity, "backlog", cfg.BroadcastCapacity, "pending events kept per viewer")
	flags.IntVar(&cfg.MaxScans, "max-scans", cfg.MaxScans, "stop scanning after this many codes (0 = unbounded)")
	flags.DurationVar(&cfg.PingInterval, "ping-interval", cfg.PingInterval, "websocket ping interval")
	flags.DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "websocket read timeout")
	flags.BoolVar(&cfg.WatchConfig, "watch-config", cfg.WatchConfig, "apply width/height changes from the config file live")

	root.AddCommand(serveCmd, scanCmd, historyCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "kiosk: %v\n", err)
		os.Exit(1)
	}
}
