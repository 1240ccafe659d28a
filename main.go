// backdrop — Background control panel with live viewers and a pluggable remote store.
// Author: vesaa | License: MIT | https://github.com/vesaa/backdrop
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vesaa/backdrop/internal/client"
	"github.com/vesaa/backdrop/internal/config"
	"github.com/vesaa/backdrop/internal/editor"
	"github.com/vesaa/backdrop/internal/hub"
	"github.com/vesaa/backdrop/internal/logging"
	"github.com/vesaa/backdrop/internal/panel"
	"github.com/vesaa/backdrop/internal/render"
	"github.com/vesaa/backdrop/internal/server"
	"github.com/vesaa/backdrop/internal/store"
	"github.com/vesaa/backdrop/internal/store/backend"
	"github.com/vesaa/backdrop/internal/telemetry"
	"github.com/vesaa/backdrop/internal/viewer"
)

const asciiLogo = `
 ██████╗  █████╗  ██████╗██╗  ██╗██████╗ ██████╗  ██████╗ ██████╗
 ██╔══██╗██╔══██╗██╔════╝██║ ██╔╝██╔══██╗██╔══██╗██╔═══██╗██╔══██╗
 ██████╔╝███████║██║     █████╔╝ ██║  ██║██████╔╝██║   ██║██████╔╝
 ██╔══██╗██╔══██║██║     ██╔═██╗ ██║  ██║██╔══██╗██║   ██║██╔═══╝
 ██████╔╝██║  ██║╚██████╗██║  ██╗██████╔╝██║  ██║╚██████╔╝██║
 ╚═════╝ ╚═╝  ╚═╝ ╚═════╝╚═╝  ╚═╝╚═════╝ ╚═╝  ╚═╝ ╚═════╝ ╚═╝
`

const version = "v0.1.0"

// shutdownTimeout bounds graceful shutdown of both planes.
const shutdownTimeout = 5 * time.Second

func printBanner(mode string) {
	fmt.Print(asciiLogo)
	fmt.Printf("  ► backdrop %s  |  Author: vesaa  |  Mode: %s\n\n", version, mode)
}

// setup loads config and builds the logger every subcommand shares.
func setup() (*config.Config, log.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := logging.New(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("building logger: %w", err)
	}
	return cfg, logger, nil
}

// openBridge connects to the configured store.
func openBridge(ctx context.Context, cfg *config.Config, logger log.Logger) (*store.Bridge, func(), error) {
	b, err := backend.FromConfig(ctx, logger, cfg)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {}
	if c, ok := b.(io.Closer); ok {
		closeFn = func() {
			if err := c.Close(); err != nil {
				level.Warn(logger).Log("msg", "closing store", "err", err)
			}
		}
	}
	return store.New(logger, b), closeFn, nil
}

func main() {
	root := &cobra.Command{
		Use:   "backdrop",
		Short: "backdrop — background control panel with live viewers",
		Long: `backdrop keeps one background record (solid colour, three-stop gradient
or image) in a remote document store and pushes every change to any number
of viewer displays. Stores: SQLite, Firebase Realtime Database, S3, GCS,
Azure Blob Storage.`,
		SilenceUsage: true,
	}

	// ── server subcommand ─────────────────────────────────────────────────────
	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Start the backdrop server (dual-port: 6677 control + 1616 viewer)",
		RunE: func(cmd *cobra.Command, args []string) error {
			printBanner("SERVER")

			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if driver, _ := cmd.Flags().GetString("store"); driver != "" {
				cfg.StoreDriver = driver
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, cfg.OTelServiceName)
			if err != nil {
				return fmt.Errorf("setting up tracing: %w", err)
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				_ = shutdownTracing(sctx)
			}()

			bridge, closeStore, err := openBridge(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			h := hub.New(logger)
			if err := h.Prime(ctx, bridge); err != nil {
				// Viewers fall back to a store read per connection.
				level.Warn(logger).Log("msg", "initial read failed", "err", err)
			}

			srv, err := server.New(server.Options{
				Logger:      logger,
				Store:       bridge,
				Hub:         h,
				JWTSecret:   cfg.JWTSecret,
				AdminUser:   cfg.AdminUser,
				AdminPass:   cfg.AdminPass,
				ViewerURL:   cfg.ViewerBaseURL(),
				StoreDriver: cfg.StoreDriver,
			})
			if err != nil {
				return err
			}

			gin.SetMode(gin.ReleaseMode)
			ctrlAddr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ControlPort)
			viewAddr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ViewerPort)
			ctrlSrv := &http.Server{Addr: ctrlAddr, Handler: srv.ControlHandler(), ReadHeaderTimeout: 10 * time.Second}
			viewSrv := &http.Server{Addr: viewAddr, Handler: srv.ViewerHandler(), ReadHeaderTimeout: 10 * time.Second}
			// Event streams end with the signal context instead of holding Shutdown open.
			viewSrv.BaseContext = func(net.Listener) context.Context { return ctx }

			fmt.Printf("  ✓ Control plane (panel + JWT API) → http://%s\n", ctrlAddr)
			fmt.Printf("  ✓ Viewer  plane (displays + SSE)  → %s\n", cfg.ViewerBaseURL())
			fmt.Printf("  ✓ Store: %s\n", cfg.StoreDriver)
			fmt.Printf("  ✓ Default login: %s / %s\n\n", cfg.AdminUser, cfg.AdminPass)

			// Run both servers concurrently; shut down gracefully on SIGINT/SIGTERM.
			g, gctx := errgroup.WithContext(ctx)
			serve := func(s *http.Server) func() error {
				return func() error {
					if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return fmt.Errorf("%s: %w", s.Addr, err)
					}
					return nil
				}
			}
			g.Go(serve(ctrlSrv))
			g.Go(serve(viewSrv))
			if interval := cfg.WatchInterval(); interval > 0 {
				g.Go(func() error {
					h.Watch(gctx, bridge, interval)
					return nil
				})
			}
			g.Go(func() error {
				<-gctx.Done()
				fmt.Println("\n  → Shutting down gracefully…")
				sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return errors.Join(ctrlSrv.Shutdown(sctx), shutdownOrClose(sctx, viewSrv))
			})
			return g.Wait()
		},
	}
	serverCmd.Flags().String("store", "", "Store driver: sqlite, rtdb, s3, gcs, azure, memory (overrides config)")

	// ── viewer subcommand ─────────────────────────────────────────────────────
	viewerCmd := &cobra.Command{
		Use:   "viewer",
		Short: "Follow the server and render the background (terminal or framebuffer)",
		RunE: func(cmd *cobra.Command, args []string) error {
			printBanner("VIEWER")

			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if url, _ := cmd.Flags().GetString("url"); url != "" {
				cfg.ViewerURL = url
			}
			if fps, _ := cmd.Flags().GetInt("fps"); fps > 0 {
				cfg.ViewerFPS = fps
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Printf("  ✓ Following:  %s%s\n", cfg.ViewerURL, viewer.StreamPath)
			fmt.Printf("  ✓ Reconnect:  %ds\n", cfg.ViewerReconnectSeconds)

			device, _ := cmd.Flags().GetString("framebuffer")
			if device == "" {
				fmt.Printf("  ✓ Output:     terminal\n\n")
				return viewer.Run(ctx, cfg, viewer.NewTerminalSink(os.Stdout), logger)
			}

			fbSink, err := render.OpenFramebuffer(device, logger)
			if err != nil {
				return fmt.Errorf("opening framebuffer: %w", err)
			}
			defer fbSink.Close()
			fmt.Printf("  ✓ Output:     %s @ %d fps\n\n", device, cfg.ViewerFPS)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				fbSink.Run(gctx, cfg.ViewerFPS)
				return nil
			})
			g.Go(func() error { return viewer.Run(gctx, cfg, fbSink, logger) })
			return g.Wait()
		},
	}
	viewerCmd.Flags().String("url", "", "Viewer-plane base URL, e.g. http://192.168.1.10:1616 (overrides config)")
	viewerCmd.Flags().String("framebuffer", "", "Framebuffer device to paint, e.g. /dev/fb0 (linux only)")
	viewerCmd.Flags().Int("fps", 0, "Framebuffer frame rate for animated gradients (overrides config)")

	// ── panel subcommand ──────────────────────────────────────────────────────
	panelCmd := &cobra.Command{
		Use:   "panel",
		Short: "Edit the background from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			// The TUI owns the terminal; keep only errors on stderr.
			logger = level.NewFilter(logger, level.AllowError())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var bridge editor.Bridge
			if direct, _ := cmd.Flags().GetBool("direct"); direct {
				b, closeStore, err := openBridge(ctx, cfg, logger)
				if err != nil {
					return err
				}
				defer closeStore()
				bridge = b
			} else {
				url := cfg.PanelServerURL
				if u, _ := cmd.Flags().GetString("server"); u != "" {
					url = u
				}
				c := client.New(url, cfg.AdminUser, cfg.AdminPass)
				if err := c.Login(ctx); err != nil {
					return fmt.Errorf("connecting to %s: %w", url, err)
				}
				bridge = c
			}
			return panel.Run(ctx, bridge, logger, cfg.EditorDebounce())
		},
	}
	panelCmd.Flags().String("server", "", "Control-plane URL, e.g. http://127.0.0.1:6677 (overrides config)")
	panelCmd.Flags().Bool("direct", false, "Edit the configured store directly instead of going through a server")
	panelCmd.MarkFlagsMutuallyExclusive("server", "direct")

	// ── version subcommand ────────────────────────────────────────────────────
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print backdrop version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("backdrop %s  |  Author: vesaa\n", version)
		},
	}

	root.AddCommand(serverCmd, viewerCmd, panelCmd, versionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// shutdownOrClose waits for in-flight requests, then drops long-lived
// streams that are still open when ctx expires.
func shutdownOrClose(ctx context.Context, s *http.Server) error {
	err := s.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return s.Close()
	}
	return err
}
