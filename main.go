// Command gemtable starts the gem table game server.
//
// It supports two modes:
//  1. "serve" (default) runs the HTTP server exposing the WebSocket endpoint,
//     the REST API and an /mcp HTTP endpoint
//  2. "mcp" runs an MCP stdio server against a running server's REST API
//
// Settings come from an optional JSON file, GEMTABLE_* environment variables
// (a .env file is loaded first when present) and command-line flags. An
// optional ngrok tunnel exposes the server publicly during development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/time/rate"

	"github.com/wricardo/gemtable/api"
	"github.com/wricardo/gemtable/dispatch"
	"github.com/wricardo/gemtable/game/commands"
	"github.com/wricardo/gemtable/game/config"
	"github.com/wricardo/gemtable/game/room"
	"github.com/wricardo/gemtable/health"
	"github.com/wricardo/gemtable/registry"
	"github.com/wricardo/gemtable/transport/mcp"
	"github.com/wricardo/gemtable/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Gem Table Server"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: error loading .env file: %v\n", err)
	}

	app := newCommand()
	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", app.Name, err)
		os.Exit(1)
	}
}

func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "path to a JSON settings file",
			Sources: cli.EnvVars("GEMTABLE_CONFIG"),
		},
		&cli.StringFlag{
			Name:  "addr",
			Usage: "listen address, overrides the settings file",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "trace, debug, info, warn or error; overrides the settings file",
		},
		&cli.BoolFlag{
			Name:    "log-pretty",
			Usage:   "human-readable console logs instead of JSON",
			Sources: cli.EnvVars("GEMTABLE_LOG_PRETTY"),
		},
		&cli.BoolFlag{
			Name:    "ngrok",
			Usage:   "expose the server through an ngrok tunnel (token from NGROK_AUTHTOKEN)",
			Sources: cli.EnvVars("NGROK_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "ngrok-domain",
			Usage:   "custom ngrok domain",
			Sources: cli.EnvVars("NGROK_DOMAIN"),
		},
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "gemtable",
		Usage:   AppName,
		Version: Version,
		Flags:   serveFlags(),
		Action:  runServe,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the game server (default)",
				Flags:  serveFlags(),
				Action: runServe,
			},
			{
				Name:  "mcp",
				Usage: "run an MCP stdio server against a running game server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "api-url",
						Usage:   "base URL of the game server's REST API",
						Value:   "http://localhost:8080",
						Sources: cli.EnvVars("GEMTABLE_API_URL"),
					},
				},
				Action: runMCP,
			},
		},
	}
}

func newLogger(w io.Writer, pretty bool, level zerolog.Level) zerolog.Logger {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// loadSettings applies command-line overrides on top of the settings file
// and environment.
func loadSettings(cmd *cli.Command) (*config.Manager, config.Settings, error) {
	manager, err := config.NewManager(cmd.String("config"))
	if err != nil {
		return nil, config.Settings{}, err
	}
	settings := manager.Current()
	if addr := cmd.String("addr"); addr != "" {
		settings.Addr = addr
	}
	if lvl := cmd.String("log-level"); lvl != "" {
		settings.LogLevel = lvl
	}
	if err := settings.Validate(); err != nil {
		return nil, config.Settings{}, err
	}
	return manager, settings, nil
}

// application wires the server's components together.
type application struct {
	settings   config.Settings
	log        zerolog.Logger
	store      *room.Store
	registry   *registry.Registry
	hub        *websocket.Hub
	dispatcher *dispatch.Dispatcher
	monitor    *health.Monitor
	handler    http.Handler
}

func newApplication(settings config.Settings, log zerolog.Logger) (*application, error) {
	store := room.NewStore()

	reg := registry.New(log)
	report := commands.Register(reg)
	if err := reg.Require(); err != nil {
		return nil, err
	}
	log.Info().Strs("commands", report.Registered).Msg("command handlers registered")

	hub := websocket.NewHub(websocket.Options{
		PingPeriod:     settings.HeartbeatInterval,
		MaxMessageSize: settings.MaxMessageSize,
		SendBufferSize: settings.SendBufferSize,
	}, log)
	dispatcher := dispatch.New(reg, store, hub, log,
		dispatch.WithRateLimit(rate.Limit(settings.RateLimit), settings.RateBurst))
	hub.Bind(dispatcher)

	monitor, err := health.NewMonitor(hub, health.Thresholds{
		Interval:  settings.HealthCheckInterval,
		Warn:      settings.WarnThreshold,
		Terminate: settings.TerminationThreshold,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create health monitor: %w", err)
	}

	apiServer := api.NewServer(store, reg, hub, log)
	mcpClient := mcp.NewClient(localURL(settings.Addr))

	// Create main router that combines API and MCP
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			log.Debug().Err(err).Msg("failed to write mcp response")
		}
	})

	return &application{
		settings:   settings,
		log:        log,
		store:      store,
		registry:   reg,
		hub:        hub,
		dispatcher: dispatcher,
		monitor:    monitor,
		handler:    mainRouter,
	}, nil
}

// start launches the background loops. They stop when ctx is done.
func (a *application) start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(3)
	go func() {
		defer wg.Done()
		a.hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		a.monitor.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		roomJanitor(ctx, a.store, janitorInterval(a.settings.RoomReapAfter), a.settings.RoomReapAfter, a.log)
	}()
}

// localURL turns a listen address into a URL reachable from this host.
func localURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func janitorInterval(reapAfter time.Duration) time.Duration {
	every := reapAfter / 2
	if every < time.Second {
		every = time.Second
	}
	if every > time.Minute {
		every = time.Minute
	}
	return every
}

// roomJanitor periodically removes rooms that stayed empty for reapAfter.
func roomJanitor(ctx context.Context, store *room.Store, every, reapAfter time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := store.ReapEmpty(reapAfter); removed > 0 {
				log.Info().Int("removed", removed).Int("remaining", store.Count()).Msg("reaped empty rooms")
			}
		}
	}
}

// reloadOnHangup re-reads the settings file and rebuilds the command table on
// SIGHUP. Transport settings only take effect on restart.
func reloadOnHangup(ctx context.Context, manager *config.Manager, reg *registry.Registry, log zerolog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if _, err := manager.Reload(); err != nil {
				log.Error().Err(err).Msg("settings reload failed, keeping current settings")
			}
			settings := manager.Current()
			zerolog.SetGlobalLevel(settings.Level())
			report := reg.Reload(commands.All()...)
			log.Info().Int("commands", len(report.Registered)).Str("log_level", settings.Level().String()).Msg("reloaded")
		}
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	manager, settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	log := newLogger(os.Stderr, cmd.Bool("log-pretty"), settings.Level())

	app, err := newApplication(settings, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	app.start(ctx, &wg)

	wg.Add(1)
	go func() {
		defer wg.Done()
		reloadOnHangup(ctx, manager, app.registry, log)
	}()

	httpServer := &http.Server{
		Addr:         settings.Addr,
		Handler:      app.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", settings.Addr).
			Str("version", Version).
			Dur("heartbeat", settings.HeartbeatInterval).
			Dur("terminate_after", settings.TerminationThreshold).
			Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if cmd.Bool("ngrok") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runTunnel(ctx, cmd.String("ngrok-domain"), app.handler, log)
		}()
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-serveErr:
		if err != nil {
			stop()
			wg.Wait()
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	wg.Wait()
	log.Info().Msg("server stopped")
	return nil
}

// runTunnel serves handler through an ngrok tunnel until ctx is done.
func runTunnel(ctx context.Context, domain string, handler http.Handler, log zerolog.Logger) {
	authToken := os.Getenv("NGROK_AUTHTOKEN")
	if authToken == "" {
		authToken = os.Getenv("NGROK_AUTH_TOKEN")
	}
	if authToken == "" {
		log.Warn().Msg("ngrok enabled but no auth token provided (set NGROK_AUTHTOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.Error().Err(err).Msg("failed to start ngrok tunnel")
		return
	}

	tunnelServer := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		tunnelServer.Close()
	}()

	log.Info().Str("url", tun.URL()).Msg("ngrok tunnel established")
	if err := tunnelServer.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("ngrok server error")
	}
	log.Info().Msg("ngrok tunnel closed")
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	client := mcp.NewClient(cmd.String("api-url"))
	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
