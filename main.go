// Command podium-rally starts the Podium Rally race server.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Flags control host/port, track directory, race retention, debug logging,
// version output, and optional ngrok tunneling for external access during development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/podium-rally/api"
	"github.com/wricardo/podium-rally/game/config"
	"github.com/wricardo/podium-rally/game/service"
	"github.com/wricardo/podium-rally/game/session"
	"github.com/wricardo/podium-rally/transport/mcp"
	"github.com/wricardo/podium-rally/transport/websocket"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Podium Rally Server"
)

// Configuration flags control how the server starts and which services are enabled.
var (
	port            = flag.Int("port", 8080, "HTTP server port")
	host            = flag.String("host", "localhost", "HTTP server host")
	tracksDir       = flag.String("tracks-dir", getTracksDirDefault(), "Directory containing track files")
	raceTTL         = flag.Duration("race-ttl", 24*time.Hour, "Forget races not accessed for this long (running races are kept)")
	cleanupInterval = flag.Duration("cleanup-interval", time.Hour, "How often expired races are removed")
	debug           = flag.Bool("debug", false, "Enable debug logging")
	version         = flag.Bool("version", false, "Show version information")
	ngrokEnabled    = flag.Bool("ngrok", false, "Enable ngrok tunnel")
	ngrokAuth       = flag.String("ngrok-auth", "", "Ngrok auth token (or use NGROK_AUTHTOKEN env var)")
	ngrokDomain     = flag.String("ngrok-domain", "", "Custom ngrok domain (optional)")
)

// getTracksDirDefault returns the default track directory.
// It first honors the TRACKS_DIR environment variable, then falls back to "tracks".
func getTracksDirDefault() string {
	if dir := os.Getenv("TRACKS_DIR"); dir != "" {
		return dir
	}
	return "tracks"
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [MODE]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s v%s\n\n", AppName, Version)
		fmt.Fprintf(os.Stderr, "Available modes:\n")
		fmt.Fprintf(os.Stderr, "  server, http     Run HTTP server with API, WebSocket, and MCP endpoint (default)\n")
		fmt.Fprintf(os.Stderr, "  stdio-mcp        Run MCP stdio server with internal HTTP server\n")
		fmt.Fprintf(os.Stderr, "  mcp-stdio        Alias for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "  mcp              Alias for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                        # Run HTTP server on default port 8080\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -port 9090             # Run HTTP server on port 9090\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -tracks-dir ./tracks   # Serve tracks from ./tracks\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s stdio-mcp              # Run MCP stdio server\n", os.Args[0])
	}
}

// main parses flags, initializes services, and starts the selected mode.
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	flag.Parse()

	if *version {
		fmt.Printf("%s v%s\n", AppName, Version)
		os.Exit(0)
	}

	if *debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}

	args := flag.Args()
	mode := "server"
	if len(args) > 0 {
		mode = args[0]
	}

	log.Printf("Starting %s v%s (mode: %s)", AppName, Version, mode)

	svc, err := initializeServices()
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch mode {
	case "stdio-mcp", "mcp-stdio", "mcp":
		err = runStdioMCPWithInternalServer(ctx, svc)
	case "server", "http":
		err = runHTTPServer(ctx, svc)
	default:
		log.Fatalf("Unknown mode: %s. Use 'server' (default) or 'stdio-mcp'", mode)
	}
	if err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}

// services holds everything a server mode needs.
type services struct {
	races    service.RaceService
	sessions *session.Manager
	tracks   *config.Manager
	hub      *websocket.Hub
}

// initializeServices wires the track catalogue, race sessions, the spectator
// hub and the race service. A missing track directory is created; the
// catalogue then serves its generated default oval.
func initializeServices() (*services, error) {
	if err := os.MkdirAll(*tracksDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create tracks directory: %w", err)
	}

	trackManager, err := config.NewManager(*tracksDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create track manager: %w", err)
	}

	log.Printf("Tracks loaded from %s (default: %s)", *tracksDir, trackManager.DefaultTrackID())

	sessionManager := session.NewManager()
	hub := websocket.NewHub()

	return &services{
		races:    service.NewRaceService(sessionManager, trackManager, hub),
		sessions: sessionManager,
		tracks:   trackManager,
		hub:      hub,
	}, nil
}

// background starts the hub loop and the race cleanup routine in g.
func (s *services) background(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error {
		s.hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		sessionCleanupRoutine(ctx, s.sessions, *cleanupInterval, *raceTTL)
		return nil
	})
}

// sessionCleanupRoutine periodically removes races that have not been accessed
// within the retention window until ctx ends.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(maxAge); removed > 0 {
				log.Printf("Cleaned up %d expired races", removed)
			}
		}
	}
}

// mcpHTTPHandler answers single JSON-RPC MCP messages posted to /mcp.
func mcpHTTPHandler(mcpClient *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
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
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// newRouter combines the REST API, the spectator feed and the /mcp proxy.
func newRouter(svc *services, baseURL string) http.Handler {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", api.NewServer(svc.races, svc.hub))
	mainRouter.HandleFunc("/mcp", mcpHTTPHandler(mcp.NewClient(baseURL)))
	return mainRouter
}

// runHTTPServer serves the REST API, WebSocket hub, and an /mcp proxy endpoint
// until ctx ends. If ngrok is enabled (via flag or environment), it also
// provisions a public tunnel.
func runHTTPServer(ctx context.Context, svc *services) error {
	addr := fmt.Sprintf("%s:%d", *host, *port)
	handler := newRouter(svc, fmt.Sprintf("http://%s", addr))

	httpServer := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// Spectator sockets are long lived; the hub sets its own write deadlines
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	svc.background(gctx, g)

	g.Go(func() error {
		log.Printf("HTTP server listening on %s", addr)
		log.Printf("REST API: http://%s/api", addr)
		log.Printf("WebSocket: ws://%s/ws?race=<race_id>", addr)
		log.Printf("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
		return nil
	})

	if settings := ngrokFromEnv(); settings.enabled {
		g.Go(func() error {
			runNgrok(gctx, settings, handler)
			return nil
		})
	}

	return g.Wait()
}

type ngrokSettings struct {
	enabled   bool
	authToken string
	domain    string
}

// ngrokFromEnv merges the ngrok flags with their environment variables.
// Flags win.
func ngrokFromEnv() ngrokSettings {
	s := ngrokSettings{
		enabled:   *ngrokEnabled,
		authToken: *ngrokAuth,
		domain:    *ngrokDomain,
	}
	if !s.enabled {
		if env := os.Getenv("NGROK_ENABLED"); env == "true" || env == "1" {
			s.enabled = true
		}
	}
	if s.authToken == "" {
		s.authToken = os.Getenv("NGROK_AUTHTOKEN")
		if s.authToken == "" {
			s.authToken = os.Getenv("NGROK_AUTH_TOKEN")
		}
	}
	if s.domain == "" {
		s.domain = os.Getenv("NGROK_DOMAIN")
	}
	return s
}

// runNgrok serves handler through an ngrok tunnel until ctx ends. Tunnel
// failures are logged; the local server keeps running.
func runNgrok(ctx context.Context, settings ngrokSettings, handler http.Handler) {
	if settings.authToken == "" {
		log.Println("WARNING: Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	log.Println("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if settings.domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(settings.domain))
		log.Printf("Using custom ngrok domain: %s", settings.domain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(settings.authToken))
	if err != nil {
		log.Printf("Failed to start ngrok tunnel: %v", err)
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Printf("Failed to close ngrok tunnel: %v", err)
		}
	}()

	ngrokURL := tun.URL()
	log.Printf("Ngrok tunnel established: %s", ngrokURL)
	log.Printf("  REST API (ngrok): %s/api", ngrokURL)
	log.Printf("  WebSocket (ngrok): %s/ws?race=<race_id>", ngrokURL)
	log.Printf("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.Printf("Ngrok server error: %v", err)
	}
	log.Println("Ngrok tunnel closed")
}

// externalServerAlive reports whether a Podium Rally server answers on baseURL.
func externalServerAlive(baseURL string) bool {
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// runStdioMCPWithInternalServer runs an MCP stdio server.
// It tries to reuse an external API on the configured port; if unavailable, it
// starts an internal HTTP API bound to a random loopback port and targets that.
func runStdioMCPWithInternalServer(ctx context.Context, svc *services) error {
	externalURL := fmt.Sprintf("http://localhost:%d", *port)
	log.Printf("Checking for external API server at %s...", externalURL)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	baseURL := externalURL
	if externalServerAlive(externalURL) {
		log.Printf("External API server found at %s, using it for MCP", externalURL)
	} else {
		log.Printf("No external API server found, starting internal HTTP server")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = fmt.Sprintf("http://%s", listener.Addr().String())
		log.Printf("Starting internal HTTP server on %s for MCP stdio", listener.Addr())

		httpServer := &http.Server{Handler: api.NewServer(svc.races, svc.hub)}
		svc.background(gctx, g)
		g.Go(func() error {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("internal HTTP server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return httpServer.Close()
		})
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Printf("MCP stdio server ready (API at %s)", baseURL)

	// Stdio ends when the client closes stdin
	serveErr := server.ServeStdio(mcpClient.GetMCPServer())
	cancel()
	if err := g.Wait(); err != nil {
		return err
	}
	if serveErr != nil {
		return fmt.Errorf("MCP stdio server error: %w", serveErr)
	}
	return nil
}
