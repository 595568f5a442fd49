package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/apitrail/apitrail/internal/api"
	"github.com/apitrail/apitrail/internal/capture"
	"github.com/apitrail/apitrail/internal/config"
	"github.com/apitrail/apitrail/internal/filter"
	"github.com/apitrail/apitrail/internal/models"
	"github.com/apitrail/apitrail/internal/stats"
	"github.com/apitrail/apitrail/internal/tlsutil"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the apitrail admin server",
	Long: `Starts the apitrail admin server.

The server will:
  - Load persisted collection documents from the data directory
  - Expose the admin API at /_api/ (collections, stats, export, merge)
  - Stream live captures over WebSocket at /_api/captures/stream
  - Expose Prometheus metrics at /metrics
  - Optionally observe its own demo routes when --demo is set
  - Optionally terminate TLS, answering https and http on the same port

Configuration is loaded from config.yaml in the current directory,
or specify a custom config file with the --config flag.`,
	RunE: runServe,
}

var (
	portFlag int
	demoMode bool
)

func init() {
	serveCmd.Flags().IntVarP(&portFlag, "port", "p", 0, "Override server port")
	serveCmd.Flags().BoolVar(&demoMode, "demo", false, "Mount observed demo routes under /demo")

	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func runServe(cmd *cobra.Command, args []string) error {
	port := viper.GetInt("server.port")
	host := viper.GetString("server.host")
	if portFlag > 0 {
		port = portFlag
	}

	manager, err := newManager()
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	if discovered, err := manager.DiscoverCollections(); err == nil && len(discovered) > 0 {
		log.Printf("Loaded %d existing collection(s): %v", len(discovered), discovered)
	}

	cfg := config.Default()
	if path := viper.ConfigFileUsed(); path != "" {
		if loaded, err := config.Load(path); err == nil {
			cfg = loaded
		} else {
			log.Printf("Warning: could not load config file: %v. Using defaults.", err)
		}
	}

	feed := capture.NewFeed(cfg.Capture.MaxRecent)
	recorder := capture.NewRecorder(cfg.Capture.SensitiveFields, cfg.Capture.SensitiveHeaders)
	ignoreRules := filter.NewRuleSet(cfg.Capture.Ignore)

	collector := stats.NewCollector()
	statsID, statsCh := feed.Subscribe()
	go collector.Consume(statsCh)
	defer feed.Unsubscribe(statsID)

	router := api.NewRouter(manager, feed, collector)

	if demoMode {
		mountDemoRoutes(router, recorder, manager, feed, ignoreRules)
	}

	// Reload capture settings when the config file changes on disk
	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		reloaded, err := config.Load(e.Name)
		if err != nil {
			log.Printf("Config file changed but could not be reloaded: %v", err)
			return
		}
		recorder.UpdateLists(reloaded.Capture.SensitiveFields, reloaded.Capture.SensitiveHeaders)
		ignoreRules.Replace(reloaded.Capture.Ignore)
		feed.SetMaxRecent(reloaded.Capture.MaxRecent)
		log.Printf("Config file changed: %s, capture settings reloaded", e.Name)
	})

	addr := fmt.Sprintf("%s:%d", host, port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var mux *tlsutil.MuxListener
	var tlsServer *http.Server

	if cfg.Server.TLS.Enabled {
		certDir := filepath.Join(viper.GetString("storage.path"), "certs")
		certs := tlsutil.NewCertificateManager(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile, certDir)
		cert, err := certs.Certificate(cfg.Server.TLS.AutoGenerate)
		if err != nil {
			return fmt.Errorf("failed to set up TLS: %w", err)
		}

		inner, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		mux = tlsutil.NewMuxListener(inner, &tls.Config{Certificates: []tls.Certificate{*cert}})

		tlsServer = &http.Server{
			Handler:      router.Handler(),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		go func() {
			log.Printf("Starting apitrail server on %s (TLS enabled)", addr)
			log.Printf("Admin API available at https://%s/_api/", addr)
			if err := server.Serve(mux.PlainListener()); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server failed: %v", err)
			}
		}()
		go func() {
			if err := tlsServer.Serve(mux.TLSListener()); err != nil && err != http.ErrServerClosed {
				log.Fatalf("TLS server failed: %v", err)
			}
		}()
	} else {
		go func() {
			log.Printf("Starting apitrail server on %s", addr)
			log.Printf("Admin API available at http://%s/_api/", addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server failed: %v", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if tlsServer != nil {
		if err := tlsServer.Shutdown(ctx); err != nil {
			log.Printf("TLS server shutdown error: %v", err)
		}
	}
	if mux != nil {
		mux.Close()
	}

	log.Println("Server stopped")
	return nil
}

// mountDemoRoutes attaches a small observed API so the capture
// pipeline can be exercised without an external application.
func mountDemoRoutes(router *api.Router, recorder *capture.Recorder, sink capture.Sink, feed *capture.Feed, ignore *filter.RuleSet) {
	rules := models.AssignmentRules{
		DefaultCollection: viper.GetString("collections.default"),
		VersionBased:      viper.GetBool("collections.versionBased"),
		PathBased:         viper.GetBool("collections.pathBased"),
		StatusBased:       viper.GetBool("collections.statusBased"),
		Environment:       viper.GetString("collections.environment"),
	}

	demo := router.Engine().Group("/demo")
	demo.Use(capture.Middleware(recorder, sink, rules, feed, ignore))
	{
		demo.GET("/users/:id", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "name": "Demo User"})
		})
		demo.POST("/echo", func(c *gin.Context) {
			var body map[string]interface{}
			if err := c.ShouldBindJSON(&body); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, body)
		})
	}

	log.Println("Demo routes mounted under /demo")
}
