package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/apitrail/apitrail/internal/api"
	"github.com/apitrail/apitrail/internal/capture"
	"github.com/apitrail/apitrail/internal/config"
	"github.com/apitrail/apitrail/internal/filter"
	"github.com/apitrail/apitrail/internal/models"
	"github.com/apitrail/apitrail/internal/proxy"
	"github.com/apitrail/apitrail/internal/stats"
)

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Observe traffic to an upstream service through a reverse proxy",
	Long: `Starts an observing reverse proxy in front of an upstream service.

Every request that is not an admin route is forwarded to the upstream,
and the exchange is captured, sanitized, and folded into the collection
documents exactly as with directly observed routes. Point your client
at the proxy instead of the upstream to document an existing API
without changing it.`,
	RunE: runProxy,
}

var (
	upstreamFlag  string
	proxyPortFlag int
)

func init() {
	proxyCmd.Flags().StringVarP(&upstreamFlag, "upstream", "u", "", "Upstream base URL, e.g. http://localhost:3000 (required)")
	proxyCmd.Flags().IntVarP(&proxyPortFlag, "port", "p", 0, "Override server port")
	proxyCmd.MarkFlagRequired("upstream")
}

func runProxy(cmd *cobra.Command, args []string) error {
	port := viper.GetInt("server.port")
	host := viper.GetString("server.host")
	if proxyPortFlag > 0 {
		port = proxyPortFlag
	}

	engine, err := proxy.NewEngine(upstreamFlag)
	if err != nil {
		return err
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

	collector := stats.NewCollector()
	statsID, statsCh := feed.Subscribe()
	go collector.Consume(statsCh)
	defer feed.Unsubscribe(statsID)

	router := api.NewRouter(manager, feed, collector)

	rules := models.AssignmentRules{
		DefaultCollection: viper.GetString("collections.default"),
		VersionBased:      viper.GetBool("collections.versionBased"),
		PathBased:         viper.GetBool("collections.pathBased"),
		StatusBased:       viper.GetBool("collections.statusBased"),
		Environment:       viper.GetString("collections.environment"),
	}

	// Everything that is not an admin route goes upstream, observed
	router.Engine().NoRoute(
		capture.Middleware(recorder, manager, rules, feed, filter.NewRuleSet(cfg.Capture.Ignore)),
		engine.Handler(),
	)

	addr := fmt.Sprintf("%s:%d", host, port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting apitrail proxy on %s, forwarding to %s", addr, engine.Upstream())
		log.Printf("Admin API available at http://%s/_api/", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Proxy failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down proxy...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Proxy shutdown error: %v", err)
	}

	log.Println("Proxy stopped")
	return nil
}
