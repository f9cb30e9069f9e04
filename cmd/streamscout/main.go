package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"streamscout/internal/cache"
	"streamscout/internal/config"
	"streamscout/internal/database"
	"streamscout/internal/logger"
	"streamscout/pkg/browser"
	"streamscout/pkg/checker"
	"streamscout/pkg/fetch"
	"streamscout/pkg/manager"
	"streamscout/pkg/playlist"
	"streamscout/pkg/proxylist"
	"streamscout/pkg/runner"
	"streamscout/pkg/schedule"
	"streamscout/pkg/server"
	"streamscout/pkg/sites"
)

var (
	configPath = pflag.String("config", "", "Path to config file")
	genConfig  = pflag.Bool("gen-config", false, "Generate default config file")
	version    = pflag.Bool("version", false, "Show version")
	once       = pflag.Bool("once", false, "Run a single scrape and exit, ignoring run.interval")
	only       = pflag.StringSlice("site", nil, "Only scrape these sites (repeatable)")
)

func init() {
	pflag.String("log-level", "", "Log level (debug, info, warn, error)")
	pflag.String("output-dir", "", "Directory for playlist.m3u8 and streams.json")
	pflag.Duration("interval", 0, "Re-scrape every interval (0 runs once)")
	pflag.String("listen", "", "HTTP listen address")
	pflag.Bool("serve", false, "Serve the playlist over HTTP")
	pflag.StringSlice("sites", nil, "Enabled site adapters")
}

const (
	Version = "1.0.0"
	Banner  = `
______ ______ ______ ______ ______ ______ ______ ______

  ___ _                        ___                 _
 / __| |_ _ _ ___ __ _ _ __   / __| __ ___ _  _| |_
 \__ \  _| '_/ -_) _' | '  \  \__ \/ _/ _ \ || |  _|
 |___/\__|_| \___\__,_|_|_|_| |___/\__\___/\_,_|\__|

______ ______ ______ ______ ______ ______ ______ ______

StreamScout - Sports Stream Playlist Builder v%s

______ ______ ______ ______ ______ ______ ______ ______

`
)

func main() {
	pflag.Parse()

	if *version {
		fmt.Printf("StreamScout v%s\n", Version)
		return
	}

	fmt.Printf(Banner, Version)

	if *genConfig {
		if err := config.SaveConfigTemplate("config.yaml"); err != nil {
			log.Fatalf("Failed to generate config: %v", err)
		}
		fmt.Println("Default config generated: config.yaml")
		return
	}

	cfg, err := config.LoadConfig(*configPath, pflag.CommandLine)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	log.Printf("Starting StreamScout v%s", Version)
	config.PrintConfig(cfg)

	var dbService *database.Service
	if cfg.Database.Path != "" {
		db, err := database.NewDB(cfg.Database.Path)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer db.Close()
		dbService = database.NewService(db)
	}

	// Keep the interface values nil when proxies are off; a typed nil
	// *manager.Manager would look like a configured pool.
	var (
		mgr       *manager.Manager
		proxies   manager.ProxyManager
		refresher runner.ProxyRefresher
	)
	if cfg.Proxy.Enabled {
		managerConfig := manager.Config{
			Sources: proxylist.SourceConfig{
				Timeout:   cfg.Fetch.Timeout,
				UserAgent: cfg.Fetch.UserAgent,
				Sources:   cfg.Proxy.Sources,
				File:      cfg.Proxy.File,
			},
			Checker: checker.Config{
				TestURL:    cfg.Proxy.TestURL,
				Timeout:    cfg.Proxy.CheckTimeout,
				MaxWorkers: cfg.Proxy.Workers,
				UserAgent:  cfg.Fetch.UserAgent,
			},
			Check:         cfg.Proxy.Check,
			MaxFailures:   cfg.Proxy.MaxFailures,
			CheckInterval: cfg.Proxy.RefreshInterval,
		}
		if dbService != nil {
			mgr = manager.NewDBManager(dbService, managerConfig)
		} else {
			mgr = manager.NewManager(managerConfig)
		}
		if err := mgr.Start(cfg.Proxy.RefreshInterval); err != nil {
			log.Fatalf("Failed to start proxy manager: %v", err)
		}
		defer mgr.Stop()
		proxies = mgr
		refresher = mgr
	}

	fetchConfig := fetch.Config{
		Timeout:        cfg.Fetch.Timeout,
		UserAgent:      cfg.Fetch.UserAgent,
		MaxRetries:     cfg.Fetch.MaxRetries,
		RatePerSecond:  cfg.Fetch.RatePerSecond,
		DirectFallback: cfg.Fetch.DirectFallback,
	}
	fetcher := fetch.New(fetchConfig, proxies)
	tlsFetcher := fetch.NewTLSFetcher(fetchConfig, proxies)
	defer tlsFetcher.Close()

	var capturer sites.Capturer
	pool, err := browser.NewPool(browser.Config{
		Enabled:   cfg.Browser.Enabled,
		PoolSize:  cfg.Browser.PoolSize,
		Timeout:   cfg.Browser.Timeout,
		Wait:      cfg.Browser.Wait,
		Headless:  cfg.Browser.Headless,
		UseProxy:  cfg.Browser.UseProxy,
		UserAgent: cfg.Fetch.UserAgent,
	}, proxies)
	switch {
	case errors.Is(err, browser.ErrDisabled):
		log.Println("Browser capture disabled, using static extraction only")
	case err != nil:
		log.Printf("Warning: Browser capture unavailable: %v", err)
	default:
		defer pool.Close()
		capturer = pool
	}

	dictionary, err := schedule.LoadDictionary(cfg.Dictionary.Path)
	if err != nil {
		log.Fatalf("Failed to load dictionary: %v", err)
	}

	streamCache, err := cache.New(cfg.Cache.RedisURL, cfg.Cache.Prefix, dbService)
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	defer streamCache.Close()

	resolver := sites.NewResolver(fetcher, capturer, streamCache, sites.ResolverConfig{
		CacheTTL:       cfg.Resolve.CacheTTL,
		MaxIframeDepth: cfg.Resolve.MaxIframeDepth,
		UserAgent:      cfg.Fetch.UserAgent,
	})

	multi, err := sites.NewMultiSiteWithConfig(cfg, sites.Deps{
		Fetcher:    fetcher,
		TLSFetcher: tlsFetcher,
		Resolver:   resolver,
		Proxies:    proxies,
		Dictionary: dictionary,
	}, *only)
	if err != nil {
		log.Fatalf("Failed to configure sites: %v", err)
	}

	var streamChecker runner.StreamChecker
	if cfg.Resolve.CheckStreams {
		plain := checker.NewStreamChecker(cfg.Fetch.Timeout, cfg.Resolve.Workers, cfg.Fetch.UserAgent)
		if dbService != nil {
			streamChecker = checker.NewDBStreamChecker(dbService, plain, cfg.Resolve.CheckInterval)
		} else {
			streamChecker = runner.PlainChecker{StreamChecker: plain}
		}
	}

	location, err := schedule.LoadLocation(cfg.Output.Timezone)
	if err != nil {
		log.Fatalf("Failed to load output timezone: %v", err)
	}
	playlistOptions := playlist.Options{
		Group:       cfg.Output.Group,
		Logo:        cfg.Output.Logo,
		HeaderStyle: cfg.Output.HeaderStyle,
		Location:    location,
	}

	interval := cfg.Run.Interval
	if *once {
		interval = 0
	}

	r := runner.New(runner.Deps{
		Sites:   multi,
		Proxies: refresher,
		DB:      dbService,
		Checker: streamChecker,
	}, runner.Config{
		Workers:      cfg.Resolve.Workers,
		WindowBefore: cfg.Resolve.WindowBefore,
		WindowAfter:  cfg.Resolve.WindowAfter,
		OutputDir:    cfg.Output.Dir,
		M3UFile:      cfg.Output.M3UFile,
		JSONFile:     cfg.Output.JSONFile,
		Playlist:     playlistOptions,
		Interval:     interval,
		Timeout:      cfg.Run.Timeout,
		MaxAge:       cfg.Database.MaxAge,
	})

	serve := cfg.Server.Enabled && !*once
	if interval <= 0 && !serve {
		result, err := r.Run(context.Background())
		if err != nil {
			log.Fatalf("Run failed: %v", err)
		}
		log.Printf("Run %s finished in %v: %d events, %d streams, %d failed",
			result.RunID, result.Duration, result.Events, result.Streams, result.Failed)
		return
	}

	if interval > 0 {
		if err := r.Start(); err != nil {
			log.Fatalf("Failed to start runner: %v", err)
		}
	} else {
		r.Trigger()
	}

	var srv *server.Server
	if serve {
		srv = server.NewServer(r, proxies, dbService, &server.Config{
			ListenAddr:   cfg.Server.ListenAddr,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
			Playlist:     playlistOptions,
		})

		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Server error: %v", err)
			}
		}()

		log.Printf("Playlist server started on %s", cfg.Server.ListenAddr)
	}
	log.Println("Press Ctrl+C to stop")

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c
	log.Println("Shutting down...")

	// Stop scraping first so no run writes outputs mid-shutdown
	r.Stop()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}

	log.Println("Shutdown complete")
}
