package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"hazard-reporter/reporter"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	var configPath string
	var envFile string
	var listenAddr string
	var reportsCSV string
	var uploadsDir string
	var indexDB string
	var syslogAddr string
	var entitiesCSV string
	var maxUploadMB int
	var debug bool
	var initOnly bool

	flag.StringVar(&configPath, "config", "", "YAML config file path.")
	flag.StringVar(&envFile, "env-file", ".env", "Optional .env file with HAZARD_* overrides.")
	flag.StringVar(&listenAddr, "listen", reporter.DefaultListenAddr, "HTTP listen address.")
	flag.StringVar(&reportsCSV, "reports-csv", reporter.DefaultReportsCSV, "Append-only reports log (CSV).")
	flag.StringVar(&uploadsDir, "uploads-dir", reporter.DefaultUploadsDir, "Directory for report photos.")
	flag.StringVar(&indexDB, "index-db", "", "SQLite side index path. Empty disables the index.")
	flag.StringVar(&syslogAddr, "syslog-addr", "", "Syslog receiver (tcp) notified of every report. Empty disables.")
	flag.StringVar(&entitiesCSV, "entities", "", "Comma-separated location choices. Overrides config.")
	flag.IntVar(&maxUploadMB, "max-upload-mb", reporter.DefaultMaxUploadMB, "Maximum request size in MB.")
	flag.BoolVar(&debug, "debug", false, "Enable debug logs.")
	flag.BoolVar(&initOnly, "init-only", false, "Initialize storage and exit.")
	flag.Parse()

	visited := map[string]bool{}
	flag.CommandLine.Visit(func(f *flag.Flag) {
		visited[f.Name] = true
	})

	// Base config from file (optional), then environment, then explicit flags.
	cfg := &reporter.FileConfig{}
	if configPath != "" {
		fileCfg, err := reporter.LoadConfig(configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = fileCfg
	}
	if err := reporter.ApplyEnv(cfg, envFile); err != nil {
		log.Fatalf("load environment: %v", err)
	}

	if visited["listen"] {
		cfg.ListenAddr = listenAddr
	}
	if visited["reports-csv"] {
		cfg.ReportsCSV = reportsCSV
	}
	if visited["uploads-dir"] {
		cfg.UploadsDir = uploadsDir
	}
	if visited["index-db"] {
		cfg.IndexDB = indexDB
	}
	if visited["syslog-addr"] {
		cfg.Notify.SyslogAddr = syslogAddr
	}
	if visited["max-upload-mb"] {
		cfg.MaxUploadMB = maxUploadMB
	}
	if visited["debug"] {
		cfg.Debug = debug
	}
	if strings.TrimSpace(entitiesCSV) != "" {
		var entities reporter.EntityList
		for _, p := range strings.Split(entitiesCSV, ",") {
			if p = strings.TrimSpace(p); p != "" {
				entities = append(entities, p)
			}
		}
		cfg.Entities = entities
	}
	final := cfg.WithDefaults()

	if final.MaxUploadMB > 1024 {
		fmt.Fprintln(os.Stderr, "max upload too large (use --max-upload-mb <= 1024)")
		os.Exit(2)
	}

	submitter, err := reporter.NewSubmitter(reporter.SubmitterConfig{
		ReportsCSV:  final.ReportsCSV,
		UploadsDir:  final.UploadsDir,
		IndexDB:     final.IndexDB,
		Entities:    final.Entities,
		Debug:       final.Debug,
		Notify:      final.Notify,
		FixedLabels: final.FixedLabels,
	})
	if err != nil {
		log.Fatalf("init submitter: %v", err)
	}
	defer submitter.Close()

	if initOnly {
		log.Printf("storage ready: reports=%s uploads=%s", final.ReportsCSV, final.UploadsDir)
		return
	}

	metrics := reporter.NewMetrics()
	submitter.SetMetrics(metrics)

	router := reporter.NewRouter(submitter, metrics, int64(final.MaxUploadMB)<<20)
	srv := reporter.NewHTTPServer(final.ListenAddr, router)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	log.Printf("hazard-reporter listening on %s (reports=%s uploads=%s index=%q)", final.ListenAddr, final.ReportsCSV, final.UploadsDir, final.IndexDB)
	serveErr := serve(srv, quit, 10*time.Second)
	if err := submitter.Close(); err != nil {
		log.Printf("close submitter: %v", err)
	}
	if serveErr != nil {
		log.Fatalf("server error: %v", serveErr)
	}
}

// serve runs srv until quit fires or the listener fails, then shuts it down within grace.
func serve(srv *http.Server, quit <-chan os.Signal, grace time.Duration) error {
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-quit:
	case err := <-serveErr:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	return nil
}
