package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"k8s.io/klog/v2"

	"github.com/aicluster-lab/gpuboard/internal"
	"github.com/aicluster-lab/gpuboard/internal/handler"
	"github.com/aicluster-lab/gpuboard/pkg/alert"
	"github.com/aicluster-lab/gpuboard/pkg/artifact"
	"github.com/aicluster-lab/gpuboard/pkg/config"
	"github.com/aicluster-lab/gpuboard/pkg/cronjob"
	"github.com/aicluster-lab/gpuboard/pkg/pipeline"
	"github.com/aicluster-lab/gpuboard/pkg/schedule"
	"github.com/aicluster-lab/gpuboard/pkg/tracker"
	"github.com/aicluster-lab/gpuboard/pkg/utils"
	"github.com/aicluster-lab/gpuboard/pkg/wandb"
)

func main() {
	klog.InitFlags(nil)
	startDate := flag.String("start-date", "", "first date to collect (YYYY-MM-DD, default yesterday)")
	endDate := flag.String("end-date", "", "last date to collect (YYYY-MM-DD, default yesterday)")
	daemon := flag.Bool("daemon", false, "run on the configured cron schedule and serve reports")
	flag.Parse()

	// variable changes in local development
	if gin.Mode() == gin.DebugMode {
		if err := godotenv.Load(".debug.env"); err != nil {
			klog.Warningf("Not loading .debug.env: %v", err)
		}
	}

	cfg := config.GetConfig()
	loc := utils.GetLocation()

	start, end, err := resolveDates(*startDate, *endDate, loc)
	if err != nil {
		klog.Fatalf("Invalid date range: %v", err)
	}

	store, err := newStore(cfg)
	if err != nil {
		klog.Fatalf("Artifact store init failed: %v", err)
	}

	resolver := schedule.NewResolver(cfg.Companies)
	api := wandb.NewClient(cfg.Tracking.BaseURL, cfg.Tracking.APIKey, cfg.Tracking.PageSize)
	collector := tracker.NewCollector(api, resolver, cfg, loc)
	pipe := pipeline.New(store, collector, resolver, alert.GetAlertMgr())

	if !*daemon {
		if _, err := pipe.Run(context.Background(), start, end); err != nil {
			klog.Fatalf("Pipeline failed: %v", err)
		}
		return
	}

	// First pass right away so the report endpoints have data to serve.
	if _, err := pipe.Run(context.Background(), start, end); err != nil {
		klog.Errorf("Initial pipeline pass failed: %v", err)
	}

	mgr := cronjob.NewCronJobManager(pipe, cfg.CronSpec, loc)
	if err := mgr.Start(); err != nil {
		klog.Fatalf("Cron init failed: %v", err)
	}

	backend := internal.Register(&handler.RegisterConfig{Reports: pipe})
	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           backend.R,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			klog.Fatalf("HTTP server failed: %v", err)
		}
	}()
	klog.Infof("Serving reports on %s", cfg.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	klog.Info("Shutting down")

	mgr.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		klog.Errorf("HTTP shutdown: %v", err)
	}
}

// resolveDates defaults both ends of the range to yesterday in local time.
func resolveDates(startStr, endStr string, loc *time.Location) (start, end time.Time, err error) {
	yesterday := utils.DateOf(time.Now().In(loc).AddDate(0, 0, -1))
	start, end = yesterday, yesterday
	if startStr != "" {
		if start, err = utils.ParseDate(startStr); err != nil {
			return start, end, fmt.Errorf("bad --start-date: %w", err)
		}
	}
	if endStr != "" {
		if end, err = utils.ParseDate(endStr); err != nil {
			return start, end, fmt.Errorf("bad --end-date: %w", err)
		}
	}
	if start.After(end) {
		return start, end, fmt.Errorf("start date %s is after end date %s",
			utils.FormatDate(start), utils.FormatDate(end))
	}
	return start, end, nil
}

func newStore(cfg *config.Config) (artifact.Store, error) {
	switch cfg.Artifact.Backend {
	case "postgres":
		return artifact.NewPostgresStore()
	default:
		return artifact.NewFSStore(cfg.Artifact.Dir)
	}
}
