// Copyright (c) 2025 vtrunkd authors
// Licensed under AGPL-3.0 - see LICENSE file for details
// WireGuard® is a registered trademark of Jason A. Donenfeld.

package main

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vtrunkd/vtrunkd/internal/config"
	"github.com/vtrunkd/vtrunkd/internal/orchestrator"
)

// run builds the orchestrator, serves Prometheus metrics, and blocks until
// ctx is cancelled or the orchestrator exits with error.
func run(ctx context.Context, cfg config.Config, logger *log.Logger, metricsAddr string) error {
	reg := prometheus.NewRegistry()

	o, err := orchestrator.New(cfg, logger, reg)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warnf("metrics server: %v", err)
		}
	}()
	defer metricsSrv.Close()

	return o.Run(ctx)
}
