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

// Package main provides the entry point for the netwatchd demo binary.
//
// netwatchd wires a synthetic EventSource (standing in for the real
// kernel netlink decoder, which is out of scope) through the Event
// Processor into the hook, alert, correlation and security engines,
// loads an example rule set, exposes Prometheus metrics, and shuts down
// gracefully on SIGINT/SIGTERM.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"netwatch/internal/config"
	"netwatch/internal/glue"
	"netwatch/internal/logging"
	"netwatch/internal/pipeline/processor"
	"netwatch/internal/pipeline/ratelimit"
	"netwatch/internal/ratestate"
	"netwatch/internal/security"
	"netwatch/internal/telemetry"
)

func main() {
	rulesPath := flag.String("rules", "", "Path to a YAML rule file (see internal/config). If empty, a small built-in example set is used.")
	poolCapacity := flag.Int("pool_capacity", 4096, "Object pool capacity")
	ringCapacity := flag.Int("ring_capacity", 1024, "SPSC ring buffer capacity")
	workers := flag.Int("workers", 4, "Worker pool size")
	maxQueueLen := flag.Int("max_queue_len", 256, "Worker pool task queue bound")
	rateLimit := flag.Float64("rate_limit", 500, "Global event admission rate (events/sec)")
	rateBurst := flag.Float64("rate_burst", 1000, "Global event admission burst")
	typeRateLimit := flag.Float64("type_rate_limit", 200, "Per-event-type admission rate (events/sec)")
	typeRateBurst := flag.Float64("type_rate_burst", 400, "Per-event-type admission burst")
	maxHooks := flag.Int("max_hooks", 256, "Hook table capacity")
	hookConcurrency := flag.Int("hook_concurrency", 8, "Max simultaneously in-flight hook actions")
	historyCap := flag.Int("alert_history", 1024, "Alert history ring capacity")
	simInterfaces := flag.String("sim_interfaces", "eth0,eth1,wlan0", "Comma-separated interface names the simulated EventSource cycles through")
	simInterval := flag.Duration("sim_interval", 50*time.Millisecond, "Interval between simulated events")
	metricsAddr := flag.String("metrics_addr", ":9090", "Prometheus /metrics listen address; empty disables it")
	redisAddr := flag.String("redis_addr", "", "If non-empty, mirror hook suppression/rate-limit state to this Redis address")
	flag.Parse()

	var rules config.Rules
	if *rulesPath != "" {
		loaded, err := config.Load(*rulesPath)
		if err != nil {
			logging.Errorf("netwatchd: loading rules from %s: %v", *rulesPath, err)
			os.Exit(1)
		}
		rules = loaded
	} else {
		rules = builtinExampleRules()
	}

	var mirror *ratestate.Mirror
	if *redisAddr != "" {
		mirror = ratestate.New(newRedisClient(*redisAddr), "netwatchd")
		logging.Infof("netwatchd: mirroring hook state to redis at %s", *redisAddr)
	}

	sys, err := glue.Build(glue.Config{
		Processor: processor.Config{
			PoolCapacity: *poolCapacity,
			RingCapacity: *ringCapacity,
			Workers:      *workers,
			MaxQueueLen:  *maxQueueLen,
			Limiter: processor.AndLimiter{
				Global: processor.GlobalLimiter{Limiter: ratelimit.New(*rateLimit, *rateBurst)},
				Map:    processor.MapLimiter{Map: ratelimit.NewMap(*typeRateLimit, *typeRateBurst)},
			},
		},
		MaxHooks:    *maxHooks,
		Concurrency: *hookConcurrency,
		HistoryCap:  *historyCap,
		Rules:       rules,
		Security: security.Config{
			NeighborFloodWindowSec:  10,
			NeighborFloodThreshold:  50,
			InterfaceStormWindowSec: 10,
			InterfaceStormThreshold: 200,
			SuspiciousDenylist:      []string{"evil", "rogue", "backdoor"},
		},
		StateMirror: mirror,
	})
	if err != nil {
		logging.Errorf("netwatchd: wiring pipeline: %v", err)
		os.Exit(1)
	}

	if *metricsAddr != "" {
		telemetry.StartMetricsEndpoint(*metricsAddr)
		logging.Infof("netwatchd: prometheus metrics on %s", *metricsAddr)
	}

	sys.Processor.Start()

	ifaces := splitCSV(*simInterfaces)
	src := newSimSource(ifaces, *simInterval, time.Now().UnixNano())
	go src.Run()
	go glue.Run(src, sys)

	logging.Infof("netwatchd: running (%d workers, ring capacity %d)", *workers, *ringCapacity)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	fmt.Println()
	logging.Infof("netwatchd: shutting down")
	src.Stop()
	sys.Processor.Destroy(true)
	logging.Infof("netwatchd: stopped cleanly")
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if len(out) == 0 {
		return []string{"eth0"}
	}
	return out
}

// builtinExampleRules returns a small hand-written rule set used when
// -rules is not given, so the demo is runnable with no config file.
func builtinExampleRules() config.Rules {
	rules, err := config.Parse([]byte(builtinRulesYAML))
	if err != nil {
		// The built-in rule set is a compile-time constant; a parse
		// failure here is a programming error, not a runtime condition.
		panic(fmt.Sprintf("netwatchd: built-in example rules are invalid: %v", err))
	}
	return rules
}

const builtinRulesYAML = `
rules:
  - name: promiscuous-watch
    condition: 'event_type == 16'
    enabled: true
    severity: warning
    action:
      type: log
      path: /tmp/netwatchd-promiscuous.log
      append: true
  - name: default-route-change
    condition: 'event_type == 24'
    enabled: true
    severity: critical
    suppress_sec: 30
    action:
      type: log
      path: /tmp/netwatchd-routes.log
      append: true
  - name: neighbor-burst-alert
    condition: 'event_type == 28'
    enabled: true
    severity: warning
    kind: alert
`
