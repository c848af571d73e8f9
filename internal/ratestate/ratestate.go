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

// Package ratestate optionally mirrors hook/alert suppression and
// rate-limit state to Redis so several netwatchd processes sharing one
// rule set do not each independently re-trigger a rule that is already
// suppressed (or rate-limited) on a sibling instance. Disabled by
// default: internal/hooks and internal/alerts keep their in-process
// state as the source of truth regardless, and only consult a Mirror
// when one is configured.
package ratestate

import (
	"context"
	"fmt"
	"time"
)

// RedisEvaler abstracts the minimal Redis surface a Mirror needs,
// matching the teacher's persistence.RedisEvaler shape. A
// github.com/redis/go-redis/v9 client needs a small adapter, since its
// Eval returns a *redis.Cmd (see cmd/netwatchd/redis.go).
type RedisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
}

// suppressLuaScript claims a distributed suppression marker. It returns
// 1 if this call won the race and the caller should proceed, 0 if
// another instance already holds the marker.
const suppressLuaScript = `
local marker = KEYS[1]
local ttl = tonumber(ARGV[1])
local set = redis.call('SETNX', marker, 1)
if set == 1 then
  if ttl and ttl > 0 then
    redis.call('EXPIRE', marker, ttl)
  end
  return 1
else
  return 0
end
`

// rateLimitLuaScript increments a fixed-window counter and arms its
// expiry on first use within the window, returning the post-increment
// count.
const rateLimitLuaScript = `
local counter = KEYS[1]
local ttl = tonumber(ARGV[1])
local n = redis.call('INCR', counter)
if n == 1 then
  redis.call('EXPIRE', counter, ttl)
end
return n
`

func suppressMarkerKey(prefix, ruleName string) string {
	return fmt.Sprintf("%s:suppress:%s", prefix, ruleName)
}

func rateLimitCounterKey(prefix, ruleName string) string {
	return fmt.Sprintf("%s:ratelimit:%s", prefix, ruleName)
}

// Mirror optionally forwards suppression/rate-limit decisions to Redis.
// A zero-value Mirror (or one built with NewDisabled) is inert: every
// method reports "proceed" without touching the network, so callers can
// hold an unconditional Mirror reference and only pay for Redis when a
// deployment opts in.
type Mirror struct {
	client  RedisEvaler
	prefix  string
	enabled bool
}

// New returns a Mirror that forwards to client, namespacing its keys
// under prefix (e.g. the netwatchd instance's cluster name).
func New(client RedisEvaler, prefix string) *Mirror {
	return &Mirror{client: client, prefix: prefix, enabled: true}
}

// NewDisabled returns an inert Mirror. hooks.New installs one by default;
// internal/glue replaces it only when Redis mirroring is configured.
func NewDisabled() *Mirror {
	return &Mirror{enabled: false}
}

// Enabled reports whether this Mirror forwards to Redis.
func (m *Mirror) Enabled() bool { return m != nil && m.enabled }

// ClaimSuppression attempts to claim the distributed suppression marker
// for ruleName for windowSec seconds. It returns true if this caller won
// the claim (i.e. no other instance holds it) and should proceed to
// trigger; a disabled Mirror always returns true.
func (m *Mirror) ClaimSuppression(ctx context.Context, ruleName string, windowSec int) (bool, error) {
	if !m.Enabled() {
		return true, nil
	}
	key := suppressMarkerKey(m.prefix, ruleName)
	res, err := m.client.Eval(ctx, suppressLuaScript, []string{key}, windowSec)
	if err != nil {
		return false, fmt.Errorf("ratestate: suppression claim for %q: %w", ruleName, err)
	}
	return toInt64(res) == 1, nil
}

// IncrementRateLimit increments the distributed counter for ruleName and
// returns the post-increment count within the current windowSec bucket.
// A disabled Mirror always returns (1, nil) so callers that add this
// count to a local decision never see a false positive from an unwired
// Mirror.
func (m *Mirror) IncrementRateLimit(ctx context.Context, ruleName string, windowSec int) (int64, error) {
	if !m.Enabled() {
		return 1, nil
	}
	key := rateLimitCounterKey(m.prefix, ruleName)
	res, err := m.client.Eval(ctx, rateLimitLuaScript, []string{key}, windowSec)
	if err != nil {
		return 0, fmt.Errorf("ratestate: rate-limit increment for %q: %w", ruleName, err)
	}
	return toInt64(res), nil
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}

// defaultEvalTimeout bounds a single Eval call when a caller does not
// already carry a deadline on ctx.
const defaultEvalTimeout = 2 * time.Second

// WithDefaultTimeout wraps ctx with defaultEvalTimeout if it does not
// already carry a deadline, mirroring the teacher's context.WithTimeout
// idiom used around exec/webhook calls.
func WithDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultEvalTimeout)
}
