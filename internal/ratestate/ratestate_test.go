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

package ratestate

import (
	"context"
	"testing"
)

type fakeEvaler struct {
	suppressClaimed map[string]bool
	counters        map[string]int64
}

func newFakeEvaler() *fakeEvaler {
	return &fakeEvaler{suppressClaimed: make(map[string]bool), counters: make(map[string]int64)}
}

func (f *fakeEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	switch script {
	case suppressLuaScript:
		key := keys[0]
		if f.suppressClaimed[key] {
			return int64(0), nil
		}
		f.suppressClaimed[key] = true
		return int64(1), nil
	case rateLimitLuaScript:
		key := keys[0]
		f.counters[key]++
		return f.counters[key], nil
	default:
		return nil, nil
	}
}

func Test_DisabledMirror_AlwaysProceeds(t *testing.T) {
	m := NewDisabled()
	ok, err := m.ClaimSuppression(context.Background(), "rule-a", 60)
	if err != nil || !ok {
		t.Fatalf("expected a disabled mirror to always claim: ok=%v err=%v", ok, err)
	}
	n, err := m.IncrementRateLimit(context.Background(), "rule-a", 60)
	if err != nil || n != 1 {
		t.Fatalf("expected a disabled mirror to report count 1: n=%d err=%v", n, err)
	}
}

func Test_Mirror_SuppressionIsExclusiveAcrossInstances(t *testing.T) {
	fake := newFakeEvaler()
	a := New(fake, "cluster1")
	b := New(fake, "cluster1")

	ok, err := a.ClaimSuppression(context.Background(), "rule-a", 60)
	if err != nil || !ok {
		t.Fatalf("expected the first claimant to win: ok=%v err=%v", ok, err)
	}
	ok, err = b.ClaimSuppression(context.Background(), "rule-a", 60)
	if err != nil || ok {
		t.Fatalf("expected a second instance to be denied the same marker: ok=%v err=%v", ok, err)
	}
}

func Test_Mirror_RateLimitCounterIncrementsAcrossCalls(t *testing.T) {
	fake := newFakeEvaler()
	m := New(fake, "cluster1")

	for i := int64(1); i <= 3; i++ {
		n, err := m.IncrementRateLimit(context.Background(), "rule-b", 60)
		if err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
		if n != i {
			t.Fatalf("expected count %d, got %d", i, n)
		}
	}
}

func Test_Mirror_NamespacesKeysByPrefix(t *testing.T) {
	fake := newFakeEvaler()
	a := New(fake, "clusterA")
	b := New(fake, "clusterB")

	if _, err := a.ClaimSuppression(context.Background(), "rule-a", 60); err != nil {
		t.Fatalf("claim: %v", err)
	}
	ok, err := b.ClaimSuppression(context.Background(), "rule-a", 60)
	if err != nil || !ok {
		t.Fatalf("expected a differently-prefixed mirror to have an independent marker: ok=%v err=%v", ok, err)
	}
}
