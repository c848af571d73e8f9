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

package main

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// redisEvaler adapts *redis.Client's Cmdable.Eval (which returns a
// *redis.Cmd) to ratestate.RedisEvaler's plain (interface{}, error)
// shape, the same adaptation the teacher's own RedisEvaler doc comment
// calls out as necessary for a real go-redis client.
type redisEvaler struct{ client *redis.Client }

func (r redisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	return r.client.Eval(ctx, script, keys, args...).Result()
}

// newRedisClient builds the ratestate.RedisEvaler-satisfying adapter
// for -redis_addr.
func newRedisClient(addr string) redisEvaler {
	return redisEvaler{client: redis.NewClient(&redis.Options{Addr: addr})}
}
