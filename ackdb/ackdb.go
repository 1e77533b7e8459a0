// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

// Package ackdb records, per origin, how far the chain has acknowledged the
// messages this worker submitted. The acknowledged positions drive purging
// of the send queue and survive worker restarts.
package ackdb

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/vabaly/phala-blockchain/config"
	"github.com/vabaly/phala-blockchain/logger"
	"github.com/vabaly/phala-blockchain/origin"
	"github.com/vabaly/phala-blockchain/util"
)

// ackScript stores ARGV[2] in field ARGV[1] of the hash KEYS[1] unless the
// stored value is already at least as large, and returns the stored value.
var ackScript = redis.NewScript(`
local cur = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
local next = tonumber(ARGV[2])
if next > cur then
	redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
	return next
end
return cur
`)

// AckDB maps each origin to the next sequence number the chain expects from
// it. Stored values never decrease.
type AckDB struct {
	cfg     config.RedisConfig
	rdb     redis.UniversalClient
	acksKey string // all acks live in one hash
}

// New creates an AckDB
func New(cfg config.RedisConfig) *AckDB {
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:       cfg.Addrs,
		Password:    cfg.Password,
		DialTimeout: cfg.DialTimeout,
		PoolSize:    cfg.PoolSize,
	})
	return &AckDB{
		cfg:     cfg,
		rdb:     rdb,
		acksKey: cfg.Key("acks"),
	}
}

func field(o origin.Origin) string {
	return hex.EncodeToString(o.AppendBinary(nil))
}

func originFromField(f string) (origin.Origin, error) {
	bs, err := hex.DecodeString(f)
	if err != nil {
		return origin.Origin{}, fmt.Errorf("hex-decoding field: %v", err)
	}
	return origin.Parse(bs)
}

// Close should be called when the AckDB is no longer used
func (a *AckDB) Close() error {
	return a.rdb.Close()
}

// Ack records that the chain has accepted every message from o below
// nextSequence, returning the stored position, which may be higher than
// nextSequence if a later ack was already recorded.
//
// This method retries until the write succeeds or the provided context is cancelled
func (a *AckDB) Ack(ctx context.Context, o origin.Origin, nextSequence uint64) (uint64, error) {
	return util.RetrySupplierWithBackoff(ctx, func() (uint64, error) {
		stored, err := ackScript.Run(ctx, a.rdb, []string{a.acksKey}, field(o), strconv.FormatUint(nextSequence, 10)).Int64()
		if err != nil {
			logger.Errorw("ack script error", "origin", o, "err", err)
			return 0, err
		}
		return uint64(stored), nil
	}, a.cfg.MinSleepDuration, a.cfg.MaxSleepDuration)
}

// Get returns the acknowledged position of o, or 0 if none was recorded
func (a *AckDB) Get(ctx context.Context, o origin.Origin) (uint64, error) {
	v, err := a.rdb.HGet(ctx, a.acksKey, field(o)).Result()
	if err == redis.Nil {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return strconv.ParseUint(v, 10, 64)
}

// Thresholds returns the acknowledged positions of origins. Origins without
// a recorded ack are mapped to 0.
func (a *AckDB) Thresholds(ctx context.Context, origins []origin.Origin) (map[origin.Origin]uint64, error) {
	ret := make(map[origin.Origin]uint64, len(origins))
	if len(origins) == 0 {
		return ret, nil
	}
	fields := make([]string, len(origins))
	for i, o := range origins {
		fields[i] = field(o)
	}
	vals, err := a.rdb.HMGet(ctx, a.acksKey, fields...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			ret[origins[i]] = 0
			continue
		}
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ack for %v: %w", origins[i], err)
		}
		ret[origins[i]] = n
	}
	return ret, nil
}

// List fetches every recorded ack
func (a *AckDB) List(ctx context.Context) (map[origin.Origin]uint64, error) {
	vals, err := a.rdb.HGetAll(ctx, a.acksKey).Result()
	if err != nil {
		return nil, err
	}
	ret := make(map[origin.Origin]uint64, len(vals))
	for f, v := range vals {
		o, err := originFromField(f)
		if err != nil {
			return nil, fmt.Errorf("invalid ack field %v: %w", f, err)
		}
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ack for %v: %w", o, err)
		}
		ret[o] = n
	}
	logger.Debugf("Retrieved %v acks from ackdb", len(ret))
	return ret, nil
}

// Ping checks connectivity
func (a *AckDB) Ping(ctx context.Context) error {
	return a.rdb.Ping(ctx).Err()
}
