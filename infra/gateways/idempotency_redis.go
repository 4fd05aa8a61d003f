package gateways

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/giovaniif/vending-machine/protocols"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyPrefix = "idempotency:vend:"
	idempotencyTTL       = 24 * time.Hour
)

type VendIdempotencyGatewayRedis struct {
	client *redis.Client
}

func NewVendIdempotencyGatewayRedis(client *redis.Client) *VendIdempotencyGatewayRedis {
	return &VendIdempotencyGatewayRedis{client: client}
}

func (g *VendIdempotencyGatewayRedis) key(idempotencyKey string) string {
	return idempotencyKeyPrefix + idempotencyKey
}

func (g *VendIdempotencyGatewayRedis) ReserveIdempotencyKey(ctx context.Context, idempotencyKey string) (*protocols.VendIdempotencyResult, error) {
	k := g.key(idempotencyKey)

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		data, err := g.client.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			raw, _ := json.Marshal(vendState{Status: statusProcessing})
			_, err := g.client.SetArgs(ctx, k, raw, redis.SetArgs{Mode: "NX", TTL: idempotencyTTL}).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("redis set: %w", err)
			}
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("redis get: %w", err)
		}

		var state vendState
		if err := json.Unmarshal(data, &state); err != nil {
			return nil, fmt.Errorf("redis unmarshal: %w", err)
		}

		switch state.Status {
		case statusSuccess:
			return state.Result, nil
		case statusProcessing:
			return nil, protocols.ErrIdempotencyKeyInProgress
		default:
			raw, _ := json.Marshal(vendState{Status: statusProcessing})
			if err := g.client.Set(ctx, k, raw, idempotencyTTL).Err(); err != nil {
				return nil, fmt.Errorf("redis set: %w", err)
			}
			return nil, nil
		}
	}
}

func (g *VendIdempotencyGatewayRedis) MarkFailure(ctx context.Context, idempotencyKey string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return g.client.Del(ctx, g.key(idempotencyKey)).Err()
}

func (g *VendIdempotencyGatewayRedis) MarkSuccess(ctx context.Context, idempotencyKey string, result protocols.VendIdempotencyResult) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	result.Success = true
	raw, err := json.Marshal(vendState{Status: statusSuccess, Result: &result})
	if err != nil {
		return err
	}
	return g.client.Set(ctx, g.key(idempotencyKey), raw, idempotencyTTL).Err()
}
