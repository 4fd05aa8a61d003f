package gateways

import (
	"context"
	"sync"

	"github.com/giovaniif/vending-machine/protocols"
)

const (
	statusProcessing = "processing"
	statusSuccess    = "success"
)

type VendIdempotencyGatewayMemory struct {
	mutex           sync.RWMutex
	idempotencyKeys map[string]*vendState
}

type vendState struct {
	Status string                           `json:"status"`
	Result *protocols.VendIdempotencyResult `json:"result,omitempty"`
}

func NewVendIdempotencyGatewayMemory() *VendIdempotencyGatewayMemory {
	return &VendIdempotencyGatewayMemory{
		idempotencyKeys: make(map[string]*vendState),
	}
}

func (g *VendIdempotencyGatewayMemory) ReserveIdempotencyKey(ctx context.Context, idempotencyKey string) (*protocols.VendIdempotencyResult, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	state, exists := g.idempotencyKeys[idempotencyKey]
	if exists {
		if state.Status == statusSuccess {
			return state.Result, nil
		}

		if state.Status == statusProcessing {
			return nil, protocols.ErrIdempotencyKeyInProgress
		}

		delete(g.idempotencyKeys, idempotencyKey)
	}

	g.idempotencyKeys[idempotencyKey] = &vendState{
		Status: statusProcessing,
	}
	return nil, nil
}

func (g *VendIdempotencyGatewayMemory) MarkFailure(ctx context.Context, idempotencyKey string) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	delete(g.idempotencyKeys, idempotencyKey)
	return nil
}

func (g *VendIdempotencyGatewayMemory) MarkSuccess(ctx context.Context, idempotencyKey string, result protocols.VendIdempotencyResult) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if state, exists := g.idempotencyKeys[idempotencyKey]; exists {
		result.Success = true
		state.Status = statusSuccess
		state.Result = &result
	}

	return nil
}
