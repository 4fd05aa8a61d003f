package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/giovaniif/vending-machine/domain/machine"
	"github.com/giovaniif/vending-machine/domain/selection"
	"github.com/giovaniif/vending-machine/infra/logging"
	"github.com/giovaniif/vending-machine/infra/metrics"
	"github.com/giovaniif/vending-machine/infra/requestid"
	"github.com/giovaniif/vending-machine/infra/tracing"
	"github.com/giovaniif/vending-machine/protocols"
	"github.com/giovaniif/vending-machine/use_cases/deposit"
	"github.com/giovaniif/vending-machine/use_cases/query"
	"github.com/giovaniif/vending-machine/use_cases/vend"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultRequestTimeout = 30 * time.Second

type Dependencies struct {
	Vend    *vend.Vend
	Deposit *deposit.Deposit
	Query   *query.Query

	// DepositAmount is credited when POST /deposit carries no amount.
	DepositAmount  decimal.Decimal
	RequestTimeout time.Duration
	// Redis is optional; /health reports it as n/a when nil.
	Redis  *redis.Client
	Logger *zap.Logger
}

type VendRequest struct {
	Selection string           `json:"selection"`
	Quantity  *decimal.Decimal `json:"quantity"`
}

type DepositRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

type ItemResponse struct {
	Selection string           `json:"selection"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Quantity  *decimal.Decimal `json:"quantity,omitempty"`
	Available bool             `json:"available"`
}

type VendResponse struct {
	Selection  string          `json:"selection"`
	Quantity   decimal.Decimal `json:"quantity"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Remaining  decimal.Decimal `json:"remaining"`
	Balance    decimal.Decimal `json:"balance"`
	Replayed   bool            `json:"replayed"`
}

type ErrorResponse struct {
	Error    string           `json:"error"`
	Message  string           `json:"message,omitempty"`
	Required *decimal.Decimal `json:"required,omitempty"`
}

func NewRouter(deps Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = defaultRequestTimeout
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		requestid.Middleware(),
		tracing.Middleware(),
		metrics.Middleware,
		logging.Middleware(deps.Logger),
	)

	r.GET("/metrics", metrics.Handler())

	r.GET("/health", func(c *gin.Context) {
		status := "healthy"
		redisCheck := "n/a"
		if deps.Redis != nil {
			if err := deps.Redis.Ping(c.Request.Context()).Err(); err != nil {
				status = "degraded"
				redisCheck = "down"
			} else {
				redisCheck = "up"
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": status, "checks": gin.H{"redis": redisCheck}})
	})

	r.GET("/selections", func(c *gin.Context) {
		selections := deps.Query.Selections()
		out := make([]string, len(selections))
		for i, s := range selections {
			out[i] = s.String()
		}
		c.JSON(http.StatusOK, gin.H{"selections": out})
	})

	r.GET("/items", func(c *gin.Context) {
		views := deps.Query.Items()
		out := make([]ItemResponse, len(views))
		for i, v := range views {
			out[i] = itemResponse(v)
		}
		c.JSON(http.StatusOK, gin.H{"items": out})
	})

	r.GET("/items/:selection", func(c *gin.Context) {
		s, err := selection.Parse(c.Param("selection"))
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		v, err := deps.Query.Item(s)
		if err != nil {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Invalid Selection!"})
			return
		}
		c.JSON(http.StatusOK, itemResponse(v))
	})

	r.GET("/balance", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"balance": deps.Query.Balance()})
	})

	r.POST("/deposit", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), deps.RequestTimeout)
		defer cancel()

		var depositRequest DepositRequest
		if err := c.ShouldBindJSON(&depositRequest); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		amount := deps.DepositAmount
		if depositRequest.Amount != nil {
			amount = *depositRequest.Amount
		}
		if !amount.IsPositive() {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "amount must be positive"})
			return
		}

		out, err := deps.Deposit.Deposit(ctx, deposit.Input{Amount: amount})
		if err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"amount": out.Amount, "balance": out.Balance})
	})

	r.POST("/vend", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), deps.RequestTimeout)
		defer cancel()

		var vendRequest VendRequest
		if err := c.ShouldBindJSON(&vendRequest); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		s, err := selection.Parse(vendRequest.Selection)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		quantity := decimal.NewFromInt(1)
		if vendRequest.Quantity != nil {
			quantity = *vendRequest.Quantity
		}
		if !quantity.IsPositive() || !quantity.IsInteger() {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "quantity must be a positive whole number"})
			return
		}

		out, err := deps.Vend.Vend(ctx, vend.Input{
			Selection:      s,
			Quantity:       quantity,
			IdempotencyKey: c.GetHeader("Idempotency-Key"),
		})
		if err != nil {
			status, body := vendErrorResponse(err)
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusOK, VendResponse{
			Selection:  out.Selection.String(),
			Quantity:   out.Quantity,
			TotalPrice: out.TotalPrice,
			Remaining:  out.Remaining,
			Balance:    out.Balance,
			Replayed:   out.Replayed,
		})
	})

	return r
}

func itemResponse(v query.ItemView) ItemResponse {
	resp := ItemResponse{Selection: v.Selection.String(), Available: v.Available}
	if v.Stocked {
		price, quantity := v.Price, v.Quantity
		resp.Price = &price
		resp.Quantity = &quantity
	}
	return resp
}

func vendErrorResponse(err error) (int, ErrorResponse) {
	var fundsErr *machine.InsufficientFundsError
	switch {
	case errors.As(err, &fundsErr):
		required := fundsErr.Required
		return http.StatusPaymentRequired, ErrorResponse{
			Error:    "Insufficient funds",
			Message:  fmt.Sprintf("Additional $%s needed to complete the transaction", required.StringFixed(2)),
			Required: &required,
		}
	case errors.Is(err, machine.ErrInvalidSelection):
		return http.StatusNotFound, ErrorResponse{Error: "Invalid Selection!"}
	case errors.Is(err, machine.ErrOutOfStock):
		return http.StatusConflict, ErrorResponse{Error: "Out of Stock"}
	case errors.Is(err, protocols.ErrIdempotencyKeyInProgress), errors.Is(err, protocols.ErrIdempotencyKeyMismatch):
		return http.StatusConflict, ErrorResponse{Error: err.Error()}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, ErrorResponse{Error: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: err.Error()}
	}
}
