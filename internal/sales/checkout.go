package sales

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ferretek/ferretek/internal/shared"
)

// PaymentGateway is the external payment collaborator. The core never takes
// money itself; it acts on the gateway's confirmation signal.
type PaymentGateway interface {
	Confirm(ctx context.Context, intentID, gatewayRef string) (bool, error)
}

// CheckoutIntent is the handle returned to a storefront client while payment
// is in flight. The underlying sale is pending with stock reserved.
type CheckoutIntent struct {
	IntentID   string  `json:"intent_id"`
	SaleID     int64   `json:"sale_id"`
	SaleNumber string  `json:"sale_number"`
	Total      float64 `json:"total"`
}

// Checkout drives the gateway-backed sale flow: reserve stock under a
// pending sale, wait for the gateway signal, then complete or release.
type Checkout struct {
	service *Service
	gateway PaymentGateway
	redis   *redis.Client
	ttl     time.Duration
}

// NewCheckout builds Checkout. Intents expire after ttl; an expired intent
// leaves a pending sale that the stale-pending sweep or a staff release frees.
func NewCheckout(service *Service, gateway PaymentGateway, rdb *redis.Client, ttl time.Duration) *Checkout {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Checkout{service: service, gateway: gateway, redis: rdb, ttl: ttl}
}

func intentKey(id string) string {
	return fmt.Sprintf("sales:intent:%s", id)
}

// Begin creates a pending sale reserving its stock and stores a checkout
// intent pointing at it.
func (c *Checkout) Begin(ctx context.Context, actor shared.Actor, req CreateSaleRequest) (CheckoutIntent, error) {
	sale, err := c.service.createSale(ctx, actor, req, StatusPending)
	if err != nil {
		return CheckoutIntent{}, err
	}
	intent := CheckoutIntent{
		IntentID:   uuid.NewString(),
		SaleID:     sale.ID,
		SaleNumber: sale.Number,
		Total:      sale.Totals.Total,
	}
	payload, err := json.Marshal(intent)
	if err != nil {
		return CheckoutIntent{}, err
	}
	if err := c.redis.Set(ctx, intentKey(intent.IntentID), payload, c.ttl).Err(); err != nil {
		return CheckoutIntent{}, fmt.Errorf("store checkout intent: %w", err)
	}
	return intent, nil
}

// Confirm resolves an intent with the gateway's answer. A confirmed payment
// completes the pending sale; a declined one releases the reserved stock.
func (c *Checkout) Confirm(ctx context.Context, actor shared.Actor, intentID, gatewayRef string) (Sale, error) {
	raw, err := c.redis.Get(ctx, intentKey(intentID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Sale{}, ErrIntentNotFound
		}
		return Sale{}, fmt.Errorf("load checkout intent: %w", err)
	}
	var intent CheckoutIntent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return Sale{}, fmt.Errorf("decode checkout intent: %w", err)
	}

	confirmed, err := c.gateway.Confirm(ctx, intentID, gatewayRef)
	if err != nil {
		return Sale{}, fmt.Errorf("payment gateway: %w", err)
	}

	if !confirmed {
		if _, err := c.service.releasePending(ctx, intent.SaleID, "Payment declined for %s"); err != nil {
			return Sale{}, err
		}
		c.redis.Del(ctx, intentKey(intentID))
		return Sale{}, ErrPaymentDeclined
	}
	sale, err := c.service.CompleteSale(ctx, actor, intent.SaleID)
	if err != nil {
		// The intent stays stored so the caller can retry the confirmation.
		return Sale{}, err
	}
	c.redis.Del(ctx, intentKey(intentID))
	return sale, nil
}
