package sales

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPGateway asks an external payment service whether an intent was paid.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

// NewHTTPGateway builds HTTPGateway against the service base URL.
func NewHTTPGateway(baseURL string) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type gatewayConfirmRequest struct {
	IntentID   string `json:"intent_id"`
	GatewayRef string `json:"gateway_ref,omitempty"`
}

type gatewayConfirmResponse struct {
	Confirmed bool `json:"confirmed"`
}

// Confirm implements PaymentGateway.
func (g *HTTPGateway) Confirm(ctx context.Context, intentID, gatewayRef string) (bool, error) {
	body, err := json.Marshal(gatewayConfirmRequest{IntentID: intentID, GatewayRef: gatewayRef})
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/confirm", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	var out gatewayConfirmResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, err
	}
	return out.Confirmed, nil
}
