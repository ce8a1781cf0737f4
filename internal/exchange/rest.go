// internal/exchange/rest.go
package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const orderPath = "/api/v3/order"

// RESTClient places signed market orders against a Binance-style REST API.
type RESTClient struct {
	baseURL    string
	apiKey     string
	secretKey  []byte
	httpClient *http.Client
	logger     *zap.Logger
	maxElapsed time.Duration
}

// RESTClientConfig configures the REST order client.
type RESTClientConfig struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	Timeout    time.Duration
	MaxElapsed time.Duration
	Logger     *zap.Logger
}

// NewRESTClient creates a REST order client.
func NewRESTClient(cfg *RESTClientConfig) *RESTClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	maxElapsed := cfg.MaxElapsed
	if maxElapsed == 0 {
		maxElapsed = 15 * time.Second
	}
	return &RESTClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		secretKey:  []byte(cfg.APISecret),
		httpClient: &http.Client{Timeout: timeout},
		logger:     cfg.Logger.Named("exchange"),
		maxElapsed: maxElapsed,
	}
}

// PlaceMarketOrder submits a market order and retries transient failures
// with exponential backoff. Orders the venue rejects outright are not
// retried.
func (c *RESTClient) PlaceMarketOrder(ctx context.Context, side Side, ticker string, quantity float64) (*OrderResult, error) {
	clientOrderID := uuid.New().String()

	c.logger.Info("Placing market order",
		zap.String("ticker", ticker),
		zap.String("side", string(side)),
		zap.Float64("quantity", quantity),
		zap.String("client_order_id", clientOrderID))

	op := func() (*OrderResult, error) {
		return c.submitOrder(ctx, side, ticker, quantity, clientOrderID)
	}

	result, err := backoff.Retry(
		ctx,
		op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(c.maxElapsed),
	)
	if err != nil {
		c.logger.Error("Market order failed",
			zap.String("ticker", ticker),
			zap.String("side", string(side)),
			zap.Error(err))
		return nil, err
	}

	c.logger.Info("Market order executed",
		zap.String("ticker", ticker),
		zap.String("side", string(side)),
		zap.String("order_id", result.OrderID))
	return result, nil
}

type orderResponse struct {
	Symbol        string `json:"symbol"`
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	TransactTime  int64  `json:"transactTime"`
	ExecutedQty   string `json:"executedQty"`
}

type apiErrorResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (c *RESTClient) submitOrder(ctx context.Context, side Side, ticker string, quantity float64, clientOrderID string) (*OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", ticker)
	params.Set("side", string(side))
	params.Set("type", "MARKET")
	params.Set("quantity", strconv.FormatFloat(quantity, 'f', -1, 64))
	params.Set("newClientOrderId", clientOrderID)
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))

	query := params.Encode()
	query += "&signature=" + c.sign(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+orderPath+"?"+query, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build order request: %w", err))
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors are worth retrying.
		return nil, fmt.Errorf("submit order: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read order response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		if jsonErr := json.Unmarshal(body, &apiErr); jsonErr == nil && apiErr.Msg != "" {
			wrapped := &APIError{Code: apiErr.Code, Message: apiErr.Msg}
			if resp.StatusCode >= http.StatusInternalServerError {
				return nil, wrapped
			}
			// 4xx means the venue rejected the order; retrying won't help.
			return nil, backoff.Permanent(wrapped)
		}
		err := fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	var order orderResponse
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode order response: %w", err))
	}

	executedQty, err := strconv.ParseFloat(order.ExecutedQty, 64)
	if err != nil {
		executedQty = quantity
	}

	return &OrderResult{
		OrderID:       strconv.FormatInt(order.OrderID, 10),
		ClientOrderID: order.ClientOrderID,
		Ticker:        order.Symbol,
		Side:          side,
		Quantity:      executedQty,
		ExecutedAt:    time.UnixMilli(order.TransactTime),
	}, nil
}

func (c *RESTClient) sign(payload string) string {
	mac := hmac.New(sha256.New, c.secretKey)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// IsRejection reports whether err is a venue-side order rejection.
func IsRejection(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
