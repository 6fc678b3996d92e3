package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// TransactionStatus mirrors the gateway's charge lifecycle.
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "pending"
	StatusSettlement TransactionStatus = "settlement"
	StatusCapture    TransactionStatus = "capture"
	StatusDeny       TransactionStatus = "deny"
	StatusCancel     TransactionStatus = "cancel"
	StatusExpire     TransactionStatus = "expire"
)

// Settled reports whether the status means the money arrived.
func (s TransactionStatus) Settled() bool {
	return s == StatusSettlement || s == StatusCapture
}

type ChargeRequest struct {
	OrderID   string `json:"order_id"`
	Amount    int64  `json:"gross_amount"`
	ItemName  string `json:"item_name"`
	Quantity  int    `json:"quantity"`
	PayerID   string `json:"payer_id"`
	PayerName string `json:"payer_name"`
}

type Transaction struct {
	TransactionID string `json:"transaction_id"`
	QRISURL       string `json:"qris_url"`
	RedirectURL   string `json:"redirect_url"`
}

// Client talks to the QRIS payment gateway. The order id doubles as the
// gateway's idempotency key, so retrying a charge for the same order is safe.
type Client struct {
	baseURL    string
	serverKey  string
	httpClient *http.Client
}

func NewClient(baseURL, serverKey string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		serverKey:  serverKey,
		httpClient: httpClient,
	}
}

type chargeBody struct {
	PaymentType        string `json:"payment_type"`
	TransactionDetails struct {
		OrderID     string `json:"order_id"`
		GrossAmount int64  `json:"gross_amount"`
	} `json:"transaction_details"`
	ItemDetails []struct {
		Name     string `json:"name"`
		Price    int64  `json:"price"`
		Quantity int    `json:"quantity"`
	} `json:"item_details"`
	CustomerDetails struct {
		FirstName string `json:"first_name"`
	} `json:"customer_details"`
}

type chargeResponse struct {
	TransactionID string `json:"transaction_id"`
	StatusCode    string `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Actions       []struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"actions"`
	RedirectURL string `json:"redirect_url"`
}

// Charge creates a QRIS transaction for the order amount.
func (c *Client) Charge(ctx context.Context, charge ChargeRequest) (*Transaction, error) {
	var body chargeBody
	body.PaymentType = "qris"
	body.TransactionDetails.OrderID = charge.OrderID
	body.TransactionDetails.GrossAmount = charge.Amount
	body.ItemDetails = append(body.ItemDetails, struct {
		Name     string `json:"name"`
		Price    int64  `json:"price"`
		Quantity int    `json:"quantity"`
	}{Name: charge.ItemName, Price: charge.Amount, Quantity: 1})
	body.CustomerDetails.FirstName = charge.PayerName

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal charge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/charge", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create charge request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("charge order %s: %w", charge.OrderID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("gateway returned status %d for charge %s", resp.StatusCode, charge.OrderID)
	}

	var decoded chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode charge response: %w", err)
	}

	tx := &Transaction{
		TransactionID: decoded.TransactionID,
		RedirectURL:   decoded.RedirectURL,
	}
	for _, action := range decoded.Actions {
		if action.Name == "generate-qr-code" {
			tx.QRISURL = action.URL
		}
	}

	return tx, nil
}

type statusResponse struct {
	TransactionStatus string `json:"transaction_status"`
	StatusCode        string `json:"status_code"`
}

// GetStatus polls the gateway for the transaction backing an order. A
// timed-out or cancelled poll is reported as pending so callers retry
// instead of failing the order.
func (c *Client) GetStatus(ctx context.Context, orderID string) (TransactionStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/"+orderID+"/status", nil)
	if err != nil {
		return "", fmt.Errorf("create status request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return StatusPending, nil
		}
		return "", fmt.Errorf("get status for order %s: %w", orderID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return StatusPending, nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gateway returned status %d for order %s", resp.StatusCode, orderID)
	}

	var decoded statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode status response: %w", err)
	}

	return TransactionStatus(decoded.TransactionStatus), nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	auth := base64.StdEncoding.EncodeToString([]byte(c.serverKey + ":"))
	req.Header.Set("Authorization", "Basic "+auth)
}
