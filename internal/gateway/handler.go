// Package gateway is a stand-in for the QRIS payment gateway, used in
// local development and tests. It speaks the same charge/status surface
// the real gateway does and adds settle/cancel controls to simulate the
// payer's side.
package gateway

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smmstore/commerce-bot/internal/payment"
)

type transaction struct {
	ID        string
	OrderID   string
	Amount    int64
	Status    payment.TransactionStatus
	CreatedAt time.Time
}

type Handler struct {
	serverKey   string
	settleAfter time.Duration
	logger      *slog.Logger

	mu           sync.Mutex
	transactions map[string]*transaction
}

// NewHandler builds the simulated gateway. A non-zero settleAfter makes
// pending transactions settle on their own after that long, so demo flows
// complete without manual settle calls.
func NewHandler(serverKey string, settleAfter time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		serverKey:    serverKey,
		settleAfter:  settleAfter,
		logger:       logger,
		transactions: make(map[string]*transaction),
	}
}

type chargeRequest struct {
	PaymentType        string `json:"payment_type"`
	TransactionDetails struct {
		OrderID     string `json:"order_id"`
		GrossAmount int64  `json:"gross_amount"`
	} `json:"transaction_details"`
}

type chargeResponse struct {
	TransactionID string   `json:"transaction_id"`
	OrderID       string   `json:"order_id"`
	StatusCode    string   `json:"status_code"`
	StatusMessage string   `json:"status_message"`
	Actions       []action `json:"actions"`
}

type action struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (h *Handler) HandleCharge(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		h.writeError(w, http.StatusUnauthorized, "invalid server key")
		return
	}

	var req chargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TransactionDetails.OrderID == "" || req.TransactionDetails.GrossAmount <= 0 {
		h.writeError(w, http.StatusBadRequest, "order_id and gross_amount are required")
		return
	}

	// The real gateway takes its time.
	time.Sleep(time.Duration(20+rand.Intn(80)) * time.Millisecond)

	orderID := req.TransactionDetails.OrderID

	h.mu.Lock()
	tx, ok := h.transactions[orderID]
	if !ok {
		// The order id is the idempotency key: a retried charge returns
		// the transaction the first attempt created.
		tx = &transaction{
			ID:        uuid.New().String(),
			OrderID:   orderID,
			Amount:    req.TransactionDetails.GrossAmount,
			Status:    payment.StatusPending,
			CreatedAt: time.Now(),
		}
		h.transactions[orderID] = tx
	}
	h.mu.Unlock()

	h.logger.Info("charge created", "order_id", orderID, "transaction_id", tx.ID, "amount", tx.Amount)

	h.writeJSON(w, http.StatusCreated, chargeResponse{
		TransactionID: tx.ID,
		OrderID:       orderID,
		StatusCode:    "201",
		StatusMessage: "QRIS transaction is created",
		Actions: []action{
			{Name: "generate-qr-code", URL: "http://" + r.Host + "/v2/qr/" + orderID},
		},
	})
}

type statusResponse struct {
	TransactionID     string `json:"transaction_id"`
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	StatusCode        string `json:"status_code"`
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		h.writeError(w, http.StatusUnauthorized, "invalid server key")
		return
	}

	orderID := r.PathValue("orderId")

	h.mu.Lock()
	tx, ok := h.transactions[orderID]
	if ok && h.settleAfter > 0 && tx.Status == payment.StatusPending && time.Since(tx.CreatedAt) >= h.settleAfter {
		tx.Status = payment.StatusSettlement
	}
	var resp statusResponse
	if ok {
		resp = statusResponse{
			TransactionID:     tx.ID,
			OrderID:           tx.OrderID,
			TransactionStatus: string(tx.Status),
			StatusCode:        "200",
		}
	}
	h.mu.Unlock()

	if !ok {
		h.writeError(w, http.StatusNotFound, "transaction doesn't exist")
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// HandleSettle simulates the payer completing the QRIS payment.
func (h *Handler) HandleSettle(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, payment.StatusSettlement)
}

// HandleCancel simulates the transaction being voided on the gateway side.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, payment.StatusCancel)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request, status payment.TransactionStatus) {
	if !h.authorized(r) {
		h.writeError(w, http.StatusUnauthorized, "invalid server key")
		return
	}

	orderID := r.PathValue("orderId")

	h.mu.Lock()
	tx, ok := h.transactions[orderID]
	if ok {
		tx.Status = status
	}
	h.mu.Unlock()

	if !ok {
		h.writeError(w, http.StatusNotFound, "transaction doesn't exist")
		return
	}

	h.logger.Info("transaction status forced", "order_id", orderID, "status", status)
	h.writeJSON(w, http.StatusOK, map[string]string{
		"order_id":           orderID,
		"transaction_status": string(status),
	})
}

// qrPlaceholder is a 1x1 PNG; the bot only needs a fetchable image URL.
var qrPlaceholder = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x62, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func (h *Handler) HandleQR(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderId")

	h.mu.Lock()
	_, ok := h.transactions[orderID]
	h.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(qrPlaceholder)
}

func (h *Handler) authorized(r *http.Request) bool {
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte(h.serverKey+":"))
	return r.Header.Get("Authorization") == want
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
