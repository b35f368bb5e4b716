package handlers

import (
	"errors"
	"net/http"

	"tradeengine/internal/service"
)

// ConnectBrokerRequest is the request body for connecting the broker.
type ConnectBrokerRequest struct {
	APIKey     string `json:"api_key"`
	SecretKey  string `json:"secret_key"`
	Passphrase string `json:"passphrase,omitempty"`
}

// BrokerResponse describes the broker account's current status.
type BrokerResponse struct {
	Name      string  `json:"name"`
	Connected bool    `json:"connected"`
	Balance   float64 `json:"balance"`
	LastError string  `json:"last_error,omitempty"`
}

// BalanceResponse carries the broker's available margin.
type BalanceResponse struct {
	Balance float64 `json:"balance"`
}

// MaxRequestBodySize bounds request bodies accepted by this handler.
const MaxRequestBodySize = 1 << 20 // 1 MB

// ExchangeHandler manages the single broker connection on the admin
// surface.
//
// Endpoints:
//   - POST   /api/v1/broker/connect
//   - DELETE /api/v1/broker/connect
//   - GET    /api/v1/broker
//   - GET    /api/v1/broker/balance
type ExchangeHandler struct {
	exchangeService *service.ExchangeService
}

// NewExchangeHandler builds an ExchangeHandler.
func NewExchangeHandler(exchangeService *service.ExchangeService) *ExchangeHandler {
	return &ExchangeHandler{exchangeService: exchangeService}
}

// ConnectBroker validates and stores broker credentials.
func (h *ExchangeHandler) ConnectBroker(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	var req ConnectBrokerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	if req.APIKey == "" {
		h.respondWithError(w, http.StatusBadRequest, "API key is required", "")
		return
	}
	if req.SecretKey == "" {
		h.respondWithError(w, http.StatusBadRequest, "Secret key is required", "")
		return
	}

	ctx := r.Context()
	if err := h.exchangeService.Connect(ctx, "broker", req.APIKey, req.SecretKey, req.Passphrase); err != nil {
		switch {
		case errors.Is(err, service.ErrBrokerAlreadyConnected):
			h.respondWithError(w, http.StatusConflict, "Broker is already connected", "Disconnect first to change credentials")
		case errors.Is(err, service.ErrInvalidCredentials):
			h.respondWithError(w, http.StatusUnauthorized, "Invalid API credentials", err.Error())
		case errors.Is(err, service.ErrConnectionFailed):
			h.respondWithError(w, http.StatusBadGateway, "Failed to connect to broker", err.Error())
		default:
			h.respondWithError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		}
		return
	}

	account, err := h.exchangeService.GetAccount()
	if err != nil {
		h.respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "Broker connected successfully"})
		return
	}

	h.respondWithJSON(w, http.StatusOK, BrokerResponse{
		Name:      account.Name,
		Connected: account.Connected,
		Balance:   account.Balance,
		LastError: account.LastError,
	})
}

// DisconnectBroker tears down the broker session and clears credentials.
func (h *ExchangeHandler) DisconnectBroker(w http.ResponseWriter, r *http.Request) {
	if err := h.exchangeService.Disconnect(r.Context()); err != nil {
		switch {
		case errors.Is(err, service.ErrBrokerNotConnected):
			h.respondWithError(w, http.StatusNotFound, "Broker is not connected", "")
		default:
			h.respondWithError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		}
		return
	}

	h.respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "Broker disconnected successfully"})
}

// GetBroker returns the broker account's current status.
func (h *ExchangeHandler) GetBroker(w http.ResponseWriter, r *http.Request) {
	account, err := h.exchangeService.GetAccount()
	if err != nil {
		h.respondWithJSON(w, http.StatusOK, BrokerResponse{Connected: false})
		return
	}

	h.respondWithJSON(w, http.StatusOK, BrokerResponse{
		Name:      account.Name,
		Connected: account.Connected,
		Balance:   account.Balance,
		LastError: account.LastError,
	})
}

// GetBrokerBalance refreshes and returns the broker's available margin.
func (h *ExchangeHandler) GetBrokerBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.exchangeService.RefreshBalance(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBrokerNotConnected):
			h.respondWithError(w, http.StatusNotFound, "Broker is not connected", "Connect the broker first")
		default:
			h.respondWithError(w, http.StatusBadGateway, "Failed to get balance from broker", err.Error())
		}
		return
	}

	h.respondWithJSON(w, http.StatusOK, BalanceResponse{Balance: balance})
}

func (h *ExchangeHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

func (h *ExchangeHandler) respondWithError(w http.ResponseWriter, code int, message string, details string) {
	h.respondWithJSON(w, code, ErrorResponse{Error: message, Details: details})
}
