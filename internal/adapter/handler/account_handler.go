package handler

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rl1809/order-saga/internal/port"
)

const (
	msgUserDetailsValid     = "User Details are valid"
	msgValidationSuccessful = "Validation Successful"
	msgUserProductDetails   = "Successfully retrieved User product details"
)

// AccountHTTPHandler exposes the account role to the coordinator and to
// operators.
type AccountHTTPHandler struct {
	accounts port.AccountClient
	logger   *zap.Logger
}

type appendProductRequest struct {
	ProductName string `json:"productName"`
}

func NewAccountHTTPHandler(accounts port.AccountClient, logger *zap.Logger) *AccountHTTPHandler {
	return &AccountHTTPHandler{accounts: accounts, logger: logger}
}

func (h *AccountHTTPHandler) Register(r *mux.Router) {
	r.HandleFunc("/accounts/{userName}", h.ValidateUserOnly).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{userName}/products", h.ListActiveProducts).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{userName}/products", h.AppendProduct).Methods(http.MethodPost)
	r.HandleFunc("/accounts/{userName}/products/{productName}", h.ValidateMembership).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{userName}/products/{productName}", h.RemoveProduct).Methods(http.MethodDelete)
}

func (h *AccountHTTPHandler) ValidateUserOnly(w http.ResponseWriter, r *http.Request) {
	acc, err := h.accounts.ValidateUserOnly(r.Context(), mux.Vars(r)["userName"])
	respond(w, r, h.logger, acc, err, msgUserDetailsValid)
}

func (h *AccountHTTPHandler) ListActiveProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.accounts.ListActiveProducts(r.Context(), mux.Vars(r)["userName"])
	respond(w, r, h.logger, products, err, msgUserProductDetails)
}

func (h *AccountHTTPHandler) ValidateMembership(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	err := h.accounts.ValidateMembership(r.Context(), vars["userName"], vars["productName"])
	respond[any](w, r, h.logger, nil, err, msgValidationSuccessful)
}

func (h *AccountHTTPHandler) AppendProduct(w http.ResponseWriter, r *http.Request) {
	var req appendProductRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ProductName == "" {
		badRequest(w, msgMissingFields)
		return
	}

	userName := mux.Vars(r)["userName"]
	err := h.accounts.AppendProduct(r.Context(), userName, req.ProductName)
	respond[any](w, r, h.logger, nil, err, fmt.Sprintf("Successfully added %s for %s", req.ProductName, userName))
}

func (h *AccountHTTPHandler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	err := h.accounts.RemoveProduct(r.Context(), vars["userName"], vars["productName"])
	respond[any](w, r, h.logger, nil, err, fmt.Sprintf("Successfully removed %s for %s", vars["productName"], vars["userName"]))
}
