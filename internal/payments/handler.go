package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/wellhavenhq/telehealth-platform/internal/credits"
	"github.com/wellhavenhq/telehealth-platform/pkg/logging"
)

// packageFinder resolves a purchasable package by id.
type packageFinder interface {
	PackageByID(ctx context.Context, id string) (*credits.Package, error)
}

// checkoutCreator opens a hosted checkout session.
type checkoutCreator interface {
	CreatePackageCheckout(ctx context.Context, patientID uuid.UUID, pkg *credits.Package) (*CheckoutResponse, error)
}

// Handler exposes the checkout endpoint.
type Handler struct {
	packages packageFinder
	checkout checkoutCreator
	logger   *logging.Logger
}

// NewHandler creates a payments handler.
func NewHandler(packages packageFinder, checkout checkoutCreator, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{packages: packages, checkout: checkout, logger: logger}
}

// CheckoutRequest is the body for POST /checkout.
type CheckoutRequest struct {
	PatientID string `json:"patient_id"`
	PackageID string `json:"package_id"`
}

// CreateCheckout handles POST /checkout.
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}
	if req.PackageID == "" {
		http.Error(w, "missing package id", http.StatusBadRequest)
		return
	}

	pkg, err := h.packages.PackageByID(r.Context(), req.PackageID)
	if err != nil {
		if errors.Is(err, credits.ErrPackageNotFound) {
			http.Error(w, "package not found", http.StatusNotFound)
			return
		}
		h.logger.Error("package lookup failed", "package_id", req.PackageID, "error", err)
		http.Error(w, "temporarily unavailable, please retry", http.StatusServiceUnavailable)
		return
	}

	resp, err := h.checkout.CreatePackageCheckout(r.Context(), patientID, pkg)
	if err != nil {
		h.logger.Error("checkout session failed", "package_id", pkg.ID, "error", err)
		http.Error(w, "temporarily unavailable, please retry", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(resp)
}
