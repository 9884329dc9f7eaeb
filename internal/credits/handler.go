package credits

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wellhavenhq/telehealth-platform/pkg/logging"
)

// Handler serves the credit read endpoints.
type Handler struct {
	ledger *Ledger
	logger *logging.Logger
}

// NewHandler creates a credits handler.
func NewHandler(ledger *Ledger, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{ledger: ledger, logger: logger}
}

// GetBalance handles GET /patients/{patientID}/credits.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(chi.URLParam(r, "patientID"))
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}

	balance, err := h.ledger.Balance(r.Context(), patientID)
	if err != nil {
		h.logger.Error("balance read failed", "patient_id", patientID, "error", err)
		http.Error(w, "temporarily unavailable, please retry", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

// ListPackagesResponse lists purchasable credit packages.
type ListPackagesResponse struct {
	Packages []Package `json:"packages"`
}

// ListPackages handles GET /credit-packages.
func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	packages, err := h.ledger.Packages(r.Context())
	if err != nil {
		h.logger.Error("package list failed", "error", err)
		http.Error(w, "temporarily unavailable, please retry", http.StatusServiceUnavailable)
		return
	}
	if packages == nil {
		packages = []Package{}
	}
	writeJSON(w, http.StatusOK, ListPackagesResponse{Packages: packages})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
