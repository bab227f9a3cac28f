package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/garagehub/shopload/internal/domain"
	"github.com/garagehub/shopload/internal/storage"

	"github.com/google/uuid"
)

// Handler exposes the pipeline trigger and status endpoints. The trigger is
// the collaborator interface: an external transfer mechanism (bucket event,
// SFTP watcher) posts the load key and the local path the files landed at.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service with the loads endpoints.
func NewHTTPHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the loader routes on a mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/loads", h.handleLoads)
	mux.HandleFunc("/loads/status", h.handleStatus)
	mux.HandleFunc("/health", h.handleHealth)
}

type runPayload struct {
	PartnerID    string `json:"partner_id"`
	ShopID       string `json:"shop_id"`
	LoadID       string `json:"load_id"`
	Path         string `json:"path"`
	ForceRestage bool   `json:"force_restage"`
}

type runResponse struct {
	Status domain.LoadStatus   `json:"status"`
	Ledger domain.LedgerRecord `json:"ledger"`
	Error  string              `json:"error,omitempty"`
}

func (h *Handler) handleLoads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload runPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	key, err := loadKey(payload.PartnerID, payload.ShopID, payload.LoadID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Path) == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}

	result, runErr := h.service.Run(r.Context(), RunRequest{
		Key:          key,
		Files:        storage.NewLocalDir(payload.Path),
		ForceRestage: payload.ForceRestage,
	})
	if runErr != nil && result.Load.ID == uuid.Nil {
		// The pipeline could not even resolve the load record.
		http.Error(w, runErr.Error(), http.StatusInternalServerError)
		return
	}

	resp := runResponse{Status: result.Load.Status, Ledger: result.Ledger}
	if runErr != nil {
		resp.Error = runErr.Error()
	}
	// A failed load is still a processed request; the outcome rides in the body.
	writeJSON(w, http.StatusOK, resp)
}

type statusResponse struct {
	Load    domain.Load          `json:"load"`
	Tallies []domain.EntityTally `json:"tallies"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	key, err := loadKey(q.Get("partner_id"), q.Get("shop_id"), q.Get("load_id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	load, tallies, err := h.service.Status(r.Context(), key)
	if err != nil {
		if errors.Is(err, domain.ErrLoadNotFound) {
			http.Error(w, "load not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Load: load, Tallies: tallies})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func loadKey(partnerID, shopID, loadID string) (domain.LoadKey, error) {
	key := domain.LoadKey{
		PartnerID: strings.TrimSpace(partnerID),
		ShopID:    strings.TrimSpace(shopID),
		LoadID:    strings.TrimSpace(loadID),
	}
	if key.PartnerID == "" || key.ShopID == "" || key.LoadID == "" {
		return domain.LoadKey{}, errors.New("partner_id, shop_id, and load_id are required")
	}
	return key, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
