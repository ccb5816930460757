package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/majisafe/bridge/internal/currency"
	"github.com/majisafe/bridge/internal/domain"
	"github.com/majisafe/bridge/internal/pipeline"
	"github.com/majisafe/bridge/internal/repository"
	"github.com/majisafe/bridge/internal/verify"
)

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	pipeline   *pipeline.Service
	eventRepo  *repository.EventRepo
	verifier   *verify.Verifier
	dkgNodeURL string
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

// --- ReceiveSMS ---

type smsRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// ReceiveSMS is the intake endpoint the SMS gateway posts inbound
// messages to. It acknowledges fast; the slow work happens on the
// confirmation path.
func (h *Handlers) ReceiveSMS(w http.ResponseWriter, r *http.Request) {
	var req smsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Phone == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "phone and message are required")
		return
	}

	acc, err := h.pipeline.HandleCommand(req.Phone, req.Message)
	if err != nil {
		var pe *domain.ParseError
		if errors.As(err, &pe) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"status": "parse_error",
				"error":  pe.Reason,
			})
			return
		}
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"status": "validation_error",
				"kind":   string(ve.Kind),
				"error":  ve.Detail,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "accepted",
		"display_amount": acc.DisplayAmount,
		"currency":       acc.Currency,
	})
}

// --- Confirm ---

type confirmRequest struct {
	TxHash string `json:"tx_hash"`
}

// Confirm is called by the wallet-observing collaborator once the
// settlement transaction lands. It drives the remaining pipeline stages
// and returns the published record's locator and hash.
func (h *Handlers) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.TxHash == "" {
		writeError(w, http.StatusBadRequest, "tx_hash is required")
		return
	}

	res, err := h.pipeline.HandleConfirmation(r.Context(), req.TxHash)
	if err != nil {
		var re *domain.RegistryError
		switch {
		case errors.Is(err, domain.ErrNoPending):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, domain.ErrDuplicateEvent):
			writeError(w, http.StatusConflict, err.Error())
		case errors.As(err, &re) && re.Retryable():
			writeError(w, http.StatusBadGateway, re.Error())
		case errors.As(err, &re):
			writeError(w, http.StatusUnprocessableEntity, re.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// --- GetSession ---

// GetSession returns the pending-payment snapshot the wallet UI polls.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.pipeline.Session())
}

// --- ListEvents ---

func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)

	events, err := h.eventRepo.ListRecent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	summaries := make([]domain.EventSummary, 0, len(events))
	for i := range events {
		summaries = append(summaries, events[i].Summary())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": summaries,
		"count":  len(summaries),
	})
}

// --- VerifyEvent ---

// VerifyEvent re-derives the integrity hash for the record published
// under the ual query parameter. The locator goes in the query string
// because UALs contain path separators.
func (h *Handlers) VerifyEvent(w http.ResponseWriter, r *http.Request) {
	ual := r.URL.Query().Get("ual")
	if ual == "" {
		writeError(w, http.StatusBadRequest, "ual query parameter is required")
		return
	}

	res, err := h.verifier.Verify(r.Context(), ual)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// --- RetryAnchor ---

func (h *Handlers) RetryAnchor(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	if eventID == "" {
		writeError(w, http.StatusBadRequest, "event id is required")
		return
	}

	ev, err := h.pipeline.RetryAnchor(r.Context(), eventID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "event not found")
		case errors.Is(err, domain.ErrAnchorTimeout):
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, ev.Summary())
}

// --- GetStatus ---

func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	count, err := h.eventRepo.Count()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"service":              "majisafe-bridge",
		"status":               "online",
		"dkg_node":             h.dkgNodeURL,
		"supported_currencies": currency.Supported(),
		"events_stored":        count,
	})
}
