package service

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/switchly-settlement/pkg/app/errors"
	apphttp "github.com/chainsafe/switchly-settlement/pkg/app/http"
	"github.com/chainsafe/switchly-settlement/pkg/settlement"
	"github.com/chainsafe/switchly-settlement/pkg/swap"
)

const maxBodySize = 1 << 16

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service Service
	logger  *zap.Logger
}

// RegisterRoutes registers the swap endpoints on r. Routes that start or
// cancel settlements are wrapped in guard when it is not nil.
func RegisterRoutes(r chi.Router, service Service, guard func(http.Handler) http.Handler, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Get("/pools", h.handle(h.pools))
	r.Get("/quote", h.handle(h.quote))
	r.Get("/rate", h.handle(h.rate))
	r.Get("/memo/match", h.handle(h.matchMemo))
	r.Get("/settlements", h.handle(h.listSettlements))
	r.Get("/settlements/{id}", h.handle(h.getSettlement))

	r.Group(func(r chi.Router) {
		if guard != nil {
			r.Use(guard)
		}
		r.Post("/settlements", h.handle(h.startSettlement))
		r.Delete("/settlements/{id}", h.handle(h.cancelSettlement))
	})
}

func (h *HTTP) handle(fn apphttp.HandlerFunc) http.HandlerFunc {
	return apphttp.HandleErrorWithLogger(fn, h.logger)
}

func (h *HTTP) pools(w http.ResponseWriter, r *http.Request) error {
	resp, err := h.service.ListPools(r.Context())
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) quote(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	amount, err := decimal.NewFromString(q.Get("amount"))
	if err != nil {
		return apperrors.BadRequestError(err, "invalid amount")
	}

	resp, err := h.service.Quote(r.Context(), &swap.QuoteRequest{
		From:   q.Get("from"),
		To:     q.Get("to"),
		Amount: amount,
	})
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) rate(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	resp, err := h.service.Rate(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) matchMemo(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	resp, err := h.service.MatchMemo(r.Context(), &swap.MatchRequest{
		Memo:       q.Get("memo"),
		SourceHash: q.Get("hash"),
	})
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) startSettlement(w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}

	var req settlement.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}

	resp, err := h.service.StartSettlement(r.Context(), &req)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusAccepted, resp)
	return nil
}

func (h *HTTP) listSettlements(w http.ResponseWriter, r *http.Request) error {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return apperrors.BadRequestError(err, "invalid limit")
		}
		limit = n
	}

	resp, err := h.service.ListSettlements(r.Context(), limit)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) getSettlement(w http.ResponseWriter, r *http.Request) error {
	id, err := settlementID(r)
	if err != nil {
		return err
	}
	resp, err := h.service.GetSettlement(r.Context(), id)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) cancelSettlement(w http.ResponseWriter, r *http.Request) error {
	id, err := settlementID(r)
	if err != nil {
		return err
	}
	resp, err := h.service.CancelSettlement(r.Context(), id)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func settlementID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, apperrors.BadRequestError(err, "invalid settlement id")
	}
	return id, nil
}
