package handler

import (
	"context"
	"net/http"

	"tracking_cf/internal/app/service"
	"tracking_cf/internal/common"
	"tracking_cf/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type ContestReader interface {
	ListContests(ctx context.Context) (*service.ContestListing, error)
}

type FreshnessReader interface {
	Freshness(ctx context.Context) (*model.Freshness, error)
}

// ContestHandler serves the cached contest list and the tracker freshness info.
type ContestHandler struct {
	contests ContestReader
	meta     FreshnessReader
}

func NewContestHandler(contests ContestReader, meta FreshnessReader) *ContestHandler {
	return &ContestHandler{contests: contests, meta: meta}
}

func (h *ContestHandler) RegisterRoutes(r chi.Router) {
	r.Get("/contests", h.listContests)
	r.Get("/meta", h.getMeta)
}

func (h *ContestHandler) listContests(w http.ResponseWriter, r *http.Request) {
	listing, err := h.contests.ListContests(r.Context())
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, listing)
}

func (h *ContestHandler) getMeta(w http.ResponseWriter, r *http.Request) {
	freshness, err := h.meta.Freshness(r.Context())
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, freshness)
}
