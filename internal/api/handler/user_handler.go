package handler

import (
	"context"
	"net/http"

	"tracking_cf/internal/common"
	"tracking_cf/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type Leaderboard interface {
	Leaderboard(ctx context.Context, period model.LeaderboardPeriod) ([]model.LeaderboardEntry, error)
}

type UserReader interface {
	GetUser(ctx context.Context, handle string) (*model.User, error)
}

type UserHandler struct {
	board Leaderboard
	users UserReader
}

func NewUserHandler(board Leaderboard, users UserReader) *UserHandler {
	return &UserHandler{board: board, users: users}
}

func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.listUsers)       // GET /api/v1/users?period=month
	r.Get("/{handle}", h.getUser) // GET /api/v1/users/tourist
}

func (h *UserHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	period := model.LeaderboardPeriod(r.URL.Query().Get("period"))
	if period == "" {
		period = model.PeriodAll
	}
	entries, err := h.board.Leaderboard(r.Context(), period)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, entries)
}

func (h *UserHandler) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUser(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, user)
}
