package handler

import (
	"context"
	"net/http"

	"tracking_cf/internal/api/middleware"
	"tracking_cf/internal/app/service"
	"tracking_cf/internal/common"
	"tracking_cf/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type Authenticator interface {
	Login(ctx context.Context, req service.LoginRequest) (*service.AuthResponse, error)
}

type RosterManager interface {
	ListAll(ctx context.Context) ([]model.User, error)
	CreateUser(ctx context.Context, handle string) (*model.User, service.IngestResult, error)
	RenameUser(ctx context.Context, oldHandle, newHandle string) (*model.User, error)
	SetEnabled(ctx context.Context, handle string, enabled bool) (*model.User, error)
	ToggleEnabled(ctx context.Context, handle string) (*model.User, error)
	SetHidden(ctx context.Context, handle string, hidden bool) (*model.User, error)
	ToggleHidden(ctx context.Context, handle string) (*model.User, error)
	DeleteUser(ctx context.Context, handle string) error
}

type UserTracker interface {
	IngestUser(ctx context.Context, handle string) service.IngestResult
}

type SweepEnqueuer interface {
	EnqueueSweep(ctx context.Context, trigger model.RunTrigger) (string, error)
}

type AdminHandler struct {
	auth    Authenticator
	roster  RosterManager
	tracker UserTracker
	sweeps  SweepEnqueuer
}

func NewAdminHandler(auth Authenticator, roster RosterManager, tracker UserTracker, sweeps SweepEnqueuer) *AdminHandler {
	return &AdminHandler{auth: auth, roster: roster, tracker: tracker, sweeps: sweeps}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.login)

	r.Group(func(adminRouter chi.Router) {
		adminRouter.Use(middleware.Authenticator)
		adminRouter.Use(middleware.AdminOnly)
		adminRouter.Get("/users", h.listUsers)
		adminRouter.Post("/users", h.createUser)
		adminRouter.Put("/users/{handle}/visibility", h.setVisibility)
		adminRouter.Put("/users/{handle}/enable", h.setEnabled)
		adminRouter.Put("/users/{handle}/rename", h.renameUser)
		adminRouter.Post("/users/{handle}/track", h.trackUser)
		adminRouter.Delete("/users/{handle}", h.deleteUser)
		adminRouter.Post("/tracker/run", h.runTracker)
	})
}

func (h *AdminHandler) login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	resp, err := h.auth.Login(r.Context(), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, resp)
}

func (h *AdminHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.roster.ListAll(r.Context())
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, users)
}

func (h *AdminHandler) createUser(w http.ResponseWriter, r *http.Request) {
	var req service.CreateUserRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	user, res, err := h.roster.CreateUser(r.Context(), req.Handle)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithData(w, http.StatusCreated, map[string]any{"user": user, "ingestion": res})
}

func (h *AdminHandler) setVisibility(w http.ResponseWriter, r *http.Request) {
	h.applyFlag(w, r, h.roster.SetHidden, h.roster.ToggleHidden)
}

func (h *AdminHandler) setEnabled(w http.ResponseWriter, r *http.Request) {
	h.applyFlag(w, r, h.roster.SetEnabled, h.roster.ToggleEnabled)
}

func (h *AdminHandler) applyFlag(
	w http.ResponseWriter,
	r *http.Request,
	set func(context.Context, string, bool) (*model.User, error),
	toggle func(context.Context, string) (*model.User, error),
) {
	var req service.FlagRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	handle := chi.URLParam(r, "handle")
	var (
		user *model.User
		err  error
	)
	if req.Value != nil {
		user, err = set(r.Context(), handle, *req.Value)
	} else {
		user, err = toggle(r.Context(), handle)
	}
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, user)
}

func (h *AdminHandler) renameUser(w http.ResponseWriter, r *http.Request) {
	var req service.RenameUserRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	user, err := h.roster.RenameUser(r.Context(), chi.URLParam(r, "handle"), req.NewHandle)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, user)
}

func (h *AdminHandler) trackUser(w http.ResponseWriter, r *http.Request) {
	res := h.tracker.IngestUser(r.Context(), chi.URLParam(r, "handle"))
	if res.Err != nil {
		common.RespondWithDomainError(w, res.Err)
		return
	}
	common.RespondWithData(w, http.StatusOK, res)
}

func (h *AdminHandler) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.roster.DeleteUser(r.Context(), chi.URLParam(r, "handle")); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) runTracker(w http.ResponseWriter, r *http.Request) {
	if h.sweeps == nil {
		common.RespondWithError(w, http.StatusServiceUnavailable, "task queue is not configured")
		return
	}
	taskID, err := h.sweeps.EnqueueSweep(r.Context(), model.TriggerAdmin)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithData(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}
