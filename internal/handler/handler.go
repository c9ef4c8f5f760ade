package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/set-night/rewardhub/internal/config"
	"github.com/set-night/rewardhub/internal/domain"
	"github.com/set-night/rewardhub/internal/middleware"
	"github.com/set-night/rewardhub/internal/service"
)

// Handler serves the single JSON endpoint of the Mini App backend.
type Handler struct {
	verifier    *service.InitDataVerifier
	tokens      *service.ActionTokenService
	ledger      *service.LedgerService
	tasks       *service.TaskService
	withdrawals *service.WithdrawalService
	users       *service.UserService
	ping        func(ctx context.Context) error
	routes      map[string]route
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Verifier          *service.InitDataVerifier
	TokenService      *service.ActionTokenService
	LedgerService     *service.LedgerService
	TaskService       *service.TaskService
	WithdrawalService *service.WithdrawalService
	UserService       *service.UserService
	// Ping reports store health for /healthz. Optional.
	Ping func(ctx context.Context) error
}

type route struct {
	fn func(ctx context.Context, req *apiRequest) (any, error)
	// sessionExempt types skip the global init data check.
	sessionExempt bool
	// privileged types may act with admin rights and need a named session user.
	privileged bool
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	h := &Handler{
		verifier:    deps.Verifier,
		tokens:      deps.TokenService,
		ledger:      deps.LedgerService,
		tasks:       deps.TaskService,
		withdrawals: deps.WithdrawalService,
		users:       deps.UserService,
		ping:        deps.Ping,
	}
	h.routes = map[string]route{
		"register":              {fn: h.handleRegister},
		"getUserData":           {fn: h.handleGetUserData},
		"getTasks":              {fn: h.handleGetTasks},
		"generateActionId":      {fn: h.handleGenerateActionID},
		"watchAd":               {fn: h.handleWatchAd},
		"preSpin":               {fn: h.handlePreSpin},
		"spinResult":            {fn: h.handleSpinResult},
		"withdraw":              {fn: h.handleWithdraw, privileged: true},
		"completeTask":          {fn: h.handleCompleteTask, sessionExempt: true},
		"createTask":            {fn: h.handleCreateTask, privileged: true},
		"deleteTask":            {fn: h.handleDeleteTask, privileged: true},
		"searchUser":            {fn: h.handleSearchUser, privileged: true},
		"getPendingWithdrawals": {fn: h.handleGetPendingWithdrawals, privileged: true},
		"updateBalance":         {fn: h.handleUpdateBalance, privileged: true},
		"toggleBan":             {fn: h.handleToggleBan, privileged: true},
		"adminAction":           {fn: h.handleAdminAction, privileged: true},
		"commission":            {fn: h.handleCommission, sessionExempt: true},
	}
	return h
}

// Routes returns the HTTP handler with middleware applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api", h.ServeAPI)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	return middleware.Chain(mux,
		middleware.Recover(),
		middleware.Logging(),
		middleware.CORS(),
	)
}

// ServeAPI decodes the request envelope, runs the shared checks and
// dispatches on the type field.
func (h *Handler) ServeAPI(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		writeOK(w, nil)
		return
	case http.MethodPost:
	default:
		writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method %s not allowed. Only POST is supported.", r.Method))
		return
	}

	var req apiRequest
	body := http.MaxBytesReader(w, r.Body, config.MaxRequestBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload.")
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, `Missing "type" field in the request body.`)
		return
	}

	rt, ok := h.routes[req.Type]
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown request type: %s", req.Type))
		return
	}

	if !rt.sessionExempt {
		session, err := h.verifier.Verify(req.InitData)
		if err != nil {
			h.fail(w, &req, err)
			return
		}
		check := session.CheckUser
		if rt.privileged {
			check = session.RequireUser
		}
		if err := check(req.userID()); err != nil {
			h.fail(w, &req, err)
			return
		}
		req.session = session
	}

	if req.UserID == 0 && req.Type != "commission" {
		writeError(w, http.StatusBadRequest, "Missing user_id in the request body.")
		return
	}

	data, err := rt.fn(r.Context(), &req)
	if err != nil {
		h.fail(w, &req, err)
		return
	}
	writeOK(w, data)
}

func (h *Handler) fail(w http.ResponseWriter, req *apiRequest, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && !errors.Is(err, domain.ErrNotImplemented) {
		slog.Error("request failed", "type", req.Type, "user_id", req.userID(), "error", err)
	} else {
		slog.Debug("request rejected", "type", req.Type, "user_id", req.userID(), "status", status, "error", err)
	}
	writeError(w, status, err.Error())
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping(r.Context()); err != nil {
			slog.Error("health check", "error", err)
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	writeOK(w, map[string]string{"status": "ok"})
}

func (h *Handler) handleCommission(context.Context, *apiRequest) (any, error) {
	return nil, domain.Newf(domain.KindNotImplemented, "Commission endpoint not implemented.")
}

func validationError(msg string) error {
	return domain.Newf(domain.KindValidation, "%s", msg)
}
