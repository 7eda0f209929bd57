package api

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"

	"WalletMirror/internal/domain/models"
	domrepo "WalletMirror/internal/domain/repository"
	"WalletMirror/internal/usecase"
	xhttp "WalletMirror/pkg/http"
	xlogger "WalletMirror/pkg/logger"
)

type StatusProvider interface {
	Snapshot() usecase.StatusSnapshot
}

type PositionLister interface {
	Positions() []*models.Position
}

// AccountController is the write side of the paper account.
type AccountController interface {
	ResumeTrading(ctx context.Context, note string) (bool, error)
	Deposit(ctx context.Context, amount float64, note string) (*models.BalanceEntry, error)
	Withdraw(ctx context.Context, amount float64, note string) (*models.BalanceEntry, error)
	ResetSession(ctx context.Context, reason string) (models.SessionMeta, error)
}

type SessionSource interface {
	ID() string
}

type ConfigReloader interface {
	Reload() (map[string]string, error)
}

// PortfolioEchoHandler serves the operator control API.
type PortfolioEchoHandler struct {
	logger    *xlogger.Logger
	wallet    string
	status    StatusProvider
	positions PositionLister
	control   AccountController
	session   SessionSource
	store     domrepo.PersistenceStore
	reloader  ConfigReloader
}

func NewPortfolioEchoHandler(
	logger *xlogger.Logger,
	wallet string,
	status StatusProvider,
	positions PositionLister,
	control AccountController,
	session SessionSource,
	store domrepo.PersistenceStore,
	reloader ConfigReloader,
) *PortfolioEchoHandler {
	return &PortfolioEchoHandler{
		logger:    logger,
		wallet:    wallet,
		status:    status,
		positions: positions,
		control:   control,
		session:   session,
		store:     store,
		reloader:  reloader,
	}
}

func (h *PortfolioEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/status", h.Status)
	g.GET("/positions", h.Positions)
	g.GET("/trades", h.Trades)
	g.GET("/balance/history", h.BalanceHistory)
	g.GET("/sessions", h.Sessions)
	g.POST("/risk/resume", h.Resume)
	g.POST("/cash/deposit", h.Deposit)
	g.POST("/cash/withdraw", h.Withdraw)
	g.POST("/session/reset", h.Reset)
	g.POST("/config/reload", h.ReloadConfig)
}

func (h *PortfolioEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *PortfolioEchoHandler) Status(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, h.status.Snapshot())
}

func (h *PortfolioEchoHandler) Positions(c echo.Context) error {
	rows := h.positions.Positions()
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *PortfolioEchoHandler) Trades(c echo.Context) error {
	req := &models.TradesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	filter := models.TradeFilter{
		Action: models.Action(req.Action),
		Mint:   req.Mint,
		Limit:  req.Limit,
	}
	if req.Since != "" {
		since, ok := xhttp.ParseTime(req.Since)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError("since must be RFC3339 or unix seconds"))
		}
		filter.Since = since
	}
	rows, err := h.store.LoadTrades(c.Request().Context(), h.session.ID(), filter)
	if err != nil {
		h.logger.Error("load trades failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("could not load trades").WithError(err))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *PortfolioEchoHandler) BalanceHistory(c echo.Context) error {
	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 100)
	if limit <= 0 {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("limit must be positive"))
	}
	rows, err := h.store.LoadBalanceHistory(c.Request().Context(), h.session.ID(), limit)
	if err != nil {
		h.logger.Error("load balance history failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("could not load balance history").WithError(err))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *PortfolioEchoHandler) Sessions(c echo.Context) error {
	rows, err := h.store.ListSessions(c.Request().Context(), h.wallet)
	if err != nil {
		h.logger.Error("list sessions failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("could not list sessions").WithError(err))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *PortfolioEchoHandler) Resume(c echo.Context) error {
	req := &models.ResumeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	resumed, err := h.control.ResumeTrading(c.Request().Context(), req.Note)
	if err != nil {
		h.logger.Error("resume failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("could not persist resume").WithError(err))
	}
	if !resumed {
		return xhttp.AppErrorResponse(c, xhttp.ConflictError("trading is not paused"))
	}
	return xhttp.SuccessResponse(c, map[string]bool{"resumed": true})
}

func (h *PortfolioEchoHandler) Deposit(c echo.Context) error {
	return h.moveCash(c, h.control.Deposit)
}

func (h *PortfolioEchoHandler) Withdraw(c echo.Context) error {
	return h.moveCash(c, h.control.Withdraw)
}

func (h *PortfolioEchoHandler) moveCash(c echo.Context, fn func(context.Context, float64, string) (*models.BalanceEntry, error)) error {
	req := &models.CashRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	entry, err := fn(c.Request().Context(), req.Amount, req.Note)
	switch {
	case err == nil:
		return xhttp.SuccessResponse(c, entry)
	case errors.Is(err, usecase.ErrDepositDisabled), errors.Is(err, usecase.ErrWithdrawalDisabled):
		return xhttp.AppErrorResponse(c, xhttp.ForbiddenError(err.Error()))
	case errors.Is(err, usecase.ErrInvalidAmount), errors.Is(err, usecase.ErrInsufficientBalance):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
	default:
		h.logger.Error("cash movement failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("cash movement failed").WithError(err))
	}
}

func (h *PortfolioEchoHandler) Reset(c echo.Context) error {
	req := &models.ResetRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	archived, err := h.control.ResetSession(c.Request().Context(), req.Reason)
	if err != nil {
		h.logger.Error("session reset failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("session reset failed").WithError(err))
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"archived": archived,
		"session":  h.session.ID(),
	})
}

func (h *PortfolioEchoHandler) ReloadConfig(c echo.Context) error {
	if h.reloader == nil {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("config reload is not configured"))
	}
	summary, err := h.reloader.Reload()
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
	}
	return xhttp.SuccessResponse(c, summary)
}
