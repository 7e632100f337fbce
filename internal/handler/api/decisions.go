package api

import (
	"time"

	models "AlphaFuse/internal/domain/models"
	drepo "AlphaFuse/internal/domain/repository"
	"AlphaFuse/internal/pairfilter"
	"AlphaFuse/internal/performance"
	"AlphaFuse/internal/usecase"
	xhttp "AlphaFuse/pkg/http"
	xlogger "AlphaFuse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// DecisionsEchoHandler exposes the decision core over HTTP for operators:
// on-demand evaluation, open positions, per-symbol performance, and the
// blocked-pair list. Trade results can also be posted here when the fills
// topic is not wired.
type DecisionsEchoHandler struct {
	logger    *xlogger.Logger
	decisions *usecase.DecisionCycle
	weighter  *performance.Weighter
	filter    *pairfilter.Filter
	history   drepo.TradeHistory
	positions drepo.PositionStore
}

func NewDecisionsEchoHandler(
	logger *xlogger.Logger,
	decisions *usecase.DecisionCycle,
	weighter *performance.Weighter,
	filter *pairfilter.Filter,
	history drepo.TradeHistory,
	positions drepo.PositionStore,
) *DecisionsEchoHandler {
	return &DecisionsEchoHandler{
		logger:    logger,
		decisions: decisions,
		weighter:  weighter,
		filter:    filter,
		history:   history,
		positions: positions,
	}
}

func (h *DecisionsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/decision", h.Decision)
	g.GET("/positions", h.Positions)
	g.GET("/performance", h.Performance)
	g.GET("/blocked", h.Blocked)
	g.POST("/trade-result", h.TradeResult)
}

// Decision runs one full evaluation pass for a symbol and returns the
// published envelope. The result is also pushed to the decision sink, same as
// a scheduled cycle.
func (h *DecisionsEchoHandler) Decision(c echo.Context) error {
	req := &models.DecisionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	env, err := h.decisions.EvaluateSymbol(c.Request().Context(), req.Symbol)
	if err != nil {
		h.logger.Error("on-demand evaluation failed",
			xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, env)
}

func (h *DecisionsEchoHandler) Positions(c echo.Context) error {
	open, err := h.positions.Open(c.Request().Context())
	if err != nil {
		h.logger.Error("open positions lookup failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, open, int64(len(open)))
}

func (h *DecisionsEchoHandler) Performance(c echo.Context) error {
	req := &models.PerformanceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	m, err := h.weighter.Metrics(c.Request().Context(), req.Symbol)
	if err != nil {
		h.logger.Error("performance lookup failed",
			xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, m)
}

func (h *DecisionsEchoHandler) Blocked(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"symbols":  h.filter.BlockedSymbols(),
		"cool_off": h.filter.Blocked(),
	})
}

// TradeResult records a realized trade outcome and refreshes the cached
// performance snapshot, mirroring what the Kafka fills handler does.
func (h *DecisionsEchoHandler) TradeResult(c echo.Context) error {
	req := &models.TradeResultRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ctx := c.Request().Context()
	trade := models.ClosedTrade{Symbol: req.Symbol, PnL: req.PnL, Timestamp: time.Now()}
	if err := h.history.RecordClosedTrade(ctx, trade); err != nil {
		h.logger.Error("trade result store failed",
			xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	h.weighter.Invalidate(ctx, req.Symbol)
	if trade.Win() {
		h.filter.ClearCoolOff(req.Symbol)
	}
	return xhttp.CreatedResponse(c, trade)
}
