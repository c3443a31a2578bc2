package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
	domrepo "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/repository"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/usecase"
	xhttp "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/http"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/util"

	"github.com/labstack/echo/v4"
)

func (h *ReportsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)

	g := e.Group("/api/v1")
	g.GET("/predictions", h.ListPredictions)
	g.GET("/predictions/:id", h.GetPrediction)
	g.GET("/accuracy", h.Accuracy)
	g.GET("/weights", h.WeightHistory)
	g.GET("/weights/active", h.ActiveWeights)
	g.GET("/snapshots/:symbol/:tf", h.Snapshot)
	g.GET("/candles", h.Candles)
}

func (h *ReportsHandler) ListPredictions(c echo.Context) error {
	const endpoint = "predictions"
	defer h.observe(endpoint, time.Now())

	req := &models.ListPredictionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":"+endpoint, 10, 5) {
		return xhttp.TooManyRequestsResponse(c, xhttp.TooManyRequestsError("try again shortly"))
	}

	ctx := c.Request().Context()
	key := cacheKey(endpoint, c.QueryString())
	if b, ok := h.fromCache(ctx, endpoint, key); ok {
		return xhttp.SuccessResponse(c, json.RawMessage(b))
	}

	preds, err := h.reports.ListPredictions(ctx, usecase.ListPredictionsParams{
		Symbol:    req.Symbol,
		Timeframe: req.TF,
		Status:    models.VerificationStatus(req.Status),
		Limit:     req.Limit,
	})
	if err != nil {
		h.fail(endpoint, err)
		return xhttp.AppErrorResponse(c, err)
	}

	b, err := h.putCache(ctx, endpoint, key, toPredictionDTOs(preds), 5*time.Second)
	if err != nil {
		h.fail(endpoint, err)
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, b)
}

func (h *ReportsHandler) GetPrediction(c echo.Context) error {
	const endpoint = "prediction"
	defer h.observe(endpoint, time.Now())

	req := &models.GetPredictionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":"+endpoint, 20, 10) {
		return xhttp.TooManyRequestsResponse(c, xhttp.TooManyRequestsError("try again shortly"))
	}

	p, err := h.reports.GetPrediction(c.Request().Context(), req.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return xhttp.NotFoundResponse(c, xhttp.NotFoundError("prediction not found"))
		}
		h.fail(endpoint, err)
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, toPredictionDTO(*p))
}

func (h *ReportsHandler) Accuracy(c echo.Context) error {
	const endpoint = "accuracy"
	defer h.observe(endpoint, time.Now())

	req := &models.AccuracyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":"+endpoint, 5, 2) {
		return xhttp.TooManyRequestsResponse(c, xhttp.TooManyRequestsError("try again shortly"))
	}

	ctx := c.Request().Context()
	key := cacheKey(endpoint, c.QueryString())
	if b, ok := h.fromCache(ctx, endpoint, key); ok {
		return xhttp.SuccessResponse(c, json.RawMessage(b))
	}

	rep, err := h.reports.Accuracy(ctx, req.Symbol, req.Limit)
	if err != nil {
		h.fail(endpoint, err)
		return xhttp.AppErrorResponse(c, err)
	}

	b, err := h.putCache(ctx, endpoint, key, toAccuracyDTO(rep), 30*time.Second)
	if err != nil {
		h.fail(endpoint, err)
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, b)
}

func (h *ReportsHandler) WeightHistory(c echo.Context) error {
	const endpoint = "weights"
	defer h.observe(endpoint, time.Now())

	req := &models.WeightHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":"+endpoint, 5, 2) {
		return xhttp.TooManyRequestsResponse(c, xhttp.TooManyRequestsError("try again shortly"))
	}

	ctx := c.Request().Context()
	key := cacheKey(endpoint, c.QueryString())
	if b, ok := h.fromCache(ctx, endpoint, key); ok {
		return xhttp.SuccessResponse(c, json.RawMessage(b))
	}

	sets, err := h.reports.WeightHistory(ctx, req.Limit)
	if err != nil {
		h.fail(endpoint, err)
		return xhttp.AppErrorResponse(c, err)
	}

	b, err := h.putCache(ctx, endpoint, key, toWeightSetDTOs(sets), 30*time.Second)
	if err != nil {
		h.fail(endpoint, err)
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, b)
}

func (h *ReportsHandler) ActiveWeights(c echo.Context) error {
	const endpoint = "weights_active"
	defer h.observe(endpoint, time.Now())

	if !h.rl.Allow(c.RealIP()+":"+endpoint, 10, 5) {
		return xhttp.TooManyRequestsResponse(c, xhttp.TooManyRequestsError("try again shortly"))
	}

	ws, err := h.reports.ActiveWeights(c.Request().Context())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return xhttp.NotFoundResponse(c, xhttp.NotFoundError("no weight set recorded"))
		}
		h.fail(endpoint, err)
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, toWeightSetDTO(*ws))
}

func (h *ReportsHandler) Snapshot(c echo.Context) error {
	const endpoint = "snapshot"
	defer h.observe(endpoint, time.Now())

	req := &models.SnapshotRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":"+endpoint, 10, 5) {
		return xhttp.TooManyRequestsResponse(c, xhttp.TooManyRequestsError("try again shortly"))
	}

	snap, err := h.analysis.Snapshot(c.Request().Context(), req.Symbol, domrepo.Timeframe(req.TF))
	if err != nil {
		if errors.Is(err, models.ErrInsufficientData) {
			return xhttp.NotFoundResponse(c, xhttp.NotFoundError("not enough history for this pair yet"))
		}
		h.fail(endpoint, err)
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, toSnapshotDTO(snap))
}

func (h *ReportsHandler) Candles(c echo.Context) error {
	const endpoint = "candles"
	defer h.observe(endpoint, time.Now())

	req := &models.GetCandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, ok := util.ParseTime(req.From)
	if !ok {
		return xhttp.BadRequestResponse(c, xhttp.BadRequestError("from must be RFC3339 or unix seconds"))
	}
	to := time.Now().UTC()
	if req.To != "" {
		to, ok = util.ParseTime(req.To)
		if !ok {
			return xhttp.BadRequestResponse(c, xhttp.BadRequestError("to must be RFC3339 or unix seconds"))
		}
	}
	if !h.rl.Allow(c.RealIP()+":"+endpoint, 5, 2) {
		return xhttp.TooManyRequestsResponse(c, xhttp.TooManyRequestsError("try again shortly"))
	}

	ctx := c.Request().Context()
	key := cacheKey(endpoint, c.QueryString())
	if b, ok := h.fromCache(ctx, endpoint, key); ok {
		return xhttp.SuccessResponse(c, json.RawMessage(b))
	}

	res, err := h.candles.GetCandles(ctx, usecase.CandleQuery{
		Symbol:    req.Symbol,
		Timeframe: domrepo.Timeframe(req.TF),
		From:      from,
		To:        to,
		Limit:     req.Limit,
	})
	if err != nil {
		h.fail(endpoint, err)
		return xhttp.AppErrorResponse(c, err)
	}

	b, err := h.putCache(ctx, endpoint, key, toCandlesResultDTO(res), 10*time.Second)
	if err != nil {
		h.fail(endpoint, err)
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, b)
}

func (h *ReportsHandler) Healthz(c echo.Context) error {
	rep := h.checkHealth(c.Request().Context())
	status := http.StatusOK
	if rep.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, rep)
}
