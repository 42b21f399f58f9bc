package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/OFFIS-RIT/motifs/internal/server/middleware"
	"github.com/OFFIS-RIT/motifs/pkg/logger"
	"github.com/OFFIS-RIT/motifs/pkg/session"
	"github.com/OFFIS-RIT/motifs/pkg/store"
)

type sessionGraphResponse struct {
	UnitID      int64           `json:"unit_id"`
	IsTrueGraph bool            `json:"is_true_graph"`
	Graph       *session.Graph  `json:"graph"`
	Summary     session.Summary `json:"summary"`
	TopTopic    string          `json:"most_frequent_topic"`
}

func GetSessionGraphHandler(c echo.Context) error {
	type getSessionGraphParams struct {
		UnitID   int64 `param:"unit_id" validate:"required"`
		Shuffled bool  `query:"shuffled"`
	}

	params := new(getSessionGraphParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	st := c.(*middleware.AppContext).App.Store
	g, err := st.QuerySessionGraph(c.Request().Context(), params.UnitID, !params.Shuffled)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Session graph not found"})
	}
	if err != nil {
		logger.Error("[Server] Failed to load session graph", "unit_id", params.UnitID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, sessionGraphResponse{
		UnitID:      g.UnitID,
		IsTrueGraph: g.IsTrueGraph,
		Graph:       g,
		Summary:     g.Summarize(),
		TopTopic:    g.MostFrequentTopic(),
	})
}

func GetSimilarSessionsHandler(c echo.Context) error {
	type getSimilarSessionsParams struct {
		UnitID int64 `param:"unit_id" validate:"required"`
		Limit  int   `query:"limit" validate:"omitempty,min=1,max=100"`
	}

	params := new(getSimilarSessionsParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if params.Limit == 0 {
		params.Limit = 10
	}

	st := c.(*middleware.AppContext).App.Store
	res, err := st.QuerySimilarSessions(c.Request().Context(), params.UnitID, params.Limit)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Session not found"})
	}
	if err != nil {
		logger.Error("[Server] Failed to query similar sessions", "unit_id", params.UnitID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	if res == nil {
		res = []store.SimilarSession{}
	}

	return c.JSON(http.StatusOK, res)
}
