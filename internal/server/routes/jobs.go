package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/OFFIS-RIT/motifs/internal/queue"
	"github.com/OFFIS-RIT/motifs/internal/server/middleware"
	"github.com/OFFIS-RIT/motifs/pkg/logger"
)

type jobResponse struct {
	Queue         string `json:"queue"`
	CorrelationID string `json:"correlation_id"`
}

func enqueued(c echo.Context, queueName, id string, err error) error {
	if errors.Is(err, queue.ErrInvalidMessage) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err != nil {
		logger.Error("[Server] Failed to enqueue job", "queue", queueName, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to enqueue job"})
	}
	return c.JSON(http.StatusAccepted, jobResponse{Queue: queueName, CorrelationID: id})
}

func PostBuildJobHandler(c echo.Context) error {
	data := new(queue.BuildJobMsg)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	ch := c.(*middleware.AppContext).App.Queue
	id, err := queue.PublishBuildJob(c.Request().Context(), ch, data)
	return enqueued(c, queue.BuildQueue, id, err)
}

func PostMineJobHandler(c echo.Context) error {
	data := new(queue.MineJobMsg)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	ch := c.(*middleware.AppContext).App.Queue
	id, err := queue.PublishMineJob(c.Request().Context(), ch, data)
	return enqueued(c, queue.MineQueue, id, err)
}
