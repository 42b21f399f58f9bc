package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/OFFIS-RIT/motifs/internal/server/middleware"
	"github.com/OFFIS-RIT/motifs/pkg/flavor"
	"github.com/OFFIS-RIT/motifs/pkg/logger"
	"github.com/OFFIS-RIT/motifs/pkg/motif"
)

type motifsResponse struct {
	Hash     string                  `json:"motif_hash"`
	Plain    []*motif.PlainMotif     `json:"plain"`
	Flavored []*flavor.FlavoredMotif `json:"flavored"`
}

// GetMotifsHandler returns every plain and flavored motif with the given
// fingerprint, across sessions.
func GetMotifsHandler(c echo.Context) error {
	type getMotifsParams struct {
		Hash string `param:"hash" validate:"required,hexadecimal"`
	}

	params := new(getMotifsParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	st := c.(*middleware.AppContext).App.Store
	matches, err := st.QueryMotifsByHash(c.Request().Context(), params.Hash)
	if err != nil {
		logger.Error("[Server] Failed to query motifs", "hash", params.Hash, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	if len(matches.Plain) == 0 && len(matches.Flavored) == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "No motif with this hash"})
	}

	res := motifsResponse{Hash: params.Hash, Plain: matches.Plain, Flavored: matches.Flavored}
	if res.Plain == nil {
		res.Plain = []*motif.PlainMotif{}
	}
	if res.Flavored == nil {
		res.Flavored = []*flavor.FlavoredMotif{}
	}
	return c.JSON(http.StatusOK, res)
}
