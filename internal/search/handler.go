package search

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-community/backend/pkg/response"
)

// Handler serves GET /search.
type Handler struct {
	searcher Searcher
	logger   *zap.Logger
}

// NewHandler creates a search handler.
func NewHandler(searcher Searcher, logger *zap.Logger) *Handler {
	return &Handler{searcher: searcher, logger: logger}
}

var errorMappings = []response.Mapping{
	{Err: ErrQueryTooShort, Status: http.StatusBadRequest},
	{Err: ErrQueryTooLong, Status: http.StatusBadRequest},
	{Err: ErrInvalidKind, Status: http.StatusBadRequest},
}

// Search handles GET /search?q=&type=&limit=.
func (h *Handler) Search(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	req, err := NewRequest(c.Query("q"), c.Query("type"), limit)
	if err != nil {
		response.Error(c, err, "invalid search", errorMappings...)
		return
	}
	hits, err := h.searcher.Search(c.Request.Context(), req.Query, req.Kinds, req.Limit)
	if err != nil {
		h.logger.Error("search", zap.String("query", req.Query), zap.Error(err))
		response.Internal(c, "search failed")
		return
	}
	response.OK(c, hits)
}
