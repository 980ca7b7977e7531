package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jondoveston/vmtop/internal/model"
	"github.com/jondoveston/vmtop/internal/pipeline"
)

type selectionResponse struct {
	ID       string            `json:"id"`
	Selected bool              `json:"selected"`
	Found    bool              `json:"found"`
	Bundle   model.ChartBundle `json:"bundle"`
}

type selectRequest struct {
	ID string `json:"id" binding:"required"`
}

func (s *Server) health(c *gin.Context) {
	res := s.store.Load()
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"entities":  len(res.Entities),
		"fetchedAt": res.FetchedAt,
		"clients":   s.hub.Clients(),
	})
}

func (s *Server) entities(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Load().Entities)
}

func (s *Server) snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Load())
}

// snapshotEntity answers 404 for unknown ids but still sends an empty bundle,
// so clients can render "no data" without special-casing the error.
func (s *Server) snapshotEntity(c *gin.Context) {
	bundle, ok := s.store.Load().Snapshot.Get(c.Param("id"))
	status := http.StatusOK
	if !ok {
		status = http.StatusNotFound
	}
	c.JSON(status, bundle)
}

func (s *Server) selectionResponse() selectionResponse {
	id, selected := s.selection.Current()
	bundle, found := s.selection.Derive(s.store.Load().Snapshot)
	return selectionResponse{ID: id, Selected: selected, Found: found, Bundle: bundle}
}

func (s *Server) getSelection(c *gin.Context) {
	c.JSON(http.StatusOK, s.selectionResponse())
}

func (s *Server) putSelection(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.selection.Select(req.ID)
	c.JSON(http.StatusOK, s.selectionResponse())
}

func (s *Server) listServices(c *gin.Context) {
	if s.services == nil {
		c.JSON(http.StatusOK, map[string]model.ServiceStatus{})
		return
	}
	c.JSON(http.StatusOK, s.services.Services(c.Request.Context()))
}

func (s *Server) refresh(c *gin.Context) {
	res, err := s.refresher.Refresh(c.Request.Context())
	if err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, pipeline.ErrSuperseded) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) websocket(c *gin.Context) {
	if err := s.hub.serve(s.ctx, c.Writer, c.Request, s.message("selection")); err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
	}
}
