package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log/level"

	"github.com/vegasq/insightq"
)

func (s *Server) addDataset(c *gin.Context) {
	body, ok := s.readBody(c)
	if !ok {
		return
	}
	ids, err := s.svc.AddDataset(c.Request.Context(), c.Param("id"), c.Param("kind"), body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": ids})
}

func (s *Server) removeDataset(c *gin.Context) {
	id, err := s.svc.RemoveDataset(c.Param("id"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"result": id})
	case insightq.ErrIs(err, insightq.CodeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case insightq.ErrIs(err, insightq.CodeValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		level.Error(s.logger).Log("msg", "failed to remove dataset", "id", c.Param("id"), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) performQuery(c *gin.Context) {
	body, ok := s.readBody(c)
	if !ok {
		return
	}
	rows, err := s.svc.PerformQuery(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if rows == nil {
		rows = []map[string]interface{}{}
	}
	c.JSON(http.StatusOK, gin.H{"result": rows})
}

func (s *Server) listDatasets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"result": s.svc.ListDatasets()})
}

func (s *Server) echo(c *gin.Context) {
	msg := c.Param("msg")
	c.JSON(http.StatusOK, gin.H{"result": msg + "..." + msg})
}

// readBody reads the request body up to the configured limit. On failure it
// writes the error response and reports false.
func (s *Server) readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return body, true
}
