package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/retailbill/billsync/internal/schema"
)

const requestIDHeader = "X-Request-ID"

// Response is the envelope of every sync endpoint reply.
type Response struct {
	Success bool            `json:"success"`
	Data    *schema.Payload `json:"data"`
	Message string          `json:"message"`
}

func fail(msg string) Response {
	return Response{Message: msg}
}

func (s *Server) handleAction(c *gin.Context) {
	action := c.Query("action")
	c.Set("action", action)

	switch {
	case (action == "sync" || action == "import") && c.Request.Method == http.MethodPost:
		s.handleSync(c)
	case action == "export" && c.Request.Method == http.MethodGet:
		s.handleExport(c)
	default:
		c.JSON(http.StatusBadRequest, fail("Invalid action"))
	}
}

func (s *Server) handleSync(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes)

	var p schema.Payload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, fail("Invalid JSON data"))
		return
	}

	if _, err := s.store.Apply(c.Request.Context(), &p); err != nil {
		_ = c.Error(err)
		c.JSON(syncStatus(err), fail("Sync failed: "+cause(err)))
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Message: "Data synced successfully"})
}

func (s *Server) handleExport(c *gin.Context) {
	p, err := s.store.Export(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, fail("Export failed: "+err.Error()))
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: p, Message: "Data exported successfully"})
}

// cause strips the SyncError prefix so the message reads "Sync failed: <cause>".
func cause(err error) string {
	var se *schema.SyncError
	if errors.As(err, &se) {
		switch {
		case se.Err == nil:
			return se.Message
		case se.Message == "":
			return se.Err.Error()
		}
		return se.Message + ": " + se.Err.Error()
	}
	return err.Error()
}

func syncStatus(err error) int {
	if schema.IsValidation(err) || errors.Is(err, schema.ErrUnsupportedVersion) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// requestID tags each request with a correlation id, reusing the caller's.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"action":     c.GetString("action"),
			"latency":    time.Since(start).String(),
			"request_id": c.GetString("request_id"),
		})
		if len(c.Errors) > 0 {
			entry.WithError(c.Errors.Last().Err).Warn("request failed")
			return
		}
		entry.Info("request")
	}
}
