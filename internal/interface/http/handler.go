package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/fevertrack/internal/domain/tracking"
)

const streamHeartbeat = 15 * time.Second

// Handler wires the HTTP transport to the tracking service.
type Handler struct {
	svc    tracking.Service
	logger *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(svc tracking.Service, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger.With("component", "http.handler"),
	}
}

// StartEpisode opens a new episode.
func (h *Handler) StartEpisode(c *gin.Context) {
	var req tracking.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, invalidRequest(errMessage(err), err))
		return
	}
	view, err := h.svc.StartEpisode(c.Request.Context(), mustSession(c), req)
	if err != nil {
		abortWithError(c, fromServiceError(err))
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GetEpisode returns one episode.
func (h *Handler) GetEpisode(c *gin.Context) {
	view, err := h.svc.GetEpisode(c.Request.Context(), mustSession(c), c.Param("id"))
	if err != nil {
		abortWithError(c, fromServiceError(err))
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListPatientEpisodes returns a patient's episodes, newest first.
func (h *Handler) ListPatientEpisodes(c *gin.Context) {
	views, err := h.svc.ListEpisodes(c.Request.Context(), mustSession(c), c.Param("patientId"))
	if err != nil {
		abortWithError(c, fromServiceError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"episodes": views})
}

// LogReading records a quick or daily reading.
func (h *Handler) LogReading(c *gin.Context) {
	var req tracking.LogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, invalidRequest(errMessage(err), err))
		return
	}
	resp, err := h.svc.LogReading(c.Request.Context(), mustSession(c), c.Param("id"), req)
	if err != nil {
		abortWithError(c, fromServiceError(err))
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ResolveEpisode closes an episode.
func (h *Handler) ResolveEpisode(c *gin.Context) {
	view, err := h.svc.ResolveEpisode(c.Request.Context(), mustSession(c), c.Param("id"))
	if err != nil {
		abortWithError(c, fromServiceError(err))
		return
	}
	c.JSON(http.StatusOK, view)
}

// Trend returns the per-day temperature trend.
func (h *Handler) Trend(c *gin.Context) {
	resp, err := h.svc.Trend(c.Request.Context(), mustSession(c), c.Param("id"))
	if err != nil {
		abortWithError(c, fromServiceError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DayDetail returns the readings of one day.
func (h *Handler) DayDetail(c *gin.Context) {
	day, err := strconv.Atoi(c.Param("day"))
	if err != nil {
		abortWithError(c, invalidRequest("day must be an integer", err))
		return
	}
	resp, err := h.svc.DayDetail(c.Request.Context(), mustSession(c), c.Param("id"), day)
	if err != nil {
		abortWithError(c, fromServiceError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Latest returns the most recent snapshot.
func (h *Handler) Latest(c *gin.Context) {
	snap, err := h.svc.Latest(c.Request.Context(), mustSession(c), c.Param("id"))
	if err != nil {
		abortWithError(c, fromServiceError(err))
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Status returns the current composed status.
func (h *Handler) Status(c *gin.Context) {
	status, err := h.svc.CurrentStatus(c.Request.Context(), mustSession(c), c.Param("id"))
	if err != nil {
		abortWithError(c, fromServiceError(err))
		return
	}
	c.JSON(http.StatusOK, status)
}

// RecentAlerts lists the clinician inbox.
func (h *Handler) RecentAlerts(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			abortWithError(c, invalidRequest("limit must be a non-negative integer", err))
			return
		}
		limit = parsed
	}
	alerts, err := h.svc.RecentAlerts(c.Request.Context(), mustSession(c), limit)
	if err != nil {
		abortWithError(c, fromServiceError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

// MarkAlertRead flags an alert as read.
func (h *Handler) MarkAlertRead(c *gin.Context) {
	if err := h.svc.MarkAlertRead(c.Request.Context(), mustSession(c), c.Param("id")); err != nil {
		abortWithError(c, fromServiceError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// DismissAlert removes an alert from the inbox.
func (h *Handler) DismissAlert(c *gin.Context) {
	if err := h.svc.DismissAlert(c.Request.Context(), mustSession(c), c.Param("id")); err != nil {
		abortWithError(c, fromServiceError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// StreamAlerts pushes live alerts using Server-Sent Events.
func (h *Handler) StreamAlerts(c *gin.Context) {
	stream, err := h.svc.SubscribeAlerts(c.Request.Context(), mustSession(c))
	if err != nil {
		abortWithError(c, fromServiceError(err))
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "stream_unsupported", "streaming not supported", nil))
		return
	}
	c.Status(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case alert, ok := <-stream:
			if !ok {
				return
			}
			payload, err := json.Marshal(alert)
			if err != nil {
				h.logger.Error("marshal alert failed", "alertId", alert.ID, "error", err)
				continue
			}
			fmt.Fprintf(c.Writer, "event: alert\nid: %s\ndata: %s\n\n", alert.ID, payload)
			flusher.Flush()
		case <-heartbeat.C:
			// Comment frames keep proxies from closing an idle stream.
			fmt.Fprint(c.Writer, ": ping\n\n")
			flusher.Flush()
		}
	}
}
