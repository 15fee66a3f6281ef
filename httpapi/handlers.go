package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	relay "github.com/grupoevolution/perfect-webhook-system"
	"github.com/grupoevolution/perfect-webhook-system/correlator"
	"github.com/grupoevolution/perfect-webhook-system/journal"
)

const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
)

func (s *Server) handleDashboard(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", dashboardHTML)
}

func (s *Server) handleWebhook(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBodyBytes)
	n, err := relay.DecodeNotification(body)
	if err != nil {
		s.logger.Warn("webhook rejected: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	ack := s.relay.Handle(c.Request.Context(), n)
	switch {
	case ack.Action == correlator.ActionRejected && relay.ErrorCode(ack.Err) == relay.CodeMissingOrderID:
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"action":  ack.Action,
			"error":   ack.Err.Error(),
		})
	case ack.Action == correlator.ActionRejected:
		msg := "relay unavailable"
		if ack.Err != nil {
			msg = ack.Err.Error()
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"action":  ack.Action,
			"error":   msg,
		})
	default:
		resp := gin.H{
			"success": true,
			"message": "Webhook processado",
			"action":  ack.Action,
		}
		if ack.Outcome != nil {
			resp["dispatch"] = gin.H{
				"success":     ack.Outcome.Success,
				"dispatch_id": ack.Outcome.DispatchID,
				"event_type":  ack.Outcome.EventKind,
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	orders := s.relay.Pending()
	c.JSON(http.StatusOK, gin.H{
		"total_pending": len(orders),
		"orders":        orders,
	})
}

type configURLRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleConfigURL(c *gin.Context) {
	if s.target == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"success": false, "message": "URL do N8N não configurável"})
		return
	}

	var req configURLRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "URL não fornecida"})
		return
	}
	if err := s.target.Set(req.URL); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	s.logger.Info("downstream url updated to %s", req.URL)
	s.sink.Record(journal.CategoryInfo, fmt.Sprintf("URL do N8N atualizada: %s", req.URL), map[string]any{"url": req.URL})
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "URL do N8N configurada"})
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{
		"status":         "online",
		"timestamp":      s.now().UTC().Format(relay.ProcessedAtLayout),
		"pending_orders": s.relay.PendingCount(),
	}
	if s.stats != nil {
		resp["dispatch"] = s.stats.Stats()
	}
	if s.target != nil {
		resp["downstream_configured"] = s.target.URL() != ""
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleLogs(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusOK, gin.H{"total": 0, "logs": []journal.Entry{}})
		return
	}

	limit := defaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	entries := s.journal.Entries(limit)
	c.JSON(http.StatusOK, gin.H{"total": len(entries), "logs": entries})
}
