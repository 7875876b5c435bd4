package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (h HandlerSet) ListNotifications(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "limit must be an integer")
			return
		}
		limit = n
	}

	items, err := h.svc.Notifications.ListFor(c.Request.Context(), caller(c), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": mapSlice(items, newNotificationResponse)})
}

func (h HandlerSet) UnreadCount(c *gin.Context) {
	count, err := h.svc.Notifications.UnreadCount(c.Request.Context(), caller(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func (h HandlerSet) MarkRead(c *gin.Context) {
	if err := h.svc.Notifications.MarkRead(c.Request.Context(), caller(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) MarkAllRead(c *gin.Context) {
	marked, err := h.svc.Notifications.MarkAllRead(c.Request.Context(), caller(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": marked})
}
