package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ChatHistory returns the most recent chat messages, newest first.
func (h *Handler) ChatHistory(c *gin.Context) {
	limit := h.history.Limit()
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 {
			fail(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, limit)
	}

	messages, err := h.history.Recent(c.Request.Context(), limit)
	if err != nil {
		h.internalError(c, err, "Failed to fetch chat history")
		return
	}
	ok(c, http.StatusOK, messages)
}

func (h *Handler) OnlineUsers(c *gin.Context) {
	users, err := h.presence.Online(c.Request.Context())
	if err != nil {
		h.internalError(c, err, "Failed to fetch online users")
		return
	}
	if users == nil {
		users = []string{}
	}
	ok(c, http.StatusOK, gin.H{"users": users, "count": len(users)})
}

func (h *Handler) UserPresence(c *gin.Context) {
	record, err := h.presence.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.internalError(c, err, "Failed to fetch presence")
		return
	}
	ok(c, http.StatusOK, record)
}
