package api

import (
	"net/http"

	"stock-ledger/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listGroups(c *gin.Context) {
	filter, err := reservationFilter(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	groups, err := h.groups.ListGroups(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (h *Handler) getGroup(c *gin.Context) {
	group, err := h.groups.GetGroup(c.Request.Context(), c.Param("customerId"), c.Param("date"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// editGroup replaces the group's members and applies status and notes to
// all of them
func (h *Handler) editGroup(c *gin.Context) {
	var req service.EditGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	group, err := h.groups.EditGroup(c.Request.Context(), c.Param("customerId"), c.Param("date"), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}
