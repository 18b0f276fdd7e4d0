package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"stock-ledger/internal/models"
	"stock-ledger/internal/service"

	"github.com/gin-gonic/gin"
)

// confirmRequest is the body of deliver and revert. Both move stock, so the
// caller has to confirm explicitly.
type confirmRequest struct {
	Confirm bool `json:"confirm"`
}

func (h *Handler) createReservation(c *gin.Context) {
	var req service.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	clamp, err := queryBool(c, "clamp")
	if err != nil {
		badRequest(c, err)
		return
	}
	req.ClampToAvailable = clamp
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	resp, err := h.reservations.Create(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

func (h *Handler) listReservations(c *gin.Context) {
	filter, err := reservationFilter(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	reservations, err := h.reservations.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservations)
}

func (h *Handler) getReservation(c *gin.Context) {
	r, err := h.reservations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) updateReservation(c *gin.Context) {
	var req service.UpdateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	clamp, err := queryBool(c, "clamp")
	if err != nil {
		badRequest(c, err)
		return
	}
	req.ClampToAvailable = clamp

	r, err := h.reservations.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// deleteReservation returns the removed reservation so a client can undo
func (h *Handler) deleteReservation(c *gin.Context) {
	r, err := h.reservations.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) cancelReservation(c *gin.Context) {
	r, err := h.reservations.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) deliverReservation(c *gin.Context) {
	var req confirmRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, err)
		return
	}

	r, err := h.reservations.Deliver(c.Request.Context(), c.Param("id"), req.Confirm)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) revertDelivery(c *gin.Context) {
	var req confirmRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, err)
		return
	}

	r, err := h.reservations.RevertDelivery(c.Request.Context(), c.Param("id"), req.Confirm)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// reservationFilter reads the equality filters shared by the reservation and
// group listings
func reservationFilter(c *gin.Context) (models.ReservationFilter, error) {
	f := models.ReservationFilter{
		ProductID:    c.Query("product_id"),
		PackageLabel: c.Query("package_label"),
		CustomerID:   c.Query("customer_id"),
		Status:       models.ReservationStatus(c.Query("status")),
	}
	if date := c.Query("date"); date != "" {
		day, err := time.Parse(models.DateLayout, date)
		if err != nil {
			return f, fmt.Errorf("%w: %q", service.ErrInvalidDate, date)
		}
		f.Date = &day
	}
	return f, nil
}

func queryBool(c *gin.Context, name string) (bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("query parameter %s: %w", name, err)
	}
	return v, nil
}

// bindOptionalJSON binds the body when there is one
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	err := c.ShouldBindJSON(obj)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
