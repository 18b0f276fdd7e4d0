package api

import (
	"errors"
	"net/http"

	"stock-ledger/internal/ledger"
	"stock-ledger/internal/models"
	"stock-ledger/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var sentinelErrors = []errorMapping{
	{ledger.ErrUnknownPackageLabel, http.StatusBadRequest, "unknown_package_label"},
	{ledger.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{ledger.ErrNegativeStock, http.StatusBadRequest, "negative_stock"},
	{ledger.ErrUnknownGroupMember, http.StatusBadRequest, "unknown_group_member"},
	{ledger.ErrDuplicateGroupMember, http.StatusBadRequest, "duplicate_group_member"},
	{service.ErrNameRequired, http.StatusBadRequest, "name_required"},
	{service.ErrInvalidForm, http.StatusBadRequest, "invalid_form"},
	{service.ErrInvalidDate, http.StatusBadRequest, "invalid_date"},
	{service.ErrInvalidStatus, http.StatusBadRequest, "invalid_status"},

	{models.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
	{models.ErrReservationNotFound, http.StatusNotFound, "reservation_not_found"},
	{models.ErrCustomerNotFound, http.StatusNotFound, "customer_not_found"},

	{models.ErrVersionConflict, http.StatusConflict, "version_conflict"},
	{ledger.ErrProductMismatch, http.StatusConflict, "product_mismatch"},
	{ledger.ErrReservationNotEditable, http.StatusConflict, "reservation_not_editable"},
	{service.ErrGroupBusy, http.StatusConflict, "group_busy"},
	{service.ErrRequestInProgress, http.StatusConflict, "request_in_progress"},
	{service.ErrCustomerHasActiveReservations, http.StatusConflict, "customer_has_active_reservations"},

	{ledger.ErrConfirmationRequired, http.StatusUnprocessableEntity, "confirmation_required"},
}

// errorBody maps a ledger error to an HTTP status and a JSON body carrying a
// machine readable code
func errorBody(err error) (int, gin.H) {
	var partial *ledger.PartialGroupUpdateError
	if errors.As(err, &partial) {
		status, cause := errorBody(partial.Err)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			msg = "group update failed"
		}
		return status, gin.H{
			"error":       msg,
			"code":        "partial_group_update",
			"cause":       cause,
			"committed":   nonNil(partial.Committed),
			"failed":      nonNil(partial.Failed),
			"rolled_back": nonNil(partial.RolledBack),
		}
	}

	var insufficient *ledger.InsufficientStockError
	if errors.As(err, &insufficient) {
		return http.StatusConflict, gin.H{
			"error":         err.Error(),
			"code":          "insufficient_stock",
			"product_id":    insufficient.ProductID,
			"package_label": insufficient.PackageLabel,
			"requested":     insufficient.Requested,
			"available":     insufficient.Available,
		}
	}

	var transition *ledger.InvalidTransitionError
	if errors.As(err, &transition) {
		return http.StatusConflict, gin.H{
			"error": err.Error(),
			"code":  "invalid_transition",
			"from":  transition.From,
			"to":    transition.To,
		}
	}

	for _, m := range sentinelErrors {
		if errors.Is(err, m.target) {
			return m.status, gin.H{"error": err.Error(), "code": m.code}
		}
	}

	return http.StatusInternalServerError, gin.H{"error": "internal error", "code": "internal"}
}

// respondError writes err; unexpected errors are logged
func (h *Handler) respondError(c *gin.Context, err error) {
	status, body := errorBody(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"code":    "invalid_request",
		"details": err.Error(),
	})
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
