package router

import (
	"errors"
	"net/http"

	"order_payment/internal/payment"

	"github.com/gin-gonic/gin"
)

var errStatus = []struct {
	err    error
	status int
}{
	{payment.ErrUnauthorized, http.StatusUnauthorized},
	{payment.ErrInsufficientDeposit, http.StatusBadRequest},
	{payment.ErrInvalidMessage, http.StatusBadRequest},
	{payment.ErrInsufficientAmount, http.StatusBadRequest},
	{payment.ErrInvalidArgument, http.StatusBadRequest},
	{payment.ErrNotFound, http.StatusNotFound},
	{payment.ErrTransferNotFound, http.StatusNotFound},
	{payment.ErrDuplicateOrder, http.StatusConflict},
	{payment.ErrInvalidState, http.StatusConflict},
	{payment.ErrAlreadyInitialized, http.StatusConflict},
	{payment.ErrBusy, http.StatusConflict},
	{payment.ErrNotInitialized, http.StatusServiceUnavailable},
}

// writeErr maps domain errors to HTTP statuses; anything else is a 500.
func writeErr(c *gin.Context, err error) {
	for _, e := range errStatus {
		if errors.Is(err, e.err) {
			c.JSON(e.status, gin.H{"code": e.status, "msg": err.Error()})
			return
		}
	}
	c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "msg": err.Error()})
}
