package middleware

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"order_payment/internal/model"

	"github.com/gin-gonic/gin"
)

// Identity and deposit headers are set by the signing gateway in front of this
// service, which strips any client supplied copies.
const (
	HeaderAccountID       = "X-Account-Id"
	HeaderSignerID        = "X-Signer-Id"
	HeaderAttachedDeposit = "X-Attached-Deposit"
	HeaderAdminToken      = "X-Admin-Token"

	ctxAccountID = "account_id"
	ctxSignerID  = "signer_id"
)

// RequireAccount rejects requests without a caller identity.
func RequireAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		account := c.GetHeader(HeaderAccountID)
		if account == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": http.StatusUnauthorized,
				"msg":  HeaderAccountID + " header is required",
			})
			return
		}
		signer := c.GetHeader(HeaderSignerID)
		if signer == "" {
			signer = account
		}
		c.Set(ctxAccountID, account)
		c.Set(ctxSignerID, signer)
		c.Next()
	}
}

// AccountID is the immediate caller set by RequireAccount.
func AccountID(c *gin.Context) string { return c.GetString(ctxAccountID) }

// SignerID is the signing account set by RequireAccount.
func SignerID(c *gin.Context) string { return c.GetString(ctxSignerID) }

// AttachedDeposit is the native amount the gateway saw attached to the call.
// No header means nothing was attached.
func AttachedDeposit(c *gin.Context) (model.Amount, error) {
	v := c.GetHeader(HeaderAttachedDeposit)
	if v == "" {
		return model.Amount{}, nil
	}
	a, err := model.ParseAmount(v)
	if err != nil {
		return model.Amount{}, fmt.Errorf("invalid %s header: %w", HeaderAttachedDeposit, err)
	}
	return a, nil
}

// RequireAdminToken guards operator endpoints with a shared token.
func RequireAdminToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(HeaderAdminToken)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": http.StatusUnauthorized,
				"msg":  "invalid admin token",
			})
			return
		}
		c.Next()
	}
}
