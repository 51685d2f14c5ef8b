package router

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"order_payment/internal/middleware"
	"order_payment/internal/model"
	"order_payment/internal/payment"
	rediskey "order_payment/pkg/redis"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	DB *gorm.DB
	// Boot builds the App from persisted state. It is retried after initialize.
	Boot func(ctx context.Context) (*payment.App, error)

	// Redis is optional; without it pay is not rate limited.
	Redis *rd.Client
	// Cache is optional; transfer reads then always hit the database.
	Cache *rediskey.TransferStateCache

	AdminToken    string
	PayRateLimit  int
	PayRateWindow time.Duration
}

type holder struct {
	app atomic.Pointer[payment.App]
}

// Setup registers every route. The App is booted eagerly when state exists.
func Setup(r *gin.Engine, deps Deps) error {
	h := &holder{}
	app, err := deps.Boot(context.Background())
	switch {
	case err == nil:
		h.app.Store(app)
	case errors.Is(err, payment.ErrNotInitialized):
	default:
		return err
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})

	api := r.Group("/api")
	api.POST("/initialize", middleware.RequireAdminToken(deps.AdminToken), initialize(deps, h))
	api.GET("/orders/:order_id", getOrder(h))
	api.GET("/transfers/:transfer_id", getTransfer(h, deps.Cache))

	caller := api.Group("", middleware.RequireAccount())
	pay := []gin.HandlerFunc{}
	if deps.Redis != nil {
		pay = append(pay, middleware.RedisRateLimit(deps.Redis, "pay", deps.PayRateLimit, deps.PayRateWindow))
	}
	caller.POST("/orders/pay", append(pay, payOrder(h))...)
	caller.POST("/orders/:order_id/refund", refund(h))
	caller.POST("/ft/on_transfer", onTransfer(h))
	return nil
}

// withApp resolves the App or answers 503 until the service is initialized.
func (h *holder) withApp(fn func(c *gin.Context, app *payment.App)) gin.HandlerFunc {
	return func(c *gin.Context) {
		app := h.app.Load()
		if app == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"code": http.StatusServiceUnavailable, "msg": "service not initialized"})
			return
		}
		fn(c, app)
	}
}

func initialize(deps Deps, h *holder) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			OwnerID            string `json:"owner_id" binding:"required,max=128"`
			FungibleContractID string `json:"fungible_asset_contract_id" binding:"required,max=128"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		st, err := payment.Initialize(c.Request.Context(), deps.DB, req.OwnerID, req.FungibleContractID)
		if err != nil {
			writeErr(c, err)
			return
		}
		app, err := deps.Boot(c.Request.Context())
		if err != nil {
			writeErr(c, err)
			return
		}
		h.app.Store(app)
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": st})
	}
}

func payOrder(h *holder) gin.HandlerFunc {
	return h.withApp(func(c *gin.Context, app *payment.App) {
		var req struct {
			OrderID     string        `json:"order_id" binding:"required,max=128"`
			OrderAmount *model.Amount `json:"order_amount" binding:"required"`
			// only the gateway attests funds; a deposit in the body is refused
			AttachedDeposit *model.Amount `json:"attached_deposit"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		if req.AttachedDeposit != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code": 400,
				"msg":  "attached_deposit is read from the " + middleware.HeaderAttachedDeposit + " header",
			})
			return
		}
		deposit, err := middleware.AttachedDeposit(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		call := payment.Call{
			Predecessor:     middleware.AccountID(c),
			Signer:          middleware.SignerID(c),
			AttachedDeposit: deposit,
		}
		change, err := app.PayOrder(c.Request.Context(), call, req.OrderID, *req.OrderAmount)
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"order_id": req.OrderID, "change": change}})
	})
}

func refund(h *holder) gin.HandlerFunc {
	return h.withApp(func(c *gin.Context, app *payment.App) {
		call := payment.Call{Predecessor: middleware.AccountID(c), Signer: middleware.SignerID(c)}
		receipt, err := app.Refund(c.Request.Context(), call, c.Param("order_id"))
		if err != nil {
			writeErr(c, err)
			return
		}
		// the transfer resolves later; poll the transfer or the order
		status := http.StatusOK
		if receipt.State == model.RefundPending {
			status = http.StatusAccepted
		}
		c.JSON(status, gin.H{"code": 0, "data": receipt})
	})
}

func onTransfer(h *holder) gin.HandlerFunc {
	return h.withApp(func(c *gin.Context, app *payment.App) {
		var req struct {
			SenderID string        `json:"sender_id" binding:"required,max=128"`
			Amount   *model.Amount `json:"amount" binding:"required"`
			Msg      string        `json:"msg"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		call := payment.Call{Predecessor: middleware.AccountID(c), Signer: middleware.SignerID(c)}
		residual, err := app.OnTransfer(c.Request.Context(), call, req.SenderID, *req.Amount, req.Msg)
		if err != nil {
			writeErr(c, err)
			return
		}
		// the asset contract reads the residual and returns it to the sender
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": residual})
	})
}

// orderView adds the derived refund flag to the stored record.
type orderView struct {
	model.Order
	IsRefund bool `json:"is_refund"`
}

func getOrder(h *holder) gin.HandlerFunc {
	return h.withApp(func(c *gin.Context, app *payment.App) {
		o, err := app.GetOrder(c.Request.Context(), c.Param("order_id"))
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": orderView{Order: o, IsRefund: o.IsRefund()}})
	})
}

// getTransfer answers from the Redis cache first, then the journal.
func getTransfer(h *holder, cache *rediskey.TransferStateCache) gin.HandlerFunc {
	return h.withApp(func(c *gin.Context, app *payment.App) {
		id := c.Param("transfer_id")
		if cache != nil {
			if st, ok, err := cache.Get(c.Request.Context(), id); err == nil && ok {
				c.JSON(http.StatusOK, gin.H{"code": 0, "data": st})
				return
			}
		}
		t, err := app.GetTransfer(c.Request.Context(), id)
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": rediskey.TransferState{
			TransferID: t.TransferID,
			OrderID:    t.OrderID,
			Kind:       string(t.Kind),
			Status:     t.Status.String(),
			Amount:     t.Amount.String(),
			Reason:     t.ErrorMsg,
		}})
	})
}
