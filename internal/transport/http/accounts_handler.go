package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/ecomsvc/order-payments/internal/payments"
)

func RegisterAccountHandlers(r *gin.Engine, svc *payments.Service) {
	v1 := r.Group("/v1")
	{
		v1.POST("/accounts/:userId", createAccountHandler(svc))
		v1.POST("/accounts/:userId/deposit", depositHandler(svc))
		v1.GET("/accounts/:userId/balance", balanceHandler(svc))
	}
}

func createAccountHandler(svc *payments.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		acct, err := svc.CreateAccount(c, c.Param("userId"))
		if err != nil {
			if errors.Is(err, payments.ErrAccountExists) {
				c.JSON(http.StatusConflict, gin.H{"error": "account already exists"})
				return
			}
			if errors.Is(err, payments.ErrEmptyUserID) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, acct)
	}
}

type depositReq struct {
	Amount string `json:"amount" binding:"required"`
}

func depositHandler(svc *payments.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req depositReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		amt, err := decimal.NewFromString(req.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
			return
		}
		bal, err := svc.Deposit(c, c.Param("userId"), amt)
		if err != nil {
			if errors.Is(err, payments.ErrAccountNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
				return
			}
			if errors.Is(err, payments.ErrOptimisticLock) {
				c.JSON(http.StatusConflict, gin.H{"error": "account busy, retry"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"balance": bal})
	}
}

func balanceHandler(svc *payments.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		bal, err := svc.GetBalance(c, c.Param("userId"))
		if err != nil {
			if errors.Is(err, payments.ErrAccountNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"balance": bal})
	}
}
