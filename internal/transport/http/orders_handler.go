package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ecomsvc/order-payments/internal/orders"
)

func RegisterOrderHandlers(r *gin.Engine, svc *orders.Service) {
	v1 := r.Group("/v1")
	{
		v1.POST("/orders", createOrderHandler(svc))
		v1.GET("/orders", listOrdersHandler(svc))
		v1.GET("/orders/:id", getOrderHandler(svc))
	}
}

type createOrderReq struct {
	UserID      string `json:"user_id" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	Description string `json:"description"`
}

func createOrderHandler(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createOrderReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		amt, err := decimal.NewFromString(req.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
			return
		}
		order, err := svc.CreateOrder(c, req.UserID, amt, req.Description)
		if err != nil {
			if errors.Is(err, orders.ErrInvalidAmount) || errors.Is(err, orders.ErrEmptyUserID) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": order.ID})
	}
}

func listOrdersHandler(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := svc.ListOrders(c)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func getOrderHandler(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
			return
		}
		order, err := svc.GetOrder(c, id)
		if err != nil {
			if errors.Is(err, orders.ErrOrderNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, order)
	}
}
