package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/f3impact/ignite/internal/customer/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListCustomerOrders(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, customerdomain.ErrInvalidID)
		return
	}

	customer, err := s.customerSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	orders, err := s.orderSvc.ListByCustomer(c.Request.Context(), customer.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"customer": customer,
		"orders":   orders,
	}})
}

func (s *Server) GetEventStats(c *gin.Context) {
	event := strings.TrimSpace(c.Param("event"))
	if event == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	stats, err := s.orderSvc.GetEventStats(c.Request.Context(), event)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}
