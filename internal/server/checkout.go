package server

import (
	"net/http"
	"strings"

	checkoutdomain "github.com/f3impact/ignite/internal/checkout/domain"
	customerdomain "github.com/f3impact/ignite/internal/customer/domain"
	"github.com/gin-gonic/gin"
)

type createCheckoutSessionRequest struct {
	Event     string            `json:"event"`
	EventName string            `json:"eventName"`
	Type      string            `json:"type"`
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
	Email     string            `json:"email"`
	Name      string            `json:"name"`
	PaxName   string            `json:"paxName"`
	AO        string            `json:"ao"`
	Region    string            `json:"region"`
	Metadata  map[string]string `json:"metadata"`
}

func (s *Server) CreateCheckoutSession(c *gin.Context) {
	var req createCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.checkoutSvc.CreateSession(c.Request.Context(), checkoutdomain.CreateSessionRequest{
		Event:     strings.TrimSpace(req.Event),
		EventName: strings.TrimSpace(req.EventName),
		Type:      req.Type,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Contact: customerdomain.Contact{
			Email:   req.Email,
			Name:    strings.TrimSpace(req.Name),
			PaxName: strings.TrimSpace(req.PaxName),
			AO:      strings.TrimSpace(req.AO),
			Region:  strings.TrimSpace(req.Region),
		},
		Metadata: req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) VerifyCheckoutSession(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("id"))
	resp, err := s.checkoutSvc.VerifySession(c.Request.Context(), sessionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
