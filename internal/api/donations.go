package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/relief-hub/internal/models"
)

type donationRequest struct {
	Name          string `json:"name" form:"name" binding:"required"`
	Email         string `json:"email" form:"email" binding:"required,email"`
	Amount        amount `json:"amount" form:"amount" binding:"required,gt=0"`
	PaymentMethod string `json:"paymentMethod" form:"paymentMethod" binding:"required,oneof=credit-card paypal crypto other"`
}

func (h *Handler) createDonation(c *gin.Context) {
	var req donationRequest
	if err := c.ShouldBind(&req); err != nil {
		h.bindError(c, err)
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		badRequest(c, "name: is required")
		return
	}

	donation := &models.Donation{
		Name:          name,
		Email:         req.Email,
		Amount:        float64(req.Amount),
		PaymentMethod: models.PaymentMethod(req.PaymentMethod),
	}
	if err := h.store.AddDonation(c.Request.Context(), donation); err != nil {
		h.writeError(c, err)
		return
	}
	h.metrics.DonationsCreated.Inc()

	h.logger.Info("donation recorded", "id", donation.ID, "method", donation.PaymentMethod)
	c.JSON(http.StatusCreated, donation)
}

func (h *Handler) listDonations(c *gin.Context) {
	donations, err := h.store.ListDonations(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if donations == nil {
		donations = []models.Donation{}
	}
	c.JSON(http.StatusOK, donations)
}
