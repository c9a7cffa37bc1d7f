package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/vkuznec/parts_shop/internal/logging"
	"github.com/vkuznec/parts_shop/internal/models"
	"github.com/vkuznec/parts_shop/internal/mykafka"
	"github.com/vkuznec/parts_shop/internal/service/sale"
)

type SaleHandler struct {
	DB       *gorm.DB
	Svc      *sale.Service
	Producer *mykafka.Producer
}

func (h *SaleHandler) CreateSale(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "sales.create")

	var req sale.CreateSaleInput
	if err := c.Bind(&req); err != nil {
		l.Warn("create_sale_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	created, err := h.Svc.CreateSale(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, sale.ErrValidation):
			l.Warn("create_sale_error", "status", 400, "error", err)
			return errorResponse(c, http.StatusBadRequest, err)
		case errors.Is(err, sale.ErrNotFound):
			l.Warn("create_sale_error", "status", 404, "error", err)
			return errorResponse(c, http.StatusNotFound, err)
		case errors.Is(err, sale.ErrInsufficientStock):
			l.Warn("create_sale_error", "status", 409, "error", err)
			return errorResponse(c, http.StatusConflict, err)
		default:
			l.Error("create_sale_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	publishEvent(c, h.Producer, "sale_events", fmt.Sprint(created.ID), map[string]interface{}{
		"type":         "sale_created",
		"sale_id":      created.ID,
		"total_amount": created.TotalAmount,
		"final_amount": created.FinalAmount,
	})

	l.Info("create_sale_success", "sale_id", created.ID, "final_amount", created.FinalAmount)
	return c.JSON(http.StatusCreated, created)
}

func (h *SaleHandler) GetSales(c echo.Context) error {
	var sales []models.Sale
	err := h.DB.WithContext(c.Request().Context()).
		Preload("Items").
		Order("created_at DESC").
		Find(&sales).Error
	if err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, sales)
}

// GetSale returns the sale with its line items. Items show their snapshot
// fields even when the referenced part has been removed from the catalog.
func (h *SaleHandler) GetSale(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	var s models.Sale
	err = h.DB.WithContext(c.Request().Context()).Preload("Items").First(&s, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorResponse(c, http.StatusNotFound, fmt.Errorf("продажа с ID %d не найдена", id))
		}
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, s)
}
