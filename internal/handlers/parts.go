package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/vkuznec/parts_shop/internal/es"
	"github.com/vkuznec/parts_shop/internal/logging"
	"github.com/vkuznec/parts_shop/internal/models"
	"github.com/vkuznec/parts_shop/internal/mykafka"
	"github.com/vkuznec/parts_shop/internal/service/sale"
	"github.com/vkuznec/parts_shop/internal/storage"
	"github.com/vkuznec/parts_shop/internal/util"
)

type PartHandler struct {
	DB       *gorm.DB
	Store    *storage.Storage
	Svc      *sale.Service
	Producer *mykafka.Producer
	Search   *es.Indexer
}

func (h *PartHandler) GetPart(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	var part models.Part
	err = h.DB.WithContext(c.Request().Context()).
		Preload("Images").
		Preload("Videos").
		First(&part, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorResponse(c, http.StatusNotFound, fmt.Errorf("деталь с ID %d не найдена", id))
		}
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, part)
}

func (h *PartHandler) GetParts(c echo.Context) error {
	ctx := c.Request().Context()

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	query := h.DB.WithContext(ctx).Model(&models.Part{})
	if q := c.QueryParam("q"); q != "" {
		pat := "%" + strings.ToLower(q) + "%"
		query = query.Where(
			"LOWER(name) LIKE ? OR LOWER(car) LIKE ? OR LOWER(part_number) LIKE ? OR LOWER(description) LIKE ?",
			pat, pat, pat, pat,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	var items []models.Part
	if err := query.Preload("Images").Order("id").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total": total,
		"page":  page,
		"size":  limit,
		"items": items,
	})
}

func (h *PartHandler) CreatePart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "parts.create")

	name := c.FormValue("name")
	if name == "" {
		return errorResponse(c, http.StatusBadRequest, errors.New("name required"))
	}
	priceIn := parseIntDefault(c.FormValue("price_in"), 0)
	priceOut := parseIntDefault(c.FormValue("price_out"), 0)
	if priceIn < 0 || priceOut < 0 {
		return errorResponse(c, http.StatusBadRequest, errors.New("price cannot be negative"))
	}
	quantity := parseIntDefault(c.FormValue("quantity"), 1)
	if quantity < 0 {
		return errorResponse(c, http.StatusBadRequest, errors.New("quantity cannot be negative"))
	}

	part := models.Part{
		Name:        name,
		Car:         c.FormValue("car"),
		PartNumber:  c.FormValue("part_number"),
		Description: c.FormValue("description"),
		PriceIn:     int64(priceIn),
		PriceOut:    int64(priceOut),
		Quantity:    quantity,
	}

	files := formFiles(c, "images")
	if len(files) > storage.MaxImages {
		return errorResponse(c, http.StatusBadRequest, fmt.Errorf("слишком много файлов, максимум: %d", storage.MaxImages))
	}

	err := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&part).Error; err != nil {
			return err
		}

		for i, fh := range files {
			if fh.Filename == "" || !storage.AllowedImage(fh.Filename) {
				continue
			}
			if fh.Size > storage.MaxImageSize {
				continue
			}

			src, err := fh.Open()
			if err != nil {
				return err
			}
			filename := storage.UniqueFilename(fh.Filename)
			err = h.Store.SaveImage(part.ID, filename, src)
			src.Close()
			if err != nil {
				return err
			}

			// first uploaded photo becomes the main one
			img := models.PartImage{PartID: part.ID, Filename: filename, IsMain: i == 0}
			if err := tx.Create(&img).Error; err != nil {
				return err
			}
			part.Images = append(part.Images, img)
		}
		return nil
	})
	if err != nil {
		// input was validated before the transaction, so this is db or
		// storage trouble, not the caller's fault
		l.Error("create_part_error", "error", err)
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	publishEvent(c, h.Producer, "part_events", fmt.Sprint(part.ID), map[string]interface{}{
		"type":    "part_created",
		"part_id": part.ID,
		"name":    part.Name,
	})
	h.reindex(c, &part)

	l.Info("create_part_success", "part_id", part.ID)
	return c.JSON(http.StatusCreated, part)
}

func (h *PartHandler) UpdatePart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "parts.update")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	var part models.Part
	if err := h.DB.WithContext(ctx).Preload("Images").First(&part, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorResponse(c, http.StatusNotFound, fmt.Errorf("деталь с ID %d не найдена", id))
		}
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	if v := c.FormValue("name"); v != "" {
		part.Name = v
	}
	if v := c.FormValue("car"); v != "" {
		part.Car = v
	}
	if v := c.FormValue("part_number"); v != "" {
		part.PartNumber = v
	}
	if v := c.FormValue("description"); v != "" {
		part.Description = v
	}
	if v := c.FormValue("price_in"); v != "" {
		p, err := strconv.ParseInt(v, 10, 64)
		if err != nil || p < 0 {
			return errorResponse(c, http.StatusBadRequest, errors.New("price cannot be negative"))
		}
		part.PriceIn = p
	}
	if v := c.FormValue("price_out"); v != "" {
		p, err := strconv.ParseInt(v, 10, 64)
		if err != nil || p < 0 {
			return errorResponse(c, http.StatusBadRequest, errors.New("price cannot be negative"))
		}
		part.PriceOut = p
	}

	files := formFiles(c, "images")
	if len(files) > storage.MaxImages {
		return errorResponse(c, http.StatusBadRequest, fmt.Errorf("слишком много файлов, максимум: %d", storage.MaxImages))
	}

	err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&part).Error; err != nil {
			return err
		}

		for i, fh := range files {
			if fh.Filename == "" || !storage.AllowedImage(fh.Filename) {
				continue
			}
			if fh.Size > storage.MaxImageSize {
				continue
			}

			src, err := fh.Open()
			if err != nil {
				return err
			}
			filename := storage.UniqueFilename(fh.Filename)
			err = h.Store.SaveImage(part.ID, filename, src)
			src.Close()
			if err != nil {
				return err
			}

			img := models.PartImage{
				PartID:   part.ID,
				Filename: filename,
				IsMain:   i == 0 && len(part.Images) == 0,
			}
			if err := tx.Create(&img).Error; err != nil {
				return err
			}
		}

		for _, rawID := range formValues(c, "delete_images") {
			imageID, err := strconv.Atoi(rawID)
			if err != nil {
				continue
			}
			var img models.PartImage
			if err := tx.Where("id = ? AND part_id = ?", imageID, part.ID).First(&img).Error; err != nil {
				continue
			}
			if err := h.Store.DeleteImage(part.ID, img.Filename); err != nil {
				l.Warn("delete image file failed", "filename", img.Filename, "error", err)
			}
			if err := tx.Delete(&img).Error; err != nil {
				return err
			}
		}

		// re-assigning main clears all others first, at most one stays main
		if v := c.FormValue("main_image"); v != "" {
			mainID, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: invalid main_image", sale.ErrValidation)
			}
			if err := tx.Model(&models.PartImage{}).
				Where("part_id = ?", part.ID).
				Update("is_main", false).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.PartImage{}).
				Where("id = ? AND part_id = ?", mainID, part.ID).
				Update("is_main", true).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		l.Warn("update_part_error", "part_id", part.ID, "error", err)
		if errors.Is(err, sale.ErrValidation) {
			return errorResponse(c, http.StatusBadRequest, err)
		}
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	if err := h.DB.WithContext(ctx).Preload("Images").Preload("Videos").First(&part, part.ID).Error; err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	publishEvent(c, h.Producer, "part_events", fmt.Sprint(part.ID), map[string]interface{}{
		"type":    "part_updated",
		"part_id": part.ID,
	})
	h.reindex(c, &part)

	return c.JSON(http.StatusOK, part)
}

func (h *PartHandler) DeletePart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "parts.delete")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	var part models.Part
	if err := h.DB.WithContext(ctx).First(&part, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorResponse(c, http.StatusNotFound, fmt.Errorf("деталь с ID %d не найдена", id))
		}
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	if err := h.Svc.DeletePartCompletely(ctx, part.ID); err != nil {
		l.Warn("delete_part_error", "part_id", part.ID, "error", err)
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	publishEvent(c, h.Producer, "part_events", fmt.Sprint(part.ID), map[string]interface{}{
		"type":    "part_deleted",
		"part_id": part.ID,
	})

	l.Info("delete_part_success", "part_id", part.ID)
	return c.JSON(http.StatusOK, echo.Map{"status": "deleted"})
}

type partHit struct {
	ID         uint   `json:"id"`
	Name       string `json:"name"`
	PartNumber string `json:"part_number"`
	Car        string `json:"car"`
	PriceOut   int64  `json:"price_out"`
	Quantity   int    `json:"quantity"`
	StockInfo  string `json:"stock_info"`
	MainImage  string `json:"main_image,omitempty"`
}

// SearchInStock is the quick lookup behind the sale form: in-stock parts
// only, ten hits, with a ready-to-display summary line.
func (h *PartHandler) SearchInStock(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return c.JSON(http.StatusOK, []partHit{})
	}

	pat := "%" + strings.ToLower(q) + "%"
	var parts []models.Part
	err := h.DB.WithContext(c.Request().Context()).
		Preload("Images").
		Where("quantity > 0").
		Where("LOWER(name) LIKE ? OR LOWER(part_number) LIKE ? OR LOWER(car) LIKE ?", pat, pat, pat).
		Limit(10).
		Find(&parts).Error
	if err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	result := make([]partHit, len(parts))
	for i, p := range parts {
		result[i] = partHit{
			ID:         p.ID,
			Name:       p.Name,
			PartNumber: p.PartNumber,
			Car:        p.Car,
			PriceOut:   p.PriceOut,
			Quantity:   p.Quantity,
			StockInfo:  fmt.Sprintf("%s | %s | %s | %d руб. | В наличии: %d шт.", p.Name, p.Car, p.PartNumber, p.PriceOut, p.Quantity),
		}
		if img := p.MainImage(); img != nil {
			result[i].MainImage = img.Filename
		}
	}

	return c.JSON(http.StatusOK, result)
}

func (h *PartHandler) reindex(c echo.Context, part *models.Part) {
	if h.Search == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Search.IndexPart(ctx, part); err != nil {
		logging.FromContext(c.Request().Context()).Warn("index part failed", "part_id", part.ID, "error", err)
	}
}
