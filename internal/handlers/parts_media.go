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
	"github.com/vkuznec/parts_shop/internal/storage"
)

// UploadVideos attaches video files to an existing part. The original file
// name is kept for display, the stored name is randomized.
func (h *PartHandler) UploadVideos(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "parts.upload_videos")

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

	files := formFiles(c, "videos")
	if len(files) == 0 {
		return errorResponse(c, http.StatusBadRequest, errors.New("videos required"))
	}
	if len(files) > storage.MaxVideos {
		return errorResponse(c, http.StatusBadRequest, fmt.Errorf("слишком много файлов, максимум: %d", storage.MaxVideos))
	}

	var saved []models.PartVideo
	err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, fh := range files {
			if fh.Filename == "" || !storage.AllowedVideo(fh.Filename) {
				continue
			}
			if fh.Size > storage.MaxVideoSize {
				continue
			}

			src, err := fh.Open()
			if err != nil {
				return err
			}
			filename := storage.UniqueFilename(fh.Filename)
			err = h.Store.SaveVideo(part.ID, filename, src)
			src.Close()
			if err != nil {
				return err
			}

			video := models.PartVideo{
				PartID:           part.ID,
				Filename:         filename,
				OriginalFilename: fh.Filename,
			}
			if err := tx.Create(&video).Error; err != nil {
				return err
			}
			saved = append(saved, video)
		}
		return nil
	})
	if err != nil {
		l.Warn("upload_videos_error", "part_id", part.ID, "error", err)
		return errorResponse(c, http.StatusBadRequest, err)
	}

	l.Info("upload_videos_success", "part_id", part.ID, "count", len(saved))
	return c.JSON(http.StatusCreated, saved)
}

func (h *PartHandler) DeleteVideo(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "parts.delete_video")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	var video models.PartVideo
	if err := h.DB.WithContext(ctx).First(&video, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorResponse(c, http.StatusNotFound, fmt.Errorf("видео с ID %d не найдено", id))
		}
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	if err := h.Store.DeleteVideo(video.PartID, video.Filename); err != nil {
		l.Warn("delete video file failed", "filename", video.Filename, "error", err)
	}

	if err := h.DB.WithContext(ctx).Delete(&video).Error; err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"status": "deleted"})
}
