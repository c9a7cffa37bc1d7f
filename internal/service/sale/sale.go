package sale

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/vkuznec/parts_shop/internal/es"
	"github.com/vkuznec/parts_shop/internal/logging"
	"github.com/vkuznec/parts_shop/internal/models"
	"github.com/vkuznec/parts_shop/internal/mykafka"
	"github.com/vkuznec/parts_shop/internal/storage"
)

const (
	DiscountPercent = "percent"
	DiscountFixed   = "fixed"
)

var (
	ErrValidation        = errors.New("validation")         // 400
	ErrNotFound          = errors.New("not found")          // 404
	ErrInsufficientStock = errors.New("insufficient stock") // 409
)

// StockError reports the part that could not cover the requested quantity.
type StockError struct {
	PartID    uint
	PartName  string
	Available int
	Requested int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock: %s (requested %d, available %d)", e.PartName, e.Requested, e.Available)
}

func (e *StockError) Is(target error) bool { return target == ErrInsufficientStock }

type SaleLine struct {
	PartID   uint `json:"part_id"`
	Quantity int  `json:"quantity"`
}

type CreateSaleInput struct {
	Items            []SaleLine `json:"items"`
	DiscountType     string     `json:"discount_type"`
	DiscountValue    int64      `json:"discount_value"`
	TransportCompany string     `json:"transport_company"`
	TrackingNumber   string     `json:"tracking_number"`
}

// Service commits sales against stock and sweeps depleted parts afterwards.
// Producer and Search are optional side channels, nil disables them.
type Service struct {
	DB       *gorm.DB
	Store    *storage.Storage
	Producer *mykafka.Producer
	Search   *es.Indexer
}

// CreateSale validates and commits a sale as one transaction: line items are
// checked and decremented in input order, the first failure aborts the whole
// sale. After the commit, parts whose stock reached zero are removed from the
// catalog best-effort.
func (s *Service) CreateSale(ctx context.Context, in CreateSaleInput) (*models.Sale, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: items required", ErrValidation)
	}
	for i := range in.Items {
		if in.Items[i].PartID == 0 {
			return nil, fmt.Errorf("%w: part_id required", ErrValidation)
		}
		if in.Items[i].Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be > 0", ErrValidation)
		}
	}

	var sale models.Sale
	var depleted []uint

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sale = models.Sale{
			DiscountType:     in.DiscountType,
			DiscountValue:    in.DiscountValue,
			TransportCompany: in.TransportCompany,
			TrackingNumber:   in.TrackingNumber,
		}
		if err := tx.Create(&sale).Error; err != nil {
			return err
		}

		var total int64
		for _, line := range in.Items {
			var part models.Part
			if err := tx.First(&part, line.PartID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: part %d", ErrNotFound, line.PartID)
				}
				return err
			}

			if line.Quantity > part.Quantity {
				return &StockError{
					PartID:    part.ID,
					PartName:  part.Name,
					Available: part.Quantity,
					Requested: line.Quantity,
				}
			}

			// Conditional decrement: loses gracefully when a concurrent sale
			// got the stock first, so quantity can never go negative.
			res := tx.Model(&models.Part{}).
				Where("id = ? AND quantity >= ?", part.ID, line.Quantity).
				Update("quantity", gorm.Expr("quantity - ?", line.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// lost the stock to a concurrent sale, re-read for the error
				_ = tx.First(&part, line.PartID).Error
				return &StockError{
					PartID:    part.ID,
					PartName:  part.Name,
					Available: part.Quantity,
					Requested: line.Quantity,
				}
			}

			lineTotal := part.PriceOut * int64(line.Quantity)
			total += lineTotal

			item := models.SaleItem{
				SaleID:     sale.ID,
				PartID:     part.ID,
				Quantity:   line.Quantity,
				UnitPrice:  part.PriceOut,
				TotalPrice: lineTotal,
				PartName:   part.Name,
				PartCar:    part.Car,
				PartNumber: part.PartNumber,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
			sale.Items = append(sale.Items, item)

			if err := tx.First(&part, line.PartID).Error; err != nil {
				return err
			}
			if part.Quantity == 0 {
				depleted = append(depleted, part.ID)
			}
		}

		discount := discountAmount(in.DiscountType, in.DiscountValue, total)
		sale.TotalAmount = total
		// No floor at zero: a discount above the total goes negative on
		// purpose, this matches the established accounting behavior.
		sale.FinalAmount = total - discount

		return tx.Model(&models.Sale{}).Where("id = ?", sale.ID).Updates(map[string]interface{}{
			"total_amount": sale.TotalAmount,
			"final_amount": sale.FinalAmount,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	// The sale is committed; sold-out parts leave the catalog best-effort.
	l := logging.FromContext(ctx)
	for _, partID := range depleted {
		if err := s.DeletePartCompletely(ctx, partID); err != nil {
			l.Warn("depleted part cleanup failed", "part_id", partID, "error", err)
			continue
		}
		s.publish(ctx, "part_events", fmt.Sprint(partID), map[string]interface{}{
			"type":    "part_depleted",
			"part_id": partID,
			"sale_id": sale.ID,
		})
	}

	return &sale, nil
}

// DeletePartCompletely removes the part's media files, its folder and its
// row. Sale items keep their snapshot and their dangling part_id. Calling it
// for a missing part is a no-op; storage failures are logged, never fatal.
func (s *Service) DeletePartCompletely(ctx context.Context, partID uint) error {
	l := logging.FromContext(ctx)

	var part models.Part
	err := s.DB.WithContext(ctx).
		Preload("Images").
		Preload("Videos").
		First(&part, partID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if s.Store != nil {
		for _, img := range part.Images {
			if err := s.Store.DeleteImage(part.ID, img.Filename); err != nil {
				l.Warn("delete image file failed", "part_id", part.ID, "filename", img.Filename, "error", err)
			}
		}
		for _, vid := range part.Videos {
			if err := s.Store.DeleteVideo(part.ID, vid.Filename); err != nil {
				l.Warn("delete video file failed", "part_id", part.ID, "filename", vid.Filename, "error", err)
			}
		}
		if err := s.Store.DeletePartFolder(part.ID); err != nil {
			l.Warn("delete part folder failed", "part_id", part.ID, "error", err)
		}
	}

	if err := s.DB.WithContext(ctx).Select("Images", "Videos").Delete(&part).Error; err != nil {
		return err
	}

	if s.Search != nil {
		if err := s.Search.DeletePart(ctx, part.ID); err != nil {
			l.Warn("delete part from search index failed", "part_id", part.ID, "error", err)
		}
	}

	return nil
}

func (s *Service) publish(ctx context.Context, topic, key string, event map[string]interface{}) {
	if s.Producer == nil {
		return
	}
	if err := s.Producer.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(ctx).Warn("kafka publish failed", "topic", topic, "error", err)
	}
}

// discountAmount follows the established rules: percent rounds up, fixed is
// taken verbatim, anything else means no discount.
func discountAmount(discountType string, discountValue, total int64) int64 {
	switch {
	case discountType == DiscountPercent && discountValue > 0:
		return (total*discountValue + 99) / 100
	case discountType == DiscountFixed && discountValue > 0:
		return discountValue
	default:
		return 0
	}
}
