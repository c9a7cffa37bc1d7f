package models

import (
	"time"
)

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"unique;not null"          json:"username"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	Role         string `gorm:"not null"                 json:"role"`
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"          json:"id"`
	Token     string `gorm:"unique;not null"     json:"token"`
	UserID    uint   `gorm:"index;not null"      json:"user_id"`
	ExpiresAt int64  `gorm:"not null"            json:"expires_at"`
	Revoked   bool   `gorm:"default:false"       json:"revoked"`
}

type Part struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"    json:"id"`
	Name        string `gorm:"not null"                    json:"name"`
	Car         string `json:"car"`
	PartNumber  string `gorm:"index"                       json:"part_number"`
	Description string `json:"description"`
	PriceIn     int64  `json:"price_in"`
	PriceOut    int64  `json:"price_out"`
	Quantity    int    `gorm:"default:1;check:quantity>=0" json:"quantity"`

	Images []PartImage `gorm:"constraint:OnDelete:CASCADE" json:"images,omitempty"`
	Videos []PartVideo `gorm:"constraint:OnDelete:CASCADE" json:"videos,omitempty"`
}

// MainImage returns the image flagged as main, nil if the part has none.
func (p *Part) MainImage() *PartImage {
	for i := range p.Images {
		if p.Images[i].IsMain {
			return &p.Images[i]
		}
	}
	return nil
}

type PartImage struct {
	ID        uint      `gorm:"primaryKey"     json:"id"`
	PartID    uint      `gorm:"index;not null" json:"part_id"`
	Filename  string    `gorm:"not null"       json:"filename"`
	IsMain    bool      `gorm:"default:false"  json:"is_main"`
	CreatedAt time.Time `json:"created_at"`
}

type PartVideo struct {
	ID               uint      `gorm:"primaryKey"     json:"id"`
	PartID           uint      `gorm:"index;not null" json:"part_id"`
	Filename         string    `gorm:"not null"       json:"filename"`
	OriginalFilename string    `gorm:"not null"       json:"original_filename"`
	CreatedAt        time.Time `json:"created_at"`
}

type Sale struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	DiscountType     string    `json:"discount_type"`
	DiscountValue    int64     `json:"discount_value"`
	TotalAmount      int64     `json:"total_amount"`
	FinalAmount      int64     `json:"final_amount"`
	TransportCompany string    `json:"transport_company"`
	TrackingNumber   string    `json:"tracking_number"`

	Items []SaleItem `gorm:"constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// SaleItem snapshots the part at the moment of sale. PartID is kept without a
// foreign key constraint: once a part sells out its row is removed and the
// reference dangles, the snapshot columns stay authoritative for history.
type SaleItem struct {
	ID         uint   `gorm:"primaryKey"                 json:"id"`
	SaleID     uint   `gorm:"index;not null"             json:"sale_id"`
	PartID     uint   `gorm:"not null"                   json:"part_id"`
	Quantity   int    `gorm:"default:1;check:quantity>0" json:"quantity"`
	UnitPrice  int64  `json:"unit_price"`
	TotalPrice int64  `json:"total_price"`
	PartName   string `json:"part_name"`
	PartCar    string `json:"part_car"`
	PartNumber string `json:"part_number"`
}
