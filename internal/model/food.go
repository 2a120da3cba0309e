package model

import "time"

// FoodStatus is the listing state of a donation.
type FoodStatus string

const (
	FoodActive   FoodStatus = "active"
	FoodInactive FoodStatus = "inactive"
)

// Food represents a row of the `foods` table.  Image is raw bytes in the
// store and base64 on the wire.
type Food struct {
	ID            uint64     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	IsFree        bool       `json:"is_free"`
	PickupTime    string     `json:"pickup_time"`
	PickupAddress string     `json:"pickup_address"`
	Image         []byte     `json:"image"`
	UserID        uint64     `json:"user_id"`
	Status        FoodStatus `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
}

// FoodDetail is the writable part of a donation, shared by create and edit.
type FoodDetail struct {
	Title         string
	Description   string
	IsFree        bool
	PickupTime    string
	PickupAddress string
	Image         []byte
}
