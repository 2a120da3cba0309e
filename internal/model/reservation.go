package model

import "time"

// ReservationStatus moves one way: active -> cancelled.
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationCancelled ReservationStatus = "cancelled"
)

// ReservedAtLayout is the wire format of reservation timestamps.
const ReservedAtLayout = "2006-01-02 15:04:05"

// Reservation records a user's claim on one food item.
type Reservation struct {
	ID         uint64            // reservations.id
	UserID     uint64            // reservations.user_id
	FoodID     uint64            // reservations.food_id
	Status     ReservationStatus // reservations.status
	ReservedAt time.Time         // reservations.reserved_at
}

// ReservationDetails is the response body of a newly created reservation.
type ReservationDetails struct {
	ID         uint64            `json:"id"`
	UserID     uint64            `json:"user_id"`
	FoodID     uint64            `json:"food_id"`
	ReservedAt string            `json:"reserved_at"`
	Status     ReservationStatus `json:"status"`
}

// Details renders r for API responses.
func (r *Reservation) Details() ReservationDetails {
	return ReservationDetails{
		ID:         r.ID,
		UserID:     r.UserID,
		FoodID:     r.FoodID,
		ReservedAt: r.ReservedAt.UTC().Format(ReservedAtLayout),
		Status:     r.Status,
	}
}

// ReservationSummary is one entry of a user's reservation history joined
// with the reserved food and the reserving user's first name.
type ReservationSummary struct {
	ID          uint64            `json:"id"`
	FoodID      uint64            `json:"food_id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	FirstName   *string           `json:"first_name"`
	Image       []byte            `json:"image"`
	Status      ReservationStatus `json:"status"`
	ReservedAt  string            `json:"reserved_at"`
}

// ActiveReservation extends the summary with pickup information.
type ActiveReservation struct {
	ID            uint64  `json:"id"`
	FoodID        uint64  `json:"food_id"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	FirstName     *string `json:"first_name"`
	Image         []byte  `json:"image"`
	PickupTime    string  `json:"pickup_time"`
	PickupAddress string  `json:"pickup_address"`
	ReservedAt    string  `json:"reserved_at"`
}
