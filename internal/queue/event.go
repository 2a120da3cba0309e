// Package queue defines the reservation events exchanged over the message
// broker and the consumer that records them.
package queue

import (
	"time"

	"github.com/avanzo/foodshare/internal/model"
)

// ReservationQueue is the durable queue carrying reservation events.
const ReservationQueue = "reservation.events"

const (
	EventReservationCreated   = "reservation.created"
	EventReservationCancelled = "reservation.cancelled"
)

// ReservationEvent is published after a reservation transaction commits.
// It carries enough for downstream consumers to log or notify without
// querying the primary database.
type ReservationEvent struct {
	Type          string `json:"type"`
	ReservationID uint64 `json:"reservation_id,omitempty"`
	UserID        uint64 `json:"user_id"`
	FoodID        uint64 `json:"food_id"`
	OccurredAt    string `json:"occurred_at"`
}

// Created builds the event for a freshly committed reservation.
func Created(d model.ReservationDetails) ReservationEvent {
	return ReservationEvent{
		Type:          EventReservationCreated,
		ReservationID: d.ID,
		UserID:        d.UserID,
		FoodID:        d.FoodID,
		OccurredAt:    d.ReservedAt,
	}
}

// Cancelled builds the event for a cancellation.
func Cancelled(userID, foodID uint64, at time.Time) ReservationEvent {
	return ReservationEvent{
		Type:       EventReservationCancelled,
		UserID:     userID,
		FoodID:     foodID,
		OccurredAt: at.UTC().Format(model.ReservedAtLayout),
	}
}
