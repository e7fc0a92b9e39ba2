package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadTransition is returned when an order status would move backwards or skip a step.
var ErrBadTransition = errors.New("invalid order status transition")

type OrderID int64

// Status is the order lifecycle. The normal sequence is Accepted ->
// WaitingForCooking -> Cooking -> CookingCompleted -> WaitingForDelivery ->
// Delivering -> Paying -> DeliveringCompleted -> Completed.
type Status int

const (
	StatusAccepted Status = iota
	StatusWaitingForCooking
	StatusCooking
	StatusCookingCompleted
	StatusWaitingForDelivery
	StatusDelivering
	StatusPaying
	StatusDeliveringCompleted
	// StatusPaymentCompleted is accepted by the scheduler as terminal; nothing in
	// the simulation produces it today.
	StatusPaymentCompleted
	StatusCompleted
)

var statusNames = [...]string{
	"accepted",
	"waiting_for_cooking",
	"cooking",
	"cooking_completed",
	"waiting_for_delivery",
	"delivering",
	"paying",
	"delivering_completed",
	"payment_completed",
	"completed",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func ParseStatus(v string) (Status, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	for i, n := range statusNames {
		if n == v {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown order status %q", v)
}

// next lists the statuses each status may move to.
var next = map[Status][]Status{
	StatusAccepted:            {StatusWaitingForCooking},
	StatusWaitingForCooking:   {StatusCooking},
	StatusCooking:             {StatusCookingCompleted},
	StatusCookingCompleted:    {StatusWaitingForDelivery},
	StatusWaitingForDelivery:  {StatusDelivering},
	StatusDelivering:          {StatusPaying, StatusDeliveringCompleted},
	StatusPaying:              {StatusDeliveringCompleted, StatusPaymentCompleted},
	StatusDeliveringCompleted: {StatusCompleted},
	StatusPaymentCompleted:    {StatusCompleted},
}

// CanAdvance reports whether an order in s may move to to.
func (s Status) CanAdvance(to Status) bool {
	for _, n := range next[s] {
		if n == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the scheduler should archive an order in s.
func (s Status) Terminal() bool {
	return s == StatusDeliveringCompleted || s == StatusPaymentCompleted
}
