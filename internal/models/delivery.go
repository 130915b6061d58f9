package models

import (
	"time"

	"lpg-backend/internal/apperr"
)

// NormalizeDelivery defaults an empty type to ASAP, requires a future date
// for Scheduled deliveries and drops any date sent with ASAP.
func NormalizeDelivery(t DeliveryType, date *time.Time, now time.Time) (DeliveryType, *time.Time, error) {
	if t == "" {
		t = DeliveryASAP
	}
	if !t.Valid() {
		return "", nil, apperr.Validation("deliveryType must be ASAP or Scheduled")
	}
	if t == DeliveryASAP {
		return t, nil, nil
	}
	if date == nil || date.IsZero() {
		return "", nil, apperr.Validation("scheduledDate is required for Scheduled delivery")
	}
	if !date.After(now) {
		return "", nil, apperr.Validation("scheduledDate must be in the future")
	}
	d := date.UTC()
	return t, &d, nil
}
