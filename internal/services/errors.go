package services

import (
	"errors"
	"fmt"

	"lumen-backend/internal/pricing"
	"lumen-backend/internal/repositories"
	"lumen-backend/internal/scheduling"
	"lumen-backend/internal/storage"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrSlotUnavailable   = errors.New("time slot unavailable")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrUnavailable       = errors.New("service unavailable")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// translate maps repository and helper package errors onto the service
// sentinels, keeping the original message.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, repositories.ErrInsufficientFunds):
		return fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
	case errors.Is(err, repositories.ErrSlotTaken):
		return fmt.Errorf("%w: %v", ErrSlotUnavailable, err)
	case errors.Is(err, repositories.ErrStaleState):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, repositories.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, repositories.ErrCouponExhausted):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, pricing.ErrNegativeAmount),
		errors.Is(err, pricing.ErrBadQuantity),
		errors.Is(err, pricing.ErrBadRate),
		errors.Is(err, storage.ErrUnsupportedContent):
		return fmt.Errorf("%w: %v", ErrValidation, err)
	case errors.Is(err, storage.ErrDisabled):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	case errors.Is(err, scheduling.ErrInvalidClock),
		errors.Is(err, scheduling.ErrEmptyRule),
		errors.Is(err, scheduling.ErrBadWeekday):
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return err
}
