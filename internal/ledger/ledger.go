package ledger

import (
	"fmt"

	"github.com/FieldReport/ImpoundBox/internal/models"
	"github.com/pkg/errors"
)

// Чистая логика выдачи: ни одного обращения к БД, решение детерминировано
// по (current, requested). Кто и когда читает current — забота координатора.

var ErrInvalidQuantity = errors.New("release quantity must be a positive integer")

// OverReleaseError несёт обе величины, чтобы оператору можно было показать
// "запрошено N, доступно M".
type OverReleaseError struct {
	Requested int64
	Available int64
}

func (e *OverReleaseError) Error() string {
	return fmt.Sprintf("over-release: requested %d boxes, only %d available", e.Requested, e.Available)
}

type Result struct {
	Remaining int64
	Status    string
}

func ApplyRelease(current, requested int64) (Result, error) {
	if current < 0 {
		return Result{}, errors.Errorf("ledger corrupt: current quantity is negative (%d)", current)
	}
	if requested <= 0 {
		return Result{}, ErrInvalidQuantity
	}
	if requested > current {
		return Result{}, &OverReleaseError{Requested: requested, Available: current}
	}

	remaining := current - requested
	status := models.InspectionStatusPendingReview
	if remaining == 0 {
		status = models.InspectionStatusCompleted
	}
	return Result{Remaining: remaining, Status: status}, nil
}
