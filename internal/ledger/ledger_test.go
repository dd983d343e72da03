package ledger

import (
	"testing"

	"github.com/FieldReport/ImpoundBox/internal/models"
	"github.com/stretchr/testify/require"
)

func TestApplyRelease_OK(t *testing.T) {
	res, err := ApplyRelease(20, 5)
	require.NoError(t, err)
	require.Equal(t, int64(15), res.Remaining)
	require.Equal(t, models.InspectionStatusPendingReview, res.Status)

	res, err = ApplyRelease(15, 15)
	require.NoError(t, err)
	require.Equal(t, int64(0), res.Remaining)
	require.Equal(t, models.InspectionStatusCompleted, res.Status)
}

func TestApplyRelease_InvalidQuantity(t *testing.T) {
	for _, q := range []int64{0, -1, -100} {
		_, err := ApplyRelease(10, q)
		require.ErrorIs(t, err, ErrInvalidQuantity)
	}
}

func TestApplyRelease_OverRelease(t *testing.T) {
	_, err := ApplyRelease(3, 4)
	require.Error(t, err)

	var over *OverReleaseError
	require.ErrorAs(t, err, &over)
	require.Equal(t, int64(4), over.Requested)
	require.Equal(t, int64(3), over.Available)
}

func TestApplyRelease_OverRelease_ZeroCurrent(t *testing.T) {
	_, err := ApplyRelease(0, 1)
	var over *OverReleaseError
	require.ErrorAs(t, err, &over)
	require.Equal(t, int64(0), over.Available)
}

// Одинаковые невалидные входы дают одинаковый отказ при повторных вызовах.
func TestApplyRelease_RejectionIsIdempotent(t *testing.T) {
	_, err1 := ApplyRelease(3, 4)
	_, err2 := ApplyRelease(3, 4)
	require.Equal(t, err1.Error(), err2.Error())

	_, err1 = ApplyRelease(3, 0)
	_, err2 = ApplyRelease(3, 0)
	require.ErrorIs(t, err1, ErrInvalidQuantity)
	require.ErrorIs(t, err2, ErrInvalidQuantity)
}

func TestApplyRelease_NegativeCurrent(t *testing.T) {
	_, err := ApplyRelease(-1, 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ledger corrupt")
}

func TestApplyRelease_ExactSubtraction(t *testing.T) {
	for current := int64(0); current <= 10; current++ {
		for requested := int64(1); requested <= current; requested++ {
			res, err := ApplyRelease(current, requested)
			require.NoError(t, err)
			require.Equal(t, current-requested, res.Remaining)
			if res.Remaining == 0 {
				require.Equal(t, models.InspectionStatusCompleted, res.Status)
			} else {
				require.Equal(t, models.InspectionStatusPendingReview, res.Status)
			}
		}
	}
}
