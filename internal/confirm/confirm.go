package confirm

import (
	"strings"

	"github.com/pkg/errors"
)

// Токен-литерал, который оператор может набрать вместо серийного номера.
const Token = "RELEASE"

var (
	ErrCountNotVerified  = errors.New("physical box count must be verified before release")
	ErrRecordNotAccepted = errors.New("record-keeping responsibility must be accepted before release")
	ErrTextMismatch      = errors.New("confirmation text must match RELEASE or the inspection serial number")
)

// Confirmation — подтверждение оператора перед необратимой выдачей.
// Каждая попытка выдачи несёт своё подтверждение: повторное открытие
// формы начинает с пустого.
type Confirmation struct {
	CountVerified  bool
	RecordAccepted bool
	Text           string
}

// Validate проверяет все три условия независимо; порядок ошибок фиксирован,
// чтобы оператор закрывал их сверху вниз.
func (c Confirmation) Validate(serialNumber string) error {
	if !c.CountVerified {
		return ErrCountNotVerified
	}
	if !c.RecordAccepted {
		return ErrRecordNotAccepted
	}
	text := strings.TrimSpace(c.Text)
	if strings.EqualFold(text, Token) {
		return nil
	}
	if serialNumber != "" && strings.EqualFold(text, serialNumber) {
		return nil
	}
	return ErrTextMismatch
}
