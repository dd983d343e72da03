package confirm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfirmation_Validate(t *testing.T) {
	cases := []struct {
		name string
		c    Confirmation
		want error
	}{
		{"all unset", Confirmation{}, ErrCountNotVerified},
		{"count only", Confirmation{CountVerified: true}, ErrRecordNotAccepted},
		{"flags set, empty text", Confirmation{CountVerified: true, RecordAccepted: true}, ErrTextMismatch},
		{"flags set, wrong text", Confirmation{CountVerified: true, RecordAccepted: true, Text: "yes"}, ErrTextMismatch},
		{"token exact", Confirmation{CountVerified: true, RecordAccepted: true, Text: "RELEASE"}, nil},
		{"token lowercase", Confirmation{CountVerified: true, RecordAccepted: true, Text: "release"}, nil},
		{"token padded", Confirmation{CountVerified: true, RecordAccepted: true, Text: "  Release "}, nil},
		{"serial exact", Confirmation{CountVerified: true, RecordAccepted: true, Text: "NDA-2024-0815"}, nil},
		{"serial lowercase", Confirmation{CountVerified: true, RecordAccepted: true, Text: "nda-2024-0815"}, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.c.Validate("NDA-2024-0815")
			if tc.want == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tc.want)
			}
		})
	}
}

// Пустой серийник не должен превращать пустой текст в совпадение.
func TestConfirmation_Validate_EmptySerial(t *testing.T) {
	c := Confirmation{CountVerified: true, RecordAccepted: true, Text: ""}
	require.ErrorIs(t, c.Validate(""), ErrTextMismatch)

	c.Text = "RELEASE"
	require.NoError(t, c.Validate(""))
}
