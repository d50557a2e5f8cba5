package pdfextract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectFundingAmount(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   float64
		wantOK bool
	}{
		{
			name:   "suffix with cents",
			text:   "Die Zuwendung beträgt 123.456,78 EUR.",
			want:   123456.78,
			wantOK: true,
		},
		{
			name:   "euro sign prefix",
			text:   "Bewilligter Betrag: € 50.000",
			want:   50000,
			wantOK: true,
		},
		{
			name:   "keyword beats larger amount",
			text:   "Gesamtkosten 400.000 EUR. Es wird eine Zuwendung von 200.000 EUR bewilligt.",
			want:   200000,
			wantOK: true,
		},
		{
			name:   "largest when no keyword",
			text:   "Posten A 1.000 EUR, Posten B 25.000 EUR",
			want:   25000,
			wantOK: true,
		},
		{
			name:   "no amount",
			text:   "Ihr Antrag wurde geprüft.",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DetectFundingAmount(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want, got, 0.001)
			}
		})
	}
}

func TestExtractText_Empty(t *testing.T) {
	out, err := ExtractText(strings.NewReader(""))
	assert.NoError(t, err)
	assert.Equal(t, "", out)
}
