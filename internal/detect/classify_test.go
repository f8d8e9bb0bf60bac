package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   SignalSet
		want Verdict
	}{
		{
			name: "clickable with strong text",
			in:   SignalSet{IsClickable: true, HasStrongCloseText: true},
			want: Verdict{Valid: true, Priority: 4},
		},
		{
			name: "clickable without close signal",
			in:   SignalSet{IsClickable: true, IsCompact: true, IsCornerPositioned: true},
			want: Verdict{Valid: false, Priority: 3},
		},
		{
			name: "close token without any activation path",
			in:   SignalSet{HasCloseAttributeToken: true},
			want: Verdict{Valid: false, Priority: 2},
		},
		{
			name: "compact corner element with close token",
			in:   SignalSet{HasCloseAttributeToken: true, IsCompact: true, IsCornerPositioned: true},
			want: Verdict{Valid: true, Priority: 2 + 2 + 1 + 2},
		},
		{
			name: "compact ad element with pseudo glyph",
			in:   SignalSet{HasPseudoGlyph: true, IsAdContext: true, IsCompact: true},
			want: Verdict{Valid: true, Priority: 3 + 3 + 2},
		},
		{
			name: "clickable compact graphic in ad",
			in:   SignalSet{IsClickable: true, IsCompact: true, IsGraphicOnly: true, IsAdContext: true},
			want: Verdict{Valid: true, Priority: 3 + 2 + 2 + 2},
		},
		{
			name: "clickable compact corner graphic with ad token",
			in: SignalSet{IsClickable: true, IsCompact: true, IsCornerPositioned: true,
				IsGraphicOnly: true, HasAdAttributeToken: true},
			want: Verdict{Valid: true, Priority: 2 + 1 + 2 + 2},
		},
		{
			name: "graphic outside ads",
			in:   SignalSet{IsClickable: true, IsCompact: true, IsGraphicOnly: true},
			want: Verdict{Valid: false, Priority: 4},
		},
		{
			name: "weak text corroborated by compactness",
			in:   SignalSet{IsClickable: true, HasWeakCloseText: true, IsCompact: true},
			want: Verdict{Valid: true, Priority: 2 + 2},
		},
		{
			name: "weak text alone",
			in:   SignalSet{IsClickable: true, HasWeakCloseText: true},
			want: Verdict{Valid: false, Priority: 0},
		},
		{
			name: "symbol and pseudo glyph count once",
			in:   SignalSet{IsClickable: true, HasStandaloneCloseSymbol: true, HasPseudoGlyph: true},
			want: Verdict{Valid: true, Priority: 3},
		},
		{
			name: "everything",
			in: SignalSet{IsClickable: true, HasStrongCloseText: true, HasStandaloneCloseSymbol: true,
				HasCloseAttributeToken: true, IsAdContext: true, IsCompact: true, IsCornerPositioned: true,
				HasWeakCloseText: true},
			want: Verdict{Valid: true, Priority: 4 + 3 + 2 + 3 + 2 + 1 + 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.in))
		})
	}
}
