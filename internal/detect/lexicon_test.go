package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsStandaloneCloseSymbol(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"✕", true},
		{"×", true},
		{" ✖ ", true},
		{"[×]", true},
		{"(❌)", true},
		{"「×」", true},
		{"✕ next slide", false},
		{"××", false},
		{"x", false},
		{"Close ×", false},
		{"", false},
		{"   ", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, IsStandaloneCloseSymbol(tt.text))
		})
	}
}

func TestIsPseudoCloseGlyph(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{`"×"`, true},
		{`'✕'`, true},
		{`"x"`, true},
		{`"X"`, true},
		{`"\00d7"`, true},
		{`"\2715"`, true},
		{`"close"`, false},
		{`"x y"`, false},
		{"none", false},
		{"normal", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPseudoCloseGlyph(tt.content))
		})
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"close", "btn", "ad", "slot"}, Tokenize("closeBtn ad-slot"))
	assert.Equal(t, []string{"modal", "close", "x1"}, Tokenize("  modal__close--X1 "))
	assert.Empty(t, Tokenize("---"))
}

func TestTokenPredicates(t *testing.T) {
	assert.True(t, isCloseToken("close"))
	assert.True(t, isCloseToken("closer"), "close prefix")
	assert.True(t, isCloseToken("batsu"))
	assert.False(t, isCloseToken("enclose"))

	assert.True(t, isAdToken("ad"))
	assert.True(t, isAdToken("adwrapper"))
	assert.False(t, isAdToken("add"))
}

func TestIsAdHost(t *testing.T) {
	assert.True(t, IsAdHost("securepubads.g.doubleclick.net"))
	assert.True(t, IsAdHost("tpc.googlesyndication.com"))
	assert.False(t, IsAdHost("news.example.com"))
	assert.False(t, IsAdHost(""))
}

func TestCloseTextPatterns(t *testing.T) {
	strong := []string{"Close", "Skip Ad", "schließen", "閉じる", "Закрыть", "Zavřít", "إغلاق"}
	for _, s := range strong {
		assert.True(t, matchesAny(strongCloseText, s), s)
	}
	assert.False(t, matchesAny(strongCloseText, "enclosed"), "word boundary")
	assert.False(t, matchesAny(strongCloseText, "Read more"))

	assert.True(t, matchesAny(weakCloseText, "閉"))
	assert.False(t, matchesAny(weakCloseText, "Close"))
}
