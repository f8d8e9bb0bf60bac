package detect

import (
	"regexp"
	"strings"
	"unicode"
)

const closeGlyphs = "✕×✖╳✗✘❌"

var (
	closeSymbolRe = regexp.MustCompile("[" + closeGlyphs + "]")
	pseudoGlyphRe = regexp.MustCompile(`^["']?\s*(?:[` + closeGlyphs + `xX]|\\00d7|\\2715|\\2716)\s*["']?$`)
	wrapperOnlyRe = regexp.MustCompile("^[\\s\"'`()\\[\\]{}<>「」『』【】.,:;|/\\\\+-]*$")
	camelBoundary = regexp.MustCompile(`([a-z])([A-Z])`)
	nonAlnumSplit = regexp.MustCompile(`[^a-z0-9]+`)
)

// strongCloseText matches unambiguous close/dismiss/cancel wording.
var strongCloseText = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(close|close ad|dismiss|dismiss ad|cancel|skip ad|luk|lukke|annuller|schließen|abbrechen|cerrar|cancelar|sulje|peruuta|fermer|annuler|tutup|batal|chiudi|annulla|lukk|avbryt|sluiten|annuleren|fechar|stäng|kapat|iptal)\b`),
	regexp.MustCompile(`閉じる|とじる|キャンセル|关闭|取消|關閉|닫기|취소|إغلاق|إلغاء|סגור|ביטול|बंद करें|रद्द करें|ยกเลิก`),
	regexp.MustCompile(`(?i)закрыть|отмена|закрити|скасувати|κλείσιμο|κλείσε|ακύρωση`),
	regexp.MustCompile(`(?i)zavřít|zrušit|tanca|tancar|cancel·la|bezár|mégse|zatvori|odustani|zamknij|anuluj|închide|anulează|zavrieť|zrušiť|đóng|hủy`),
}

// weakCloseText matches single ideograms that only mean "close" in context.
var weakCloseText = []*regexp.Regexp{
	regexp.MustCompile(`閉|关|關|닫다|غلق|बंद|रद्द|ปิด`),
}

// closeKeywords are attribute tokens naming a close control.
var closeKeywords = map[string]bool{
	"close": true, "closead": true, "closebtn": true, "closebutton": true,
	"closeicon": true, "closemark": true, "btnclose": true, "iconclose": true,
	"dismiss": true, "cancel": true, "modalclose": true, "popupclose": true,
	"adclose": true, "xclose": true, "btnx": true, "batsu": true,
}

// adKeywords are attribute tokens naming an ad or overlay container.
var adKeywords = map[string]bool{
	"ad": true, "ads": true, "adslot": true, "advert": true, "advertisement": true,
	"banner": true, "sponsor": true, "sponsored": true, "interstitial": true,
	"promo": true, "popup": true, "overlay": true, "modal": true,
	"adx": true, "adunit": true, "adframe": true, "adbox": true, "adwrap": true,
	"adwrapper": true,
}

// AdHostKeywords are substrings of ad-serving hostnames.
var AdHostKeywords = []string{
	"doubleclick", "googlesyndication", "googletagservices", "adservice",
	"amazon-adsystem", "adnxs", "adsrvr", "taboola", "outbrain", "criteo",
	"pubmatic", "rubiconproject",
}

// Tokenize splits an attribute value into lower-case ASCII tokens, breaking
// on camelCase boundaries and on every non-alphanumeric run.
func Tokenize(value string) []string {
	s := strings.ToLower(camelBoundary.ReplaceAllString(value, "$1 $2"))
	var out []string
	for _, tok := range nonAlnumSplit.Split(s, -1) {
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

func isCloseToken(tok string) bool {
	return closeKeywords[tok] || strings.HasPrefix(tok, "close")
}

func isAdToken(tok string) bool { return adKeywords[tok] }

// IsAdHost reports whether a hostname looks like an ad server.
func IsAdHost(host string) bool {
	if host == "" {
		return false
	}
	for _, kw := range AdHostKeywords {
		if strings.Contains(host, kw) {
			return true
		}
	}
	return false
}

// IsStandaloneCloseSymbol reports whether text holds exactly one close glyph
// and nothing else but whitespace, punctuation and bracket wrappers.
func IsStandaloneCloseSymbol(text string) bool {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	if compact == "" {
		return false
	}
	if len(closeSymbolRe.FindAllStringIndex(compact, 2)) != 1 {
		return false
	}
	return wrapperOnlyRe.MatchString(closeSymbolRe.ReplaceAllString(compact, ""))
}

// IsPseudoCloseGlyph reports whether a ::before/::after content value
// renders a close glyph.
func IsPseudoCloseGlyph(content string) bool {
	switch content {
	case "", "none", "normal":
		return false
	}
	return pseudoGlyphRe.MatchString(content)
}

func matchesAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
