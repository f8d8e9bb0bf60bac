package detect

// Priority weights. The score only ranks candidates within one scan.
const (
	weightStrongText       = 4
	weightSymbolOrGlyph    = 3
	weightCloseToken       = 2
	weightAdContext        = 3
	weightCompact          = 2
	weightCorner           = 1
	weightCornerProxy      = 2
	weightWeakCorroborated = 2
	weightGraphicOnly      = 2
	weightGraphicCorner    = 2
	weightGraphicAd        = 2
)

// Verdict is the classification of one candidate.
type Verdict struct {
	Valid    bool `yaml:"valid"    json:"valid"`
	Priority int  `yaml:"priority" json:"priority"`
}

// Classify derives a verdict from a signal set.
//
// A candidate is valid when it has a way to be activated and a reason to be
// read as a close control. Activation is clickability or one of four proxy
// paths for compact elements whose click target is an ancestor or that are
// pure graphics inside ads. The reason is a direct close signal, weak close
// text corroborated by context, or one of the graphic proxies.
func Classify(s SignalSet) Verdict {
	glyph := s.HasStandaloneCloseSymbol || s.HasPseudoGlyph
	direct := s.HasStrongCloseText || glyph || s.HasCloseAttributeToken

	weakCorroborated := s.HasWeakCloseText &&
		(s.IsAdContext || s.IsCompact || s.IsCornerPositioned || s.HasAdAttributeToken)

	pseudoAdProxy := !s.IsClickable && s.IsAdContext && s.IsCompact &&
		(s.HasCloseAttributeToken || s.HasPseudoGlyph)

	cornerProxy := !s.IsClickable && s.IsCompact && s.IsCornerPositioned &&
		(s.HasCloseAttributeToken || s.HasPseudoGlyph || s.HasStrongCloseText || s.HasStandaloneCloseSymbol)

	graphicCornerProxy := s.IsClickable && s.IsCompact && s.IsCornerPositioned && s.IsGraphicOnly &&
		(s.IsAdContext || s.HasAdAttributeToken)

	graphicAdProxy := s.IsClickable && s.IsCompact && s.IsGraphicOnly && s.IsAdContext

	activatable := s.IsClickable || pseudoAdProxy || cornerProxy || graphicCornerProxy || graphicAdProxy
	closeLike := direct || weakCorroborated || graphicCornerProxy || graphicAdProxy

	p := 0
	add := func(cond bool, w int) {
		if cond {
			p += w
		}
	}
	add(s.HasStrongCloseText, weightStrongText)
	add(glyph, weightSymbolOrGlyph)
	add(s.HasCloseAttributeToken, weightCloseToken)
	add(s.IsAdContext, weightAdContext)
	add(s.IsCompact, weightCompact)
	add(s.IsCornerPositioned, weightCorner)
	add(cornerProxy, weightCornerProxy)
	add(weakCorroborated, weightWeakCorroborated)
	add(s.IsGraphicOnly, weightGraphicOnly)
	add(graphicCornerProxy, weightGraphicCorner)
	add(graphicAdProxy, weightGraphicAd)

	return Verdict{Valid: activatable && closeLike, Priority: p}
}
