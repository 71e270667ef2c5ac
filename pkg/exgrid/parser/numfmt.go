package parser

import "github.com/xuri/nfp"

// Built-in number format IDs that do not render numbers.
const (
	numFmtGeneral = 0
	numFmtText    = 49
)

// IsNumericFormat reports whether a cell number format renders values as
// numbers, percentages, dates or times. General and text formats do not.
func IsNumericFormat(numFmtID int, custom string) bool {
	if custom == "" {
		return numFmtID != numFmtGeneral && numFmtID != numFmtText
	}

	p := nfp.NumberFormatParser()
	for _, section := range p.Parse(custom) {
		for _, tok := range section.Items {
			switch tok.TType {
			case nfp.TokenTypeZeroPlaceHolder,
				nfp.TokenTypeHashPlaceHolder,
				nfp.TokenTypeDigitalPlaceHolder,
				nfp.TokenTypeDecimalPoint,
				nfp.TokenTypePercent,
				nfp.TokenTypeExponential,
				nfp.TokenTypeFraction,
				nfp.TokenTypeDateTimes,
				nfp.TokenTypeElapsedDateTimes:
				return true
			}
		}
	}
	return false
}
