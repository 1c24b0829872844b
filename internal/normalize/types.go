package normalize

import "rankledger/internal/models"

type TiePolicy string

const (
	// TieLowest resolves "101-110" or "=5" to the lowest bound.
	TieLowest TiePolicy = "lowest"
	// TieReject drops tie-notated ranks as record defects.
	TieReject TiePolicy = "reject"
)

func ParseTiePolicy(s string) (TiePolicy, bool) {
	switch TiePolicy(s) {
	case TieLowest, "":
		return TieLowest, true
	case TieReject:
		return TieReject, true
	default:
		return "", false
	}
}

// FieldMap lists, per canonical attribute, the raw field names to try in order.
type FieldMap struct {
	Rank     []string
	Score    []string
	Name     []string
	Location []string
	Country  []string
	City     []string
	Region   []string
}

// DefaultFields matches the ranking endpoint payload and the HTML card extractor.
func DefaultFields() FieldMap {
	return FieldMap{
		Rank:     []string{"rank_display", "rank"},
		Score:    []string{"overall_score", "score"},
		Name:     []string{"title", "university_name", "university"},
		Location: []string{"location"},
		Country:  []string{"country"},
		City:     []string{"city"},
		Region:   []string{"region"},
	}
}

type Options struct {
	Fields FieldMap
	Tie    TiePolicy
	Period models.Period
}
