package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"rankledger/internal/models"
	"rankledger/internal/util"

	"github.com/shopspring/decimal"
)

var (
	firstInt   = regexp.MustCompile(`\d+`)
	tieNotated = regexp.MustCompile(`^\s*=|\d\s*[-–]\s*\d|\d\s*\+`)
	noiseToken = regexp.MustCompile(`(?i)\blocation\b`)
)

// Normalizer turns raw records into entities for one run. The tie policy is fixed
// for its lifetime so every page of a run resolves ties the same way.
type Normalizer struct {
	fields FieldMap
	tie    TiePolicy
	period models.Period
}

func New(opts Options) *Normalizer {
	if len(opts.Fields.Rank) == 0 && len(opts.Fields.Name) == 0 {
		opts.Fields = DefaultFields()
	}
	if opts.Tie == "" {
		opts.Tie = TieLowest
	}
	return &Normalizer{fields: opts.Fields, tie: opts.Tie, period: opts.Period}
}

// Page normalizes a whole page in source order. A page without its expected wrapper
// yields one page defect and nothing else.
func (n *Normalizer) Page(p models.Page) ([]models.Entity, []models.Defect) {
	if p.ShapeErr != nil {
		return nil, []models.Defect{{Kind: models.DefectPage, Page: p.Index, Index: -1, Reason: p.ShapeErr.Error()}}
	}
	out := make([]models.Entity, 0, len(p.Records))
	var defects []models.Defect
	for i, raw := range p.Records {
		e, d := n.Record(raw)
		if d != nil {
			d.Page = p.Index
			d.Index = i
			defects = append(defects, *d)
			continue
		}
		out = append(out, e)
	}
	return out, defects
}

// Record maps one raw record to an entity, or to a defect describing why it was dropped.
func (n *Normalizer) Record(raw models.RawRecord) (models.Entity, *models.Defect) {
	if raw == nil {
		return models.Entity{}, &models.Defect{Kind: models.DefectRecord, Reason: "record is not an object"}
	}
	rankText, rankField := lookup(raw, n.fields.Rank)
	rank, d := n.parseRank(rankText)
	if d != nil {
		d.Field = rankField
		return models.Entity{}, d
	}

	name, nameField := lookup(raw, n.fields.Name)
	name = util.CanonicalName(name)
	if name == "" {
		return models.Entity{}, &models.Defect{Kind: models.DefectRecord, Field: nameField, Reason: "empty name"}
	}

	scoreText, _ := lookup(raw, n.fields.Score)
	e := models.Entity{
		Rank:   rank,
		Score:  ParseScore(scoreText),
		Name:   name,
		Period: n.period,
	}
	n.applyLocation(raw, &e)
	return e, nil
}

func (n *Normalizer) parseRank(text string) (int, *models.Defect) {
	m := firstInt.FindString(text)
	if m == "" {
		return 0, &models.Defect{Kind: models.DefectRecord, Value: text, Reason: "no integer in rank"}
	}
	if n.tie == TieReject && tieNotated.MatchString(text) {
		return 0, &models.Defect{Kind: models.DefectRecord, Value: text, Reason: "tied rank rejected"}
	}
	rank, err := strconv.ParseInt(m, 10, 64)
	if err != nil || rank > math.MaxInt32 {
		return 0, &models.Defect{Kind: models.DefectRecord, Value: text, Reason: "rank out of range"}
	}
	if rank <= 0 {
		return 0, &models.Defect{Kind: models.DefectRecord, Value: text, Reason: "rank is not a positive integer"}
	}
	return int(rank), nil
}

func (n *Normalizer) applyLocation(raw models.RawRecord, e *models.Entity) {
	country, _ := lookup(raw, n.fields.Country)
	city, _ := lookup(raw, n.fields.City)
	region, _ := lookup(raw, n.fields.Region)
	e.Country = util.CollapseSpace(country)
	e.City = util.CollapseSpace(city)
	e.Region = util.CollapseSpace(region)

	if e.Country != "" || e.City != "" {
		parts := make([]string, 0, 2)
		for _, p := range []string{e.City, e.Country} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		e.Location = strings.Join(parts, ", ")
		return
	}
	free, _ := lookup(raw, n.fields.Location)
	e.Location = CleanLocation(free)
}

// ParseScore keeps digits and decimal points. A trailing point is dropped; a value with
// more than one point left ("1.2.3") is ambiguous and, like anything that does not leave
// a number behind, is an absent score, never zero.
func ParseScore(text string) decimal.NullDecimal {
	var b strings.Builder
	for _, ch := range text {
		if (ch >= '0' && ch <= '9') || ch == '.' {
			b.WriteRune(ch)
		}
	}
	s := strings.TrimSuffix(b.String(), ".")
	if s == "" || s == "." || strings.Count(s, ".") > 1 {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// CleanLocation is the free-text fallback: whitespace collapsed and the stray
// "location" label removed.
func CleanLocation(s string) string {
	s = util.CollapseSpace(util.SanitizeText(s))
	s = noiseToken.ReplaceAllString(s, "")
	return util.CollapseSpace(s)
}

func lookup(raw models.RawRecord, keys []string) (string, string) {
	for _, k := range keys {
		if v, ok := raw.Lookup(k); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), k
		}
	}
	if len(keys) > 0 {
		return "", keys[0]
	}
	return "", ""
}
