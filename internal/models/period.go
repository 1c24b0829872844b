package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const periodLayout = "2006-01-02"

// Period is the logical month a snapshot belongs to, held as the first day of
// that month at UTC midnight. It is never the wall-clock capture time.
type Period struct {
	t time.Time
}

// PeriodOf truncates any instant to the first day of its calendar month.
// The month is taken in t's own location.
func PeriodOf(t time.Time) Period {
	return Period{t: time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)}
}

// ParsePeriod accepts "2006-01" or "2006-01-02"; the day is discarded.
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01", periodLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return PeriodOf(t), nil
		}
	}
	return Period{}, fmt.Errorf("invalid period %q: want YYYY-MM or YYYY-MM-DD", s)
}

func (p Period) Time() time.Time { return p.t }

func (p Period) IsZero() bool { return p.t.IsZero() }

func (p Period) Equal(o Period) bool { return p.t.Equal(o.t) }

func (p Period) String() string {
	if p.t.IsZero() {
		return ""
	}
	return p.t.Format(periodLayout)
}

func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Period) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*p = Period{}
		return nil
	}
	v, err := ParsePeriod(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}
