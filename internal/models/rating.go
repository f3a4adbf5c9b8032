package models

import (
	"encoding/json"
	"strings"
)

// Rating is a customer credit rating on the 10-level scale, optionally
// carrying a notch modifier ("+" or "-").
type Rating struct {
	Grade string
	Notch string
}

// RatingScale lists the grades from best to worst
var RatingScale = []string{"AAA", "AA", "A", "BBB", "BB", "B", "CCC", "CC", "C", "D"}

var ratingIndex = func() map[string]int {
	m := make(map[string]int, len(RatingScale))
	for i, g := range RatingScale {
		m[g] = i
	}
	return m
}()

// Unrated is the zero Rating
var Unrated = Rating{}

// ParseRating parses values such as "BBB", "BB+" or "A-". Anything not on the
// scale is unrated.
func ParseRating(s string) Rating {
	s = strings.ToUpper(strings.TrimSpace(s))
	notch := ""
	if strings.HasSuffix(s, "+") || strings.HasSuffix(s, "-") {
		notch = s[len(s)-1:]
		s = s[:len(s)-1]
	}
	if _, ok := ratingIndex[s]; !ok {
		return Unrated
	}
	return Rating{Grade: s, Notch: notch}
}

// String returns the rating with its notch, or "unrated"
func (r Rating) String() string {
	if r.Grade == "" {
		return "unrated"
	}
	return r.Grade + r.Notch
}

// Index is the position on the scale, 0 = AAA. Unrated returns -1.
func (r Rating) Index() int {
	if i, ok := ratingIndex[r.Grade]; ok {
		return i
	}
	return -1
}

// IsRated reports whether the rating is on the scale
func (r Rating) IsRated() bool {
	return r.Index() >= 0
}

// IsWeak reports CCC, CC and C
func (r Rating) IsWeak() bool {
	switch r.Grade {
	case "CCC", "CC", "C":
		return true
	}
	return false
}

// IsDefault reports the D grade
func (r Rating) IsDefault() bool {
	return r.Grade == "D"
}

// Notches returns how many grades newer is below older. Upgrades are
// negative. Unrated on either side yields 0.
func Notches(older, newer Rating) int {
	if !older.IsRated() || !newer.IsRated() {
		return 0
	}
	return newer.Index() - older.Index()
}

// MarshalJSON encodes the rating as its string form
func (r Rating) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a rating string
func (r *Rating) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*r = ParseRating(s)
	return nil
}

// RatingKeyLess orders rating strings along the scale, unrated last
func RatingKeyLess(a, b string) bool {
	ia, ib := ParseRating(a).Index(), ParseRating(b).Index()
	if ia < 0 {
		ia = len(RatingScale)
	}
	if ib < 0 {
		ib = len(RatingScale)
	}
	if ia != ib {
		return ia < ib
	}
	return a < b
}
