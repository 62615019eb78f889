package address

import (
	"fmt"
	"time"
)

// Date header layouts. Permutations of RFC 5322 date-time: optional
// day-of-week, one or two digit day, optional seconds, numeric or named
// zone. Obsolete two digit years are accepted and mapped by time.Parse.
var dateLayouts []string

func init() {
	for _, dow := range []string{"Mon, ", ""} {
		for _, day := range []string{"2", "02"} {
			for _, year := range []string{"2006", "06"} {
				for _, sec := range []string{":05", ""} {
					for _, zone := range []string{" -0700", " MST", ""} {
						layout := dow + day + " Jan " + year + " 15:04" + sec + zone
						dateLayouts = append(dateLayouts, layout)
					}
				}
			}
		}
	}
}

// ParseDate parses an RFC 5322 Date header value.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("address: malformed date %q", s)
}

// FormatDate renders t as an RFC 5322 Date header value.
func FormatDate(t time.Time) string {
	return t.Format("Mon, 02 Jan 2006 15:04:05 -0700")
}
