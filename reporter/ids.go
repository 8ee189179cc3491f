package reporter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ReportIDPattern matches minted IDs. The -N suffix only appears on the second and later IDs within one second.
var ReportIDPattern = regexp.MustCompile(`^HAZ\d{8}-\d{6}(-\d+)?$`)

const reportIDLayout = "20060102-150405"

// FormatReportID derives the base report ID from its creation time.
func FormatReportID(t time.Time) string {
	return "HAZ" + t.Format(reportIDLayout)
}

// parseReportID splits a minted ID into its second and its sequence within that second (1 for a plain ID).
func parseReportID(id string, loc *time.Location) (time.Time, int, error) {
	if !ReportIDPattern.MatchString(id) {
		return time.Time{}, 0, fmt.Errorf("malformed report id %q", id)
	}
	rest := strings.TrimPrefix(id, "HAZ")
	seq := 1
	if len(rest) > len(reportIDLayout) {
		n, err := strconv.Atoi(rest[len(reportIDLayout)+1:])
		if err != nil {
			return time.Time{}, 0, fmt.Errorf("malformed report id %q: %w", id, err)
		}
		seq = n
		rest = rest[:len(reportIDLayout)]
	}
	t, err := time.ParseInLocation(reportIDLayout, rest, loc)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("malformed report id %q: %w", id, err)
	}
	return t, seq, nil
}

// IDMinter hands out report IDs. IDs never repeat within the process: several reports in
// the same second get suffixes, and a clock that steps backwards keeps minting from the
// latest second already used. exists lets it skip IDs issued by an earlier run.
type IDMinter struct {
	mu     sync.Mutex
	last   time.Time
	issued int
	exists func(id string) bool
}

func NewIDMinter(exists func(id string) bool) *IDMinter {
	return &IDMinter{exists: exists}
}

func (m *IDMinter) Mint(now time.Time) string {
	sec := now.Truncate(time.Second)

	m.mu.Lock()
	defer m.mu.Unlock()
	if sec.Before(m.last) {
		sec = m.last
	}
	if !sec.Equal(m.last) {
		m.last = sec
		m.issued = 0
	}
	base := FormatReportID(sec.In(now.Location()))
	for {
		m.issued++
		id := base
		if m.issued > 1 {
			id = fmt.Sprintf("%s-%d", base, m.issued)
		}
		if m.exists == nil || !m.exists(id) {
			return id
		}
	}
}

// Observe records an ID issued elsewhere, such as a row already in the log, so later
// IDs sort after it. The ID's date and time are read in loc.
func (m *IDMinter) Observe(id string, loc *time.Location) error {
	sec, seq, err := parseReportID(id, loc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case sec.After(m.last):
		m.last = sec
		m.issued = seq
	case sec.Equal(m.last) && seq > m.issued:
		m.issued = seq
	}
	return nil
}
