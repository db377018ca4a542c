package services

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// calendar turns wall-clock time into calendar dates of the configured time zone. Dates are
// represented as midnight UTC, the way postgres date columns are scanned.
type calendar struct {
	loc *time.Location
	now func() time.Time
}

func newCalendar(loc *time.Location) calendar {
	if loc == nil {
		loc = time.UTC
	}
	return calendar{loc: loc, now: time.Now}
}

func (c calendar) today() time.Time {
	y, m, d := c.now().In(c.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// parseDate reads a YYYY-MM-DD value; empty means today
func (c calendar) parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return c.today(), nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: tarih YYYY-AA-GG biçiminde olmalıdır", ErrValidation)
	}
	return t, nil
}
