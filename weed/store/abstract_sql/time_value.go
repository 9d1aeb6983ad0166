package abstract_sql

import (
	"fmt"
	"time"
)

// dbTime normalizes timestamps before they are written: UTC, whole seconds.
// Every dialect then stores and compares them the same way.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// timeValue scans DATETIME columns whether the driver hands out time.Time or text.
type timeValue struct {
	Time  time.Time
	Valid bool
}

func (tv *timeValue) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		tv.Time, tv.Valid = time.Time{}, false
		return nil
	case time.Time:
		tv.Time, tv.Valid = v.UTC(), true
		return nil
	case int64:
		tv.Time, tv.Valid = time.Unix(v, 0).UTC(), true
		return nil
	case []byte:
		return tv.parse(string(v))
	case string:
		return tv.parse(v)
	}
	return fmt.Errorf("unsupported time value %T", src)
}

func (tv *timeValue) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			tv.Time, tv.Valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("unsupported time format %q", s)
}
