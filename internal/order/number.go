package order

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	orderNumberPrefix = "ORD"
	// provisionalPrefix marks an order whose daily number is not assigned
	// yet. It never survives a committed checkout.
	provisionalPrefix = "TMP-"
	// advisoryLockNamespace scopes pg_advisory_xact_lock(ns, yyyymmdd) to
	// order numbering.
	advisoryLockNamespace = 7301
)

// FormatOrderNumber renders ORD + YYYYMMDD + a four digit daily sequence.
// Sequences past 9999 simply grow wider.
func FormatOrderNumber(day time.Time, seq int) string {
	return fmt.Sprintf("%s%04d", dayPrefix(day), seq)
}

func dayPrefix(day time.Time) string {
	return orderNumberPrefix + day.Format("20060102")
}

func provisionalOrderNumber() string {
	return provisionalPrefix + uuid.NewString()
}

// orderDay returns the start of the calendar day containing now in loc,
// plus the integer key used for the advisory lock.
func orderDay(now time.Time, loc *time.Location) (start time.Time, key int32) {
	local := now.In(loc)
	start = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	key = int32(local.Year()*10000 + int(local.Month())*100 + local.Day())
	return start, key
}
