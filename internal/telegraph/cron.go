package telegraph

import (
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration returns the duration until the expression's next
// fire time. Returns 0 on parse error.
func nextCronDuration(expr string) time.Duration {
	return nextCronDurationFrom(expr, time.Now())
}

// nextCronDurationFrom computes the wait from an explicit reference time.
func nextCronDurationFrom(expr string, from time.Time) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	d := sched.Next(from).Sub(from)
	if d < 0 {
		return 0
	}
	return d
}
