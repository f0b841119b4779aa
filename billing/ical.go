package billing

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
)

const calendarProductID = "-//warp//timepiece billing windows//EN"

// WindowsCalendar renders a period's windows as all-day iCalendar events,
// one VEVENT per window. DTEND is exclusive, matching the window's EndDate.
func WindowsCalendar(p RepeatPeriod, windows []Window, stamp time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(calendarProductID)
	cal.SetName(fmt.Sprintf("Billing period %s", p.ID))

	for i, w := range sortWindows(windows) {
		uid := w.ID
		if uid == "" {
			uid = fmt.Sprintf("%s-%d", p.ID, i)
		}
		event := cal.AddEvent(uid + "@timepiece")
		event.SetDtStampTime(stamp.UTC())
		event.SetAllDayStartAt(w.Date)
		event.SetAllDayEndAt(w.EndDate)
		event.SetSummary(fmt.Sprintf("Billing window %d (every %d %s)", i+1, p.Count, p.Interval))
	}
	return cal.Serialize()
}
