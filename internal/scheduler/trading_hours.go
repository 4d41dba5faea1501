package scheduler

import (
	"time"

	"github.com/rs/zerolog"
)

// TradingWindow represents a single trading period within a day
type TradingWindow struct {
	OpenHour    int
	OpenMinute  int
	CloseHour   int
	CloseMinute int
}

func (w TradingWindow) contains(t time.Time) bool {
	minutes := t.Hour()*60 + t.Minute()
	return minutes >= w.OpenHour*60+w.OpenMinute && minutes < w.CloseHour*60+w.CloseMinute
}

// TradingCalendar decides whether the exchange is in a continuous trading session
type TradingCalendar struct {
	Timezone *time.Location
	Windows  []TradingWindow
	holidays map[string]bool
	log      zerolog.Logger
}

// NewTradingCalendar returns the mainland A-share calendar: weekdays,
// 09:30-11:30 and 13:00-15:00 Asia/Shanghai. holidays are YYYY-MM-DD dates.
func NewTradingCalendar(holidays []string, log zerolog.Logger) *TradingCalendar {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		loc = time.FixedZone("CST", 8*3600)
	}

	c := &TradingCalendar{
		Timezone: loc,
		Windows: []TradingWindow{
			{OpenHour: 9, OpenMinute: 30, CloseHour: 11, CloseMinute: 30},
			{OpenHour: 13, OpenMinute: 0, CloseHour: 15, CloseMinute: 0},
		},
		holidays: make(map[string]bool, len(holidays)),
		log:      log.With().Str("component", "trading_calendar").Logger(),
	}
	for _, d := range holidays {
		c.holidays[d] = true
	}
	return c
}

// IsTradingDay reports whether t falls on a weekday that is not a holiday
func (c *TradingCalendar) IsTradingDay(t time.Time) bool {
	local := t.In(c.Timezone)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.holidays[local.Format("2006-01-02")]
}

// IsOpen reports whether t is inside a trading window of a trading day
func (c *TradingCalendar) IsOpen(t time.Time) bool {
	if !c.IsTradingDay(t) {
		return false
	}
	local := t.In(c.Timezone)
	for _, w := range c.Windows {
		if w.contains(local) {
			return true
		}
	}
	return false
}
