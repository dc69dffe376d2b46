package timerange

import (
	"fmt"
	"time"
)

var weekdayAbbrev = map[time.Weekday]string{
	time.Monday:    "seg",
	time.Tuesday:   "ter",
	time.Wednesday: "qua",
	time.Thursday:  "qui",
	time.Friday:    "sex",
	time.Saturday:  "sáb",
	time.Sunday:    "dom",
}

var monthNames = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// Weekday returns the Portuguese weekday abbreviation ("seg", "sáb").
func Weekday(t time.Time) string {
	return weekdayAbbrev[t.Weekday()]
}

// DayMonth renders t as "dd/mm".
func DayMonth(t time.Time) string {
	return t.Format("02/01")
}

// Clock renders t as "HH:MM".
func Clock(t time.Time) string {
	return t.Format("15:04")
}

// DateTime renders t as "dd/mm (ter) às HH:MM".
func DateTime(t time.Time) string {
	return fmt.Sprintf("%s (%s) às %s", DayMonth(t), Weekday(t), Clock(t))
}

func longDate(t time.Time) string {
	return fmt.Sprintf("%d de %s", t.Day(), monthNames[t.Month()-1])
}

func dayLabel(start, end time.Time) string {
	if SameDay(start, end) {
		return "o dia " + longDate(start)
	}
	return fmt.Sprintf("o período de %s a %s", DayMonth(start), DayMonth(end))
}
