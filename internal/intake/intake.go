// Package intake computes the purchase-order intake KPIs shown above the
// shipment list.
package intake

import (
	"time"

	"shiptrack/internal/domain"
)

const (
	dateLayout = "2006-01-02"
	// PSTDoneProgress is the progress at which a preparing PO counts as PST completed.
	PSTDoneProgress = 80
)

type KPIs struct {
	Date         string `json:"date" format:"date"`
	POToday      int    `json:"po_today"`
	PONext7Days  int    `json:"po_next_7_days"`
	PSTTotal     int    `json:"pst_total"`
	PSTCompleted int    `json:"pst_completed"`
	PSTRemaining int    `json:"pst_remaining"`
	PSWThisWeek  int    `json:"psw_this_week"`
	WeekStart    string `json:"week_start" format:"date"`
	WeekEnd      string `json:"week_end" format:"date"`
}

// Compute derives the KPIs for the UTC calendar day of now.
func Compute(shipments []domain.Shipment, now time.Time) KPIs {
	now = now.UTC()
	today := now.Format(dateLayout)
	weekFromNow := now.AddDate(0, 0, 7).Format(dateLayout)
	monday := now.AddDate(0, 0, -daysSinceMonday(now.Weekday()))
	k := KPIs{
		Date:      today,
		WeekStart: monday.Format(dateLayout),
		WeekEnd:   monday.AddDate(0, 0, 6).Format(dateLayout),
	}
	for _, s := range shipments {
		switch {
		case s.ETD == today:
			k.POToday++
		case s.ETD > today && s.ETD <= weekFromNow:
			k.PONext7Days++
		}
		if s.Status != domain.StatusPreparing {
			continue
		}
		k.PSTTotal++
		if s.Progress >= PSTDoneProgress {
			k.PSTCompleted++
		}
		if s.ETD >= k.WeekStart && s.ETD <= k.WeekEnd {
			k.PSWThisWeek++
		}
	}
	k.PSTRemaining = k.PSTTotal - k.PSTCompleted
	return k
}

func daysSinceMonday(d time.Weekday) int {
	if d == time.Sunday {
		return 6
	}
	return int(d) - 1
}
