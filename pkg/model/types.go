package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reading is a single balance snapshot returned by the remote power service.
// Readings are never mutated after they are produced.
type Reading struct {
	ID              string          `json:"id" db:"id"`
	RemainingMoney  decimal.Decimal `json:"remaining_money" db:"remaining_money"`
	RemainingEnergy decimal.Decimal `json:"remaining_energy" db:"remaining_energy"`
	MeterRoomID     string          `json:"meter_room_id" db:"meter_room_id"`
	RoomDisplayName string          `json:"room_display_name" db:"room_display_name"`
	RoomID          string          `json:"room_id" db:"room_id"`
	BuildingID      string          `json:"building_id" db:"building_id"`
	CampusID        string          `json:"campus_id" db:"campus_id"`
	RoomNumber      string          `json:"room_number" db:"room_number"`
	Timestamp       time.Time       `json:"timestamp" db:"created_at"`
}

// ReadingFilter controls which stored readings are returned.
type ReadingFilter struct {
	RoomID    string    `json:"room_id,omitempty"`
	StartTime time.Time `json:"start_time,omitempty"`
	EndTime   time.Time `json:"end_time,omitempty"`
	Limit     int       `json:"limit,omitempty"`
}

// IsBelow reports whether the remaining money is at or below the threshold.
func (r *Reading) IsBelow(threshold decimal.Decimal) bool {
	return r.RemainingMoney.LessThanOrEqual(threshold)
}

// DayBounds returns the start and end of the calendar day containing t, in t's location.
func DayBounds(t time.Time) (start, end time.Time) {
	start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	end = start.AddDate(0, 0, 1)
	return start, end
}
