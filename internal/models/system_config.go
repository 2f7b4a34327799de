package models

import "time"

const DefaultMessageDurationHours = 24.0

type SystemConfig struct {
	MessageDuration float64
	UpdatedBy       string
	UpdatedAt       *time.Time
}
