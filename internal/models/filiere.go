package models

import "time"

// Filiere is a class group. DelegateID references the user acting as its delegate.
type Filiere struct {
	ID           string
	Name         string
	Niveau       string
	Major        string
	DelegateID   string
	WhatsappLink string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
