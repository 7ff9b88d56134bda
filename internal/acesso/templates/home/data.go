package home

import "time"

// PageData encapsulates rendering state for the signed-in landing page.
type PageData struct {
	Email      string
	UID        string
	SignedInAt time.Time
	Flash      string
	CSRFToken  string
}
