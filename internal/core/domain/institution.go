package domain

import (
	"encoding/json"
	"time"
)

// Institution is a financial institution known to the provider.
type Institution struct {
	InstitutionID string
	Name          string
	Products      []string
	CountryCodes  []string
	URL           string
	PrimaryColor  string
	Logo          string
	Raw           json.RawMessage
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
