package model

import "time"

type Contact struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
}

// SentRecipient is one successfully delivered contact of a campaign.
type SentRecipient struct {
	Name            string    `json:"name"`
	PhoneNumber     string    `json:"phoneNumber"`
	FormattedNumber string    `json:"formattedNumber"`
	ActualMessage   string    `json:"actualMessage"`
	Timestamp       time.Time `json:"timestamp"`
}

// FailedRecipient is one contact that was rejected or whose send failed.
type FailedRecipient struct {
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phoneNumber"`
	Error       string    `json:"error"`
	Timestamp   time.Time `json:"timestamp"`
}

type Statistics struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// CampaignRecord is the durable audit record of one completed campaign.
// Timestamp (unix millis) is the unique key, records are never mutated
// after they are written.
type CampaignRecord struct {
	CampaignName    string            `json:"campaignName"`
	Timestamp       int64             `json:"timestamp"`
	MessageTemplate string            `json:"messageTemplate"`
	Successful      []SentRecipient   `json:"successful"`
	Failed          []FailedRecipient `json:"failed"`
	Statistics      Statistics        `json:"statistics"`
}

// CampaignSummary is the list projection of a record, without the
// per-recipient arrays.
type CampaignSummary struct {
	CampaignName    string     `json:"campaignName"`
	Timestamp       int64      `json:"timestamp"`
	MessageTemplate string     `json:"messageTemplate"`
	Statistics      Statistics `json:"statistics"`
}

func (r CampaignRecord) Summary() CampaignSummary {
	return CampaignSummary{
		CampaignName:    r.CampaignName,
		Timestamp:       r.Timestamp,
		MessageTemplate: r.MessageTemplate,
		Statistics:      r.Statistics,
	}
}
