package dto

import "github.com/sagarregmi2056/WhatsappBulkMessage/model"

// CampaignRequest is one bulk-send request assembled by the HTTP layer.
type CampaignRequest struct {
	CampaignName    string
	MessageTemplate string
	Contacts        []model.Contact
	Media           *model.Media
}

// Status mirrors the session snapshot for the status endpoint.
type Status struct {
	IsConnected bool   `json:"isConnected"`
	QRCode      string `json:"qrCode"`
	State       string `json:"state"`
	LastError   string `json:"lastError,omitempty"`
}
