package model

// Media is an optional attachment shared by every message of a campaign.
// The bytes are read once by the caller; the core never touches the
// originating file.
type Media struct {
	Data     []byte
	Mimetype string
	FileName string
}
