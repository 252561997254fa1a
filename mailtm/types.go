package mailtm

import "time"

// Domain is a domain the remote service can create addresses under.
type Domain struct {
	ID       string `json:"id"`
	Domain   string `json:"domain"`
	IsActive bool   `json:"isActive"`
}

// Account holds the credentials for one remote temporary mailbox.
// The token authenticates every message operation; the password allows
// re-issuing a token if the caller persists accounts beyond one token's
// lifetime.
type Account struct {
	ID       string `json:"id"`
	Address  string `json:"address"`
	Password string `json:"password"`
	Token    string `json:"token"`
}

// MessageSummary is one entry of a mailbox listing.
type MessageSummary struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	Subject   string    `json:"subject"`
	Intro     string    `json:"intro"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// MessageDetail is the full content of a single message.
type MessageDetail struct {
	ID              string    `json:"id"`
	From            string    `json:"from"`
	To              string    `json:"to"`
	Subject         string    `json:"subject"`
	Intro           string    `json:"intro"`
	Text            string    `json:"text"`
	HTML            string    `json:"html"`
	AttachmentCount int       `json:"attachmentCount"`
	IsRead          bool      `json:"isRead"`
	CreatedAt       time.Time `json:"createdAt"`
}
