package models

import "time"

// Subscriber statuses.
const (
	SubscriberPending      = "pending"
	SubscriberActive       = "active"
	SubscriberUnsubscribed = "unsubscribed"
)

// DefaultSubscriberSource is recorded when the signup form does not name one.
const DefaultSubscriberSource = "form"

// SubscriberModel is one newsletter address and its double opt-in state.
type SubscriberModel struct {
	Base                   `bson:",inline"`
	Email                  string     `json:"email"                    gorm:"type:varchar(320);uniqueIndex;not null"     bson:"email"`
	Status                 string     `json:"status"                   gorm:"type:varchar(16);index;not null"            bson:"status"`
	Source                 string     `json:"source"                   gorm:"type:varchar(64);default:'form'"            bson:"source"`
	ConfirmedAt            *time.Time `json:"confirmedAt,omitempty"                                                      bson:"confirmed_at,omitempty"`
	UnsubscribedAt         *time.Time `json:"unsubscribedAt,omitempty"                                                   bson:"unsubscribed_at,omitempty"`
	ConfirmTokenHash       string     `json:"-"                        gorm:"type:char(64);index"                        bson:"confirm_token_hash,omitempty"`
	ConfirmTokenExpiresAt  *time.Time `json:"-"                        gorm:"index"                                      bson:"confirm_token_expires_at,omitempty"`
	LastConfirmationSentAt *time.Time `json:"lastConfirmationSentAt,omitempty"                                           bson:"last_confirmation_sent_at,omitempty"`
}

func (SubscriberModel) TableName() string { return "subscribers" }

// HasOutstandingToken reports whether a confirmation link is currently usable in principle.
func (s *SubscriberModel) HasOutstandingToken() bool {
	return s.ConfirmTokenHash != ""
}

// ClearConfirmToken drops the stored hash and expiry so the token cannot be replayed.
func (s *SubscriberModel) ClearConfirmToken() {
	s.ConfirmTokenHash = ""
	s.ConfirmTokenExpiresAt = nil
}
