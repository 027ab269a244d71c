// Package queue defines message payloads exchanged over the message broker
// and the publisher and consumer that move them.
package queue

import (
	"encoding/json"
	"errors"
	"strings"
)

// MailQueueName is the durable queue outbound email travels through.
const MailQueueName = "mail.outbound"

// MailMessage is one outbound email.  Kind names the template that produced
// it ("signup_code", "invite", "invite_reminder", "password_reset") and is
// only used for logging and metrics.
type MailMessage struct {
	To          string `json:"to"`
	Subject     string `json:"subject"`
	HTML        string `json:"html,omitempty"`
	Text        string `json:"text,omitempty"`
	Kind        string `json:"kind,omitempty"`
	RequestedAt string `json:"requested_at,omitempty"`
}

// Validate rejects messages that could never be delivered.
func (m MailMessage) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return errors.New("mail message has no recipient")
	}
	if m.HTML == "" && m.Text == "" {
		return errors.New("mail message has no body")
	}
	return nil
}

// DecodeMail parses and validates a queued message body.
func DecodeMail(body []byte) (MailMessage, error) {
	var m MailMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return MailMessage{}, err
	}
	return m, m.Validate()
}
