package enums

import "fmt"

// MessageStatus describes the delivery lifecycle of a scheduled message.
// A message never moves back to pending once it has been sent.
type MessageStatus string

const (
	MessageStatusPending       MessageStatus = "pending"
	MessageStatusSent          MessageStatus = "sent"
	MessageStatusPartiallySent MessageStatus = "partially_sent"
	MessageStatusFailed        MessageStatus = "failed"
)

var validMessageStatuses = []MessageStatus{
	MessageStatusPending,
	MessageStatusSent,
	MessageStatusPartiallySent,
	MessageStatusFailed,
}

// String returns the literal string for the status.
func (m MessageStatus) String() string {
	return string(m)
}

// IsValid reports whether the status is known.
func (m MessageStatus) IsValid() bool {
	for _, candidate := range validMessageStatuses {
		if candidate == m {
			return true
		}
	}
	return false
}

// IsTerminal reports whether recovery should skip the message. Failed is soft:
// the record is retained and resendable, so it is not terminal here.
func (m MessageStatus) IsTerminal() bool {
	return m == MessageStatusSent || m == MessageStatusPartiallySent
}

// ParseMessageStatus converts raw input into a MessageStatus.
func ParseMessageStatus(value string) (MessageStatus, error) {
	for _, candidate := range validMessageStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid message status %q", value)
}
