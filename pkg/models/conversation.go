package models

// ConversationSummary is one row of a user's conversation list. It is a
// computed projection over the message log, not a stored entity: the
// counterparty set and last-activity ordering are derived from message keys
// at read time so the view can never drift from the log.
type ConversationSummary struct {
	CounterpartyID string `json:"counterparty_id"`
	// LastActivityTS is the newest message timestamp in either direction,
	// UTC nanoseconds.
	LastActivityTS int64 `json:"last_activity_ts"`
}
