package models

// Message is one stored chat message. The body is held only as AES-GCM
// ciphertext; plaintext exists transiently inside the send/read handlers.
// Messages are append-only: once written nothing changes except Read,
// which the recipient may flip to true.
type Message struct {
	ID          string `json:"id"`
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id"`
	Ciphertext  []byte `json:"ciphertext"`
	// CreatedTS is the append timestamp in UTC nanoseconds.
	CreatedTS int64 `json:"created_ts"`
	Read      bool  `json:"read,omitempty"`
}
