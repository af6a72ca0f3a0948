package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/lenslink/messaging/pkg/auth"
	"github.com/lenslink/messaging/pkg/logger"
	"github.com/lenslink/messaging/pkg/metrics"
	"github.com/lenslink/messaging/pkg/moderation"
	"github.com/lenslink/messaging/pkg/security"
	"github.com/lenslink/messaging/pkg/store"
	"github.com/lenslink/messaging/pkg/utils"
	"github.com/lenslink/messaging/pkg/validation"
)

type sendRequest struct {
	RecipientID string `json:"recipient_id"`
	Plaintext   string `json:"plaintext"`
}

// messageView is a decrypted message as returned to a participant.
type messageView struct {
	ID          string `json:"id"`
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id"`
	Body        string `json:"body"`
	CreatedTS   int64  `json:"created_ts"`
	Read        bool   `json:"read"`
}

// sendMessage runs the full send flow: identity, validation, the moderation
// gate, then encrypt-and-append. A rejected send never persists anything;
// the ledger update for a violation has already happened inside the gate by
// the time the rejection is written out.
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	sender := auth.UserIDFromContext(r.Context())
	if sender == "" {
		utils.JSONError(w, http.StatusUnauthorized, "identity missing")
		return
	}
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.Sends.WithLabelValues("rejected").Inc()
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validation.ValidateSend(sender, req.RecipientID, req.Plaintext); err != nil {
		metrics.Sends.WithLabelValues("rejected").Inc()
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	dec, err := s.Gate.Check(sender, req.Plaintext)
	if err != nil {
		logger.Error("moderation_check_failed", "sender", sender, "error", err)
		metrics.Sends.WithLabelValues("failed").Inc()
		utils.JSONError(w, http.StatusInternalServerError, "moderation check failed")
		return
	}
	switch dec.Outcome {
	case moderation.OutcomeBanned:
		metrics.Sends.WithLabelValues("banned").Inc()
		logger.Warn("send_banned", "sender", sender, "ban_until", dec.BanUntil, "violations", dec.ViolationCount)
		_ = utils.JSONWrite(w, http.StatusForbidden, map[string]any{
			"error":           "account banned",
			"ban_until":       dec.BanUntil.UTC().Format(time.RFC3339),
			"violation_count": dec.ViolationCount,
		})
		return
	case moderation.OutcomeWarned:
		metrics.Sends.WithLabelValues("warned").Inc()
		logger.Warn("send_warned", "sender", sender, "violations", dec.ViolationCount)
		_ = utils.JSONWrite(w, http.StatusBadRequest, map[string]any{
			"error":           "message rejected: abusive content",
			"violation_count": dec.ViolationCount,
		})
		return
	}

	key, err := security.DeriveConversationKey(sender, req.RecipientID)
	if err != nil {
		logger.Error("key_derivation_failed", "error", err)
		metrics.Sends.WithLabelValues("failed").Inc()
		utils.JSONError(w, http.StatusInternalServerError, "encryption unavailable")
		return
	}
	ct, err := security.Encrypt([]byte(req.Plaintext), key)
	if err != nil {
		logger.Error("encryption_failed", "error", err)
		metrics.Sends.WithLabelValues("failed").Inc()
		utils.JSONError(w, http.StatusInternalServerError, "encryption failed")
		return
	}
	m, err := store.AppendMessage(sender, req.RecipientID, ct)
	if err != nil {
		logger.Error("append_message_failed", "error", err)
		metrics.Sends.WithLabelValues("failed").Inc()
		utils.JSONError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	metrics.Sends.WithLabelValues("allowed").Inc()
	logger.Info("message_sent", "id", m.ID, "sender", sender, "recipient", req.RecipientID)
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"message_id": m.ID})
}

// listMessages returns the decrypted conversation between the caller and
// ?contactId=, ascending by append time. A message that fails to decrypt
// aborts the request with a distinct error rather than appearing empty.
func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserIDFromContext(r.Context())
	if caller == "" {
		utils.JSONError(w, http.StatusUnauthorized, "identity missing")
		return
	}
	contact := r.URL.Query().Get("contactId")
	if err := validation.ValidateUserID(contact); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "contactId missing or invalid")
		return
	}
	msgs, err := store.ListBetween(caller, contact)
	if err != nil {
		logger.Error("list_messages_failed", "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	key, err := security.DeriveConversationKey(caller, contact)
	if err != nil {
		logger.Error("key_derivation_failed", "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "encryption unavailable")
		return
	}
	out := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		pt, err := security.Decrypt(m.Ciphertext, key)
		if err != nil {
			var derr *security.DecryptionError
			if errors.As(err, &derr) {
				logger.Error("message_decryption_failed", "id", m.ID, "error", err)
				utils.JSONError(w, http.StatusInternalServerError, "message decryption failed")
				return
			}
			utils.JSONError(w, http.StatusInternalServerError, "storage failure")
			return
		}
		out = append(out, messageView{
			ID:          m.ID,
			SenderID:    m.SenderID,
			RecipientID: m.RecipientID,
			Body:        string(pt),
			CreatedTS:   m.CreatedTS,
			Read:        m.Read,
		})
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		ContactID string        `json:"contact_id"`
		Messages  []messageView `json:"messages"`
	}{ContactID: contact, Messages: out})
}

// markRead flips the read flag; only the recipient may do so.
func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserIDFromContext(r.Context())
	if caller == "" {
		utils.JSONError(w, http.StatusUnauthorized, "identity missing")
		return
	}
	id := mux.Vars(r)["id"]
	switch err := store.MarkRead(id, caller); {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, store.ErrNotFound):
		utils.JSONError(w, http.StatusNotFound, "message not found")
	case errors.Is(err, store.ErrNotRecipient):
		utils.JSONError(w, http.StatusForbidden, "only the recipient may mark a message read")
	default:
		logger.Error("mark_read_failed", "id", id, "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "storage failure")
	}
}
