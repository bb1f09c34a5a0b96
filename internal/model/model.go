// Package model defines domain entities used by services, handlers, and repositories.
package model

import (
	"fmt"
	"time"
)

// CredentialRecord stores a user's passphrase-protected delegated session.
// EncryptedSession and PassphraseHash are set and cleared together; a record
// never carries one without the other.
type CredentialRecord struct {
	UserID           int64  // owning chat-service user, unique key
	Label            string // human-chosen name of the delegated identity
	EncryptedSession []byte // AEAD ciphertext of the opaque session token
	PassphraseHash   []byte // salted Argon2id digest, independent of the AEAD key
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ConversationKind classifies a remote conversation.
type ConversationKind string

const (
	KindDialog  ConversationKind = "dialog"  // one-to-one
	KindGroup   ConversationKind = "group"   // multi-member chat
	KindChannel ConversationKind = "channel" // broadcast channel
	KindAny     ConversationKind = "any"     // wildcard, matches everything
)

// ParseKind converts user input into a ConversationKind.
func ParseKind(s string) (ConversationKind, error) {
	switch ConversationKind(s) {
	case KindDialog, KindGroup, KindChannel, KindAny:
		return ConversationKind(s), nil
	}
	return "", fmt.Errorf("unknown conversation kind %q", s)
}

// Conversation is a catalog entry, reconstructed per request and never persisted.
type Conversation struct {
	ID    int64
	Title string
	Kind  ConversationKind
}

// EraseRequest is one invocation of the erasure workflow. Peers and BulkByKind
// are mutually exclusive; with neither set the workflow runs an interactive pick.
type EraseRequest struct {
	UserID     int64
	Peers      []string         // explicit identifiers (numeric id or exact title)
	BulkByKind bool             // erase every conversation matching Kind
	Kind       ConversationKind // filter; empty defaults per resolution mode
	Passphrase string           // optional, prompted for when empty
}

// EraseOutcome reports one conversation's deletion result. Report value only.
type EraseOutcome struct {
	Conversation Conversation
	Requested    int // messages examined / scheduled for deletion
	Deleted      int // messages the service actually removed
}
