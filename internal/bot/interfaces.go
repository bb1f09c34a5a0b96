package bot

import (
	"context"

	"github.com/nkotelnikov/telesweep/internal/gateway"
	"github.com/nkotelnikov/telesweep/internal/prompt"
	"github.com/nkotelnikov/telesweep/internal/service"
)

// Messenger is the bot-plane surface handlers use to talk to the user.
// Implemented by *gateway.BotClient.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int64, error)
	SendKeyboard(ctx context.Context, chatID int64, text string, kb gateway.Keyboard) (int64, error)
	EditMessage(ctx context.Context, chatID, messageID int64, text string, kb gateway.Keyboard) error
	AnswerCallback(ctx context.Context, callbackID string) error
}

// Prompter is the subset of the prompt engine handlers need.
// Implemented by *prompt.Engine.
type Prompter interface {
	Ask(ctx context.Context, userID int64, promptText string, validate prompt.Validator) (string, error)
	Await(ctx context.Context, userID int64, validate prompt.Validator) (string, error)
	Deliver(userID int64, text string) bool
}

// UserSession is an open delegated session as handlers see it: the eraser's
// surface plus teardown. Implemented by *gateway.UserClient.
type UserSession interface {
	service.UserSession
	Logout(ctx context.Context) error
	Close()
}

// SessionOpener turns a decrypted session blob into a connected UserSession and
// exchanges one-time authorization codes for new sessions.
type SessionOpener interface {
	Open(ctx context.Context, session []byte) (UserSession, gateway.Account, error)
	Authorize(ctx context.Context, code string) (gateway.Grant, error)
}
