// Package gateway is the HTTP client for the chat platform API. The bot plane
// (updates, outbound messages) authenticates with the bot token; the session
// plane authenticates with an opaque delegated-session token.
package gateway

// User identifies a chat-service account in inbound events.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// Chat identifies the conversation an event arrived in.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// InboundMessage is a text message addressed to the bot.
type InboundMessage struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

// CallbackEvent is a button press on a previously sent inline keyboard.
type CallbackEvent struct {
	ID        string `json:"id"`
	From      *User  `json:"from,omitempty"`
	ChatID    int64  `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	Data      string `json:"data"`
}

// Update is one long-poll result; exactly one of Message/Callback is set.
type Update struct {
	UpdateID int64           `json:"update_id"`
	Message  *InboundMessage `json:"message,omitempty"`
	Callback *CallbackEvent  `json:"callback,omitempty"`
}

// Button is one inline-keyboard button with its callback payload.
type Button struct {
	Text string `json:"text"`
	Data string `json:"data"`
}

// Keyboard is rows of inline buttons attached to an outbound message.
type Keyboard [][]Button

// Account describes the identity behind a delegated session.
type Account struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
}

// Grant is the result of exchanging a one-time authorization code for a
// delegated session.
type Grant struct {
	Session string  `json:"session"`
	Account Account `json:"account"`
}

// --- wire envelopes ---

type updateResponse struct {
	OK     bool     `json:"ok"`
	Result []Update `json:"result"`
}

type sendRequest struct {
	ChatID   int64    `json:"chat_id"`
	Text     string   `json:"text"`
	Keyboard Keyboard `json:"keyboard,omitempty"`
}

type sendResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

type editRequest struct {
	ChatID    int64    `json:"chat_id"`
	MessageID int64    `json:"message_id"`
	Text      string   `json:"text"`
	Keyboard  Keyboard `json:"keyboard,omitempty"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type answerCallbackRequest struct {
	CallbackID string `json:"callback_id"`
}

type meResponse struct {
	OK     bool    `json:"ok"`
	Result Account `json:"result"`
}

type authorizeRequest struct {
	Code string `json:"code"`
}

type authorizeResponse struct {
	OK     bool  `json:"ok"`
	Result Grant `json:"result"`
}

type dialogEntry struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Kind  string `json:"kind"`
}

type dialogsResponse struct {
	OK     bool          `json:"ok"`
	Result []dialogEntry `json:"result"`
}

type messagesResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		IDs        []int64 `json:"ids"`
		NextOffset int64   `json:"next_offset"`
	} `json:"result"`
}

type deleteMessagesRequest struct {
	IDs []int64 `json:"ids"`
}

type deleteResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		Deleted int `json:"deleted"`
	} `json:"result"`
}
