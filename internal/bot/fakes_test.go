package bot

import (
	"context"
	"sync"

	"github.com/nkotelnikov/telesweep/internal/errs"
	"github.com/nkotelnikov/telesweep/internal/gateway"
	"github.com/nkotelnikov/telesweep/internal/model"
	"github.com/nkotelnikov/telesweep/internal/prompt"
)

type sentMessage struct {
	chatID int64
	text   string
}

type sentKeyboard struct {
	chatID    int64
	messageID int64
	text      string
	kb        gateway.Keyboard
}

type editedMessage struct {
	chatID    int64
	messageID int64
	text      string
	kb        gateway.Keyboard
}

type fakeMessenger struct {
	mu        sync.Mutex
	messages  []sentMessage
	keyboards []sentKeyboard
	edits     []editedMessage
	answered  []string
	nextID    int64
}

func (m *fakeMessenger) SendMessage(_ context.Context, chatID int64, text string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.messages = append(m.messages, sentMessage{chatID: chatID, text: text})
	return m.nextID, nil
}

func (m *fakeMessenger) SendKeyboard(_ context.Context, chatID int64, text string, kb gateway.Keyboard) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.keyboards = append(m.keyboards, sentKeyboard{chatID: chatID, messageID: m.nextID, text: text, kb: kb})
	return m.nextID, nil
}

func (m *fakeMessenger) EditMessage(_ context.Context, chatID, messageID int64, text string, kb gateway.Keyboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, editedMessage{chatID: chatID, messageID: messageID, text: text, kb: kb})
	return nil
}

func (m *fakeMessenger) AnswerCallback(_ context.Context, callbackID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answered = append(m.answered, callbackID)
	return nil
}

func (m *fakeMessenger) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.messages))
	for i, msg := range m.messages {
		out[i] = msg.text
	}
	return out
}

func (m *fakeMessenger) lastText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return ""
	}
	return m.messages[len(m.messages)-1].text
}

// promptStep is one scripted reply (or a forced error) for the fake prompter.
type promptStep struct {
	reply string
	err   error
}

// fakePrompter replays scripted replies through the real validators, mirroring
// the engine's accept/retry/abandon behavior with a bound of three attempts.
type fakePrompter struct {
	mu        sync.Mutex
	steps     []promptStep
	asked     []string
	delivered []string
	deliverOK bool
}

func (p *fakePrompter) Ask(_ context.Context, _ int64, promptText string, validate prompt.Validator) (string, error) {
	p.mu.Lock()
	p.asked = append(p.asked, promptText)
	p.mu.Unlock()
	return p.next(validate)
}

func (p *fakePrompter) Await(_ context.Context, _ int64, validate prompt.Validator) (string, error) {
	return p.next(validate)
}

func (p *fakePrompter) Deliver(_ int64, text string) bool {
	p.mu.Lock()
	p.delivered = append(p.delivered, text)
	p.mu.Unlock()
	return p.deliverOK
}

func (p *fakePrompter) next(validate prompt.Validator) (string, error) {
	last := ""
	for attempt := 0; attempt < 3; attempt++ {
		p.mu.Lock()
		if len(p.steps) == 0 {
			p.mu.Unlock()
			return "", &prompt.AbandonedError{LastMessage: last}
		}
		step := p.steps[0]
		p.steps = p.steps[1:]
		p.mu.Unlock()

		if step.err != nil {
			return "", step.err
		}
		if validate == nil {
			return step.reply, nil
		}
		decision, msg := validate(step.reply)
		switch decision {
		case prompt.Accept:
			return step.reply, nil
		case prompt.Abort:
			return "", &prompt.AbandonedError{LastMessage: msg}
		default:
			last = msg
		}
	}
	return "", &prompt.AbandonedError{LastMessage: last}
}

type fakeUserSession struct {
	dialogs    []model.Conversation
	dialogsErr error
	own        map[int64][]int64
	ownErr     map[int64]error
	// deleted = requested - shortfall for the conversation
	shortfall  map[int64]int
	deleteErr  map[int64]error
	historyLen map[int64]int

	mu          sync.Mutex
	dialogCalls int
	deleted     map[int64][]int64
	wiped       []int64
	loggedOut   bool
	closed      bool
}

func (s *fakeUserSession) Dialogs(context.Context) ([]model.Conversation, error) {
	s.mu.Lock()
	s.dialogCalls++
	s.mu.Unlock()
	if s.dialogsErr != nil {
		return nil, s.dialogsErr
	}
	return s.dialogs, nil
}

func (s *fakeUserSession) OwnMessages(_ context.Context, convID int64) ([]int64, error) {
	if err := s.ownErr[convID]; err != nil {
		return nil, err
	}
	return s.own[convID], nil
}

func (s *fakeUserSession) DeleteMessages(_ context.Context, convID int64, ids []int64) (int, error) {
	s.mu.Lock()
	if s.deleted == nil {
		s.deleted = make(map[int64][]int64)
	}
	s.deleted[convID] = append(s.deleted[convID], ids...)
	s.mu.Unlock()
	if err := s.deleteErr[convID]; err != nil {
		return 0, err
	}
	return len(ids) - s.shortfall[convID], nil
}

func (s *fakeUserSession) DeleteHistory(_ context.Context, peerID int64) (int, error) {
	s.mu.Lock()
	s.wiped = append(s.wiped, peerID)
	s.mu.Unlock()
	return s.historyLen[peerID], nil
}

func (s *fakeUserSession) Logout(context.Context) error {
	s.mu.Lock()
	s.loggedOut = true
	s.mu.Unlock()
	return nil
}

func (s *fakeUserSession) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

type fakeOpener struct {
	sess    *fakeUserSession
	account gateway.Account
	openErr error
	grant   gateway.Grant
	authErr error

	mu     sync.Mutex
	opened int
	codes  []string
}

func (o *fakeOpener) Open(_ context.Context, _ []byte) (UserSession, gateway.Account, error) {
	o.mu.Lock()
	o.opened++
	o.mu.Unlock()
	if o.openErr != nil {
		return nil, gateway.Account{}, o.openErr
	}
	return o.sess, o.account, nil
}

func (o *fakeOpener) Authorize(_ context.Context, code string) (gateway.Grant, error) {
	o.mu.Lock()
	o.codes = append(o.codes, code)
	o.mu.Unlock()
	if o.authErr != nil {
		return gateway.Grant{}, o.authErr
	}
	return o.grant, nil
}

// memRepo is an in-memory CredentialRepository for handler tests.
type memRepo struct {
	mu   sync.Mutex
	recs map[int64]model.CredentialRecord
}

func newMemRepo() *memRepo {
	return &memRepo{recs: make(map[int64]model.CredentialRecord)}
}

func (r *memRepo) Get(_ context.Context, userID int64) (*model.CredentialRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[userID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &rec, nil
}

func (r *memRepo) Upsert(_ context.Context, rec *model.CredentialRecord) error {
	r.mu.Lock()
	r.recs[rec.UserID] = *rec
	r.mu.Unlock()
	return nil
}

func (r *memRepo) Delete(_ context.Context, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.recs[userID]; !ok {
		return 0, nil
	}
	delete(r.recs, userID)
	return 1, nil
}
