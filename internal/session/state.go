package session

import (
	"errors"
	"time"

	"github.com/inovalupa/govtech-analyzer/internal/models"
)

type Tab string

const (
	TabAnalysis Tab = "analysis"
	TabChat     Tab = "chat"
	TabProposal Tab = "proposal"
	TabAdmin    Tab = "admin"
)

func (t Tab) Valid() bool {
	switch t {
	case TabAnalysis, TabChat, TabProposal, TabAdmin:
		return true
	}
	return false
}

var (
	ErrBusy            = errors.New("another request is still in progress")
	ErrNoActiveProject = errors.New("no project selected")
	ErrUnknownTab      = errors.New("unknown tab")
	ErrAdminOnly       = errors.New("tab restricted to administrators")
	ErrEmptyMessage    = errors.New("message is empty")
	ErrNotFound        = errors.New("session not found")
)

// State is the per-login view state. Every method returns a new value and
// never mutates the receiver, so a State can be handed out freely.
type State struct {
	User            models.User          `json:"user"`
	ActiveProjectID string               `json:"activeProjectId,omitempty"`
	Tab             Tab                  `json:"tab"`
	Chat            []models.ChatMessage `json:"chat"`
	ChatLoading     bool                 `json:"chatLoading"`
	Processing      bool                 `json:"processing"`
}

// LoggedIn starts a fresh state for u. Admins land on the admin tab with no project selected.
func LoggedIn(u models.User) State {
	st := State{User: u.Public(), Tab: TabAnalysis, Chat: []models.ChatMessage{}}
	if u.IsAdmin() {
		st.Tab = TabAdmin
	}
	return st
}

// LoggedOut is the state left behind after logout: no user, no selection.
func LoggedOut() State {
	return State{Tab: TabAnalysis, Chat: []models.ChatMessage{}}
}

// SelectProject makes id active and returns to the analysis tab. The chat is
// cleared when the project changes; a pending chat turn keeps the loading flag.
func (s State) SelectProject(id string) State {
	if id != s.ActiveProjectID {
		s.Chat = []models.ChatMessage{}
	}
	s.ActiveProjectID = id
	s.Tab = TabAnalysis
	return s
}

func (s State) SelectTab(tab Tab) (State, error) {
	if !tab.Valid() {
		return s, ErrUnknownTab
	}
	if tab == TabAdmin {
		if !s.User.IsAdmin() {
			return s, ErrAdminOnly
		}
		s.ActiveProjectID = ""
		s.Chat = []models.ChatMessage{}
	}
	s.Tab = tab
	return s, nil
}

// BeginChat records the user's message and raises the loading flag. A second
// call before the answer arrives fails with ErrBusy.
func (s State) BeginChat(message string, at time.Time) (State, error) {
	if s.ChatLoading {
		return s, ErrBusy
	}
	if s.ActiveProjectID == "" {
		return s, ErrNoActiveProject
	}
	if message == "" {
		return s, ErrEmptyMessage
	}
	s.Chat = appendMessage(s.Chat, models.ChatMessage{Role: models.ChatUser, Content: message, Timestamp: at})
	s.ChatLoading = true
	return s, nil
}

func (s State) ChatAnswered(reply string, at time.Time) State {
	s.Chat = appendMessage(s.Chat, models.ChatMessage{Role: models.ChatModel, Content: reply, Timestamp: at})
	s.ChatLoading = false
	return s
}

// ChatStale drops the loading flag for a reply whose project is no longer active.
func (s State) ChatStale() State {
	s.ChatLoading = false
	return s
}

// ChatFailed drops the loading flag and keeps the unanswered question.
func (s State) ChatFailed() State {
	s.ChatLoading = false
	return s
}

func (s State) BeginProcessing() (State, error) {
	if s.Processing {
		return s, ErrBusy
	}
	s.Processing = true
	return s, nil
}

// EndProcessing clears the upload flag; a successful upload shows the analysis tab.
func (s State) EndProcessing(succeeded bool) State {
	s.Processing = false
	if succeeded {
		s.Tab = TabAnalysis
	}
	return s
}

// PriorTurns returns the conversation before the latest message.
func (s State) PriorTurns() []models.ChatMessage {
	if len(s.Chat) == 0 {
		return nil
	}
	return s.Chat[:len(s.Chat)-1]
}

func appendMessage(chat []models.ChatMessage, m models.ChatMessage) []models.ChatMessage {
	out := make([]models.ChatMessage, len(chat), len(chat)+1)
	copy(out, chat)
	return append(out, m)
}
