package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/inovalupa/govtech-analyzer/internal/logger"
	"github.com/inovalupa/govtech-analyzer/internal/models"
	"github.com/inovalupa/govtech-analyzer/internal/session"
)

const transcriptTimeLayout = "02/01/2006 15:04"

// ChatService runs the per-session conversation about the active project.
type ChatService struct {
	projects *ProjectService
	advisor  *Advisor
	sessions *session.Registry
	log      *logger.Logger
	now      func() time.Time
}

func NewChatService(projects *ProjectService, advisor *Advisor, sessions *session.Registry, log *logger.Logger) *ChatService {
	if log == nil {
		log = logger.Nop()
	}
	return &ChatService{
		projects: projects,
		advisor:  advisor,
		sessions: sessions,
		log:      log.With("component", "chat"),
		now:      time.Now,
	}
}

// Send asks the model about the active project. While one message is waiting
// for its answer any other send on the same session fails with ErrBusy and
// never reaches the model.
func (s *ChatService) Send(ctx context.Context, sid, message string) (session.State, error) {
	message = strings.TrimSpace(message)
	st, err := s.sessions.Update(sid, func(cur session.State) (session.State, error) {
		return cur.BeginChat(message, s.now())
	})
	if err != nil {
		return st, err
	}

	reply, err := s.ask(ctx, st, message)
	if err != nil {
		s.log.Error("chat turn failed", "project_id", st.ActiveProjectID, "error", err)
		failed, uerr := s.sessions.Update(sid, func(cur session.State) (session.State, error) {
			return cur.ChatFailed(), nil
		})
		if uerr != nil && !errors.Is(uerr, session.ErrNotFound) {
			s.log.Warn("could not clear chat flag", "error", uerr)
		}
		return failed, err
	}

	return s.sessions.Update(sid, func(cur session.State) (session.State, error) {
		if cur.ActiveProjectID != st.ActiveProjectID {
			s.log.Info("dropping reply for a project no longer active", "project_id", st.ActiveProjectID)
			return cur.ChatStale(), nil
		}
		return cur.ChatAnswered(reply, s.now()), nil
	})
}

func (s *ChatService) ask(ctx context.Context, st session.State, message string) (string, error) {
	p, err := s.projects.Get(st.User, st.ActiveProjectID)
	if err != nil {
		return "", err
	}
	return s.advisor.ChatWithData(ctx, st.PriorTurns(), message, p.FullText, p.Specialist)
}

// Archive stores the current conversation as a CHAT_LOG entry on the active project.
func (s *ChatService) Archive(ctx context.Context, sid string) (models.AuditEntry, error) {
	st, ok := s.sessions.Get(sid)
	if !ok {
		return models.AuditEntry{}, session.ErrNotFound
	}
	if st.ActiveProjectID == "" {
		return models.AuditEntry{}, ErrNoActiveProject
	}
	if len(st.Chat) == 0 {
		return models.AuditEntry{}, ErrEmptyChat
	}

	p, err := s.projects.Get(st.User, st.ActiveProjectID)
	if err != nil {
		return models.AuditEntry{}, err
	}
	persona := p.Specialist
	if profile, err := s.advisor.profile(p.Specialist); err == nil {
		persona = profile.DisplayName
	}

	title := "Conversa com " + persona + " - " + s.now().Format(transcriptTimeLayout)
	_, entry, err := s.projects.AppendHistory(ctx, st.User, p.ID, models.EntryChatLog, title, Transcript(st.Chat))
	if err != nil {
		return models.AuditEntry{}, err
	}
	return entry, nil
}

// Transcript renders a conversation as markdown.
func Transcript(chat []models.ChatMessage) string {
	var b strings.Builder
	for i, m := range chat {
		if i > 0 {
			b.WriteString("\n\n")
		}
		speaker := "Usuário"
		if m.Role == models.ChatModel {
			speaker = "Consultor IA"
		}
		b.WriteString("**" + speaker + "** (" + m.Timestamp.Format(transcriptTimeLayout) + "):\n")
		b.WriteString(m.Content)
	}
	return b.String()
}
