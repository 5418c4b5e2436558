package models

import (
	"time"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// BootstrapAdminID identifies the seeded administrator that can never be removed.
const BootstrapAdminID = "admin-1"

// User represents an account allowed to sign in.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
	Role     Role   `json:"role"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Public drops the credential before the user leaves the process.
func (u User) Public() User {
	u.Password = ""
	return u
}

type AuditEntryType string

const (
	EntryProposal        AuditEntryType = "PROPOSTA"
	EntrySupportDocument AuditEntryType = "DOCUMENTO_APOIO"
	EntryChatLog         AuditEntryType = "CHAT_LOG"
)

func (t AuditEntryType) Valid() bool {
	switch t {
	case EntryProposal, EntrySupportDocument, EntryChatLog:
		return true
	}
	return false
}

// AuditEntry is an immutable record of a generated artifact attached to a project.
type AuditEntry struct {
	ID        string         `json:"id"`
	Type      AuditEntryType `json:"type"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
}

// ProjectFile is one uploaded tender PDF with its extracted text.
type ProjectFile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Type       string    `json:"type"`
	UploadDate time.Time `json:"uploadDate"`
	Text       string    `json:"text"`
	StorageURL string    `json:"storageUrl,omitempty"`
}

// AnalysisResult holds the AI findings for a tender. A nil field means the
// service did not return it.
type AnalysisResult struct {
	Classification            *string  `json:"classification,omitempty"`
	Summary                   *string  `json:"summary,omitempty"`
	Keywords                  []string `json:"keywords,omitempty"`
	RequisitosTecnicos        []string `json:"requisitosTecnicos,omitempty"`
	TecnologiasSugeridas      []string `json:"tecnologiasSugeridas,omitempty"`
	SlaExigido                *string  `json:"slaExigido,omitempty"`
	RiscosContratuais         *string  `json:"riscosContratuais,omitempty"`
	FabricantesAderentes      []string `json:"fabricantesAderentes,omitempty"`
	AtestadosExigidos         []string `json:"atestadosExigidos,omitempty"`
	PontosAtencaoEspecialista *string  `json:"pontosAtencaoEspecialista,omitempty"`
}

// AnalysisProject is the audit case aggregate. The analysis fields are flattened
// into the serialized record.
type AnalysisProject struct {
	ID               string        `json:"id"`
	OwnerID          string        `json:"ownerId"`
	OwnerEmail       string        `json:"ownerEmail"`
	Name             string        `json:"name"`
	CreateDate       time.Time     `json:"createDate"`
	Specialist       string        `json:"specialist"`
	Files            []ProjectFile `json:"files"`
	FullText         string        `json:"fullText,omitempty"`
	History          []AuditEntry  `json:"history"`
	ProposalTemplate string        `json:"proposalTemplate,omitempty"`
	AnalysisResult
}

// VisibleTo applies the ownership rule: owners see their projects, admins see all.
func (p *AnalysisProject) VisibleTo(u *User) bool {
	if u == nil {
		return false
	}
	return u.IsAdmin() || p.OwnerID == u.ID
}

type ChatRole string

const (
	ChatUser  ChatRole = "user"
	ChatModel ChatRole = "model"
)

// ChatMessage lives only in the session; it is never persisted with the project.
type ChatMessage struct {
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Text dereferences an optional analysis field.
func Text(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
