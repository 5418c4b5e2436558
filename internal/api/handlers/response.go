package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/inovalupa/govtech-analyzer/internal/logger"
	"github.com/inovalupa/govtech-analyzer/internal/services"
	"github.com/inovalupa/govtech-analyzer/internal/session"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// errorStatus maps a service error to the status and message shown to the user.
// External failures get a generic message; the detail only goes to the log.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Credenciais inválidas. Verifique seu login e senha."
	case errors.Is(err, services.ErrDuplicateEmail):
		return http.StatusConflict, "Este login/e-mail já está em uso no sistema."
	case errors.Is(err, services.ErrWeakPassword):
		return http.StatusBadRequest, "Por segurança, a senha deve conter no mínimo 6 caracteres."
	case errors.Is(err, services.ErrInvalidUser):
		return http.StatusBadRequest, "Todos os campos são obrigatórios para habilitar um novo perfil."
	case errors.Is(err, services.ErrBootstrapAdmin):
		return http.StatusForbidden, "Não é possível remover a conta master do sistema."
	case errors.Is(err, services.ErrConfirmationRequired):
		return http.StatusPreconditionRequired, "Deseja realmente remover este acesso? Esta ação é irreversível."
	case errors.Is(err, services.ErrUserNotFound):
		return http.StatusNotFound, "Usuário não encontrado."
	case errors.Is(err, services.ErrEmptyProjectName):
		return http.StatusBadRequest, "Informe o nome da análise."
	case errors.Is(err, services.ErrUnknownSpecialist):
		return http.StatusBadRequest, "Especialista desconhecido."
	case errors.Is(err, services.ErrProjectNotFound):
		return http.StatusNotFound, "Projeto não encontrado."
	case errors.Is(err, services.ErrFileNotFound):
		return http.StatusNotFound, "Arquivo não encontrado."
	case errors.Is(err, services.ErrNotArchived):
		return http.StatusNotFound, "O PDF original deste arquivo não foi arquivado."
	case errors.Is(err, services.ErrNotPDF):
		return http.StatusUnsupportedMediaType, "Apenas arquivos PDF são aceitos."
	case errors.Is(err, services.ErrUnsupportedTemplate):
		return http.StatusUnsupportedMediaType, "Falha ao carregar arquivo. Verifique o formato."
	case errors.Is(err, services.ErrInvalidEntry),
		errors.Is(err, services.ErrEmptyPrompt),
		errors.Is(err, services.ErrEmptyChat),
		errors.Is(err, session.ErrEmptyMessage),
		errors.Is(err, session.ErrUnknownTab):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, session.ErrAdminOnly):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, services.ErrBusy):
		return http.StatusConflict, "Aguarde a conclusão da solicitação em andamento."
	case errors.Is(err, services.ErrNoActiveProject):
		return http.StatusConflict, "Selecione um projeto primeiro."
	case errors.Is(err, session.ErrNotFound):
		return http.StatusUnauthorized, "Sessão encerrada."
	case errors.Is(err, services.ErrExtraction):
		return http.StatusBadGateway, "Falha ao ler o PDF enviado."
	case errors.Is(err, services.ErrAIService), errors.Is(err, services.ErrMalformedAnalysis):
		return http.StatusBadGateway, "Falha ao processar análise técnica. Verifique sua conexão."
	default:
		return http.StatusInternalServerError, "Erro interno."
	}
}

func respondError(w http.ResponseWriter, log *logger.Logger, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "status", status, "error", err)
	}
	writeError(w, status, msg)
}
