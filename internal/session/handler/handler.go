// Package handler exposes the session API over RPC as SessionService.*.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/ambiguity"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/command"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/requirements"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/session"
	apperrors "github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/proto"
)

const commandExamples = "Exemplos: \"remova 2 e 4\", \"apaga do 2 ao 4\", \"mantém apenas 1 e 3\", \"substitua o item 2\", \"confirmo\"."

// Messages shown next to the list, by state.
var stateMessages = map[session.State]string{
	session.StateAwaitingNecessity: "Descreva a necessidade da contratação.",
	session.StateSuggested:         "Revise os requisitos sugeridos. " + commandExamples,
	session.StateUnderReview:       "Requisitos atualizados. Continue a revisão ou diga \"confirmo\".",
	session.StateConfirmed:         "Requisitos confirmados.",
}

type Handler struct {
	sessions *session.Service
	logger   *slog.Logger
}

func New(sessions *session.Service) *Handler {
	return &Handler{
		sessions: sessions,
		logger:   slog.Default().With("component", "session-handler"),
	}
}

func (h *Handler) Register(s *grpc.Server) {
	s.Register("SessionService.Start", h.Start)
	s.Register("SessionService.Suggest", h.Suggest)
	s.Register("SessionService.Review", h.Review)
	s.Register("SessionService.ListOptions", h.ListOptions)
	s.Register("SessionService.PickOption", h.PickOption)
	s.Register("SessionService.Confirm", h.Confirm)
	s.Register("SessionService.Get", h.Get)
}

// Start opens a session and, when the request carries a necessity,
// suggests requirements for it in the same call.
func (h *Handler) Start(ctx context.Context, raw json.RawMessage) (any, error) {
	var req proto.StartRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	sess, err := h.sessions.StartSession(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Necessity) == "" {
		return respond(sess, nil, nil)
	}
	ctx = logger.WithSessionID(ctx, sess.ID)
	next, err := h.sessions.SuggestRequirements(ctx, sess.ID, req.Necessity)
	return respond(next, nil, err)
}

func (h *Handler) Suggest(ctx context.Context, raw json.RawMessage) (any, error) {
	var req proto.SuggestRequest
	if err := decodeSession(raw, &req, &req.SessionID); err != nil {
		return nil, err
	}
	sess, err := h.sessions.SuggestRequirements(ctx, req.SessionID, req.Necessity)
	return respond(sess, nil, err)
}

func (h *Handler) Review(ctx context.Context, raw json.RawMessage) (any, error) {
	var req proto.ReviewRequest
	if err := decodeSession(raw, &req, &req.SessionID); err != nil {
		return nil, err
	}
	sess, cmd, err := h.sessions.ReviewRequirements(ctx, req.SessionID, req.Utterance)
	return respond(sess, cmd, err)
}

func (h *Handler) ListOptions(ctx context.Context, raw json.RawMessage) (any, error) {
	var req proto.SessionRequest
	if err := decodeSession(raw, &req, &req.SessionID); err != nil {
		return nil, err
	}
	options, err := h.sessions.ListOptions(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	resp := &proto.OptionsResponse{SessionID: req.SessionID, Options: requirements.ProtoOptions(options)}
	if len(options) > 0 {
		resp.NextAction = proto.NextActionPickOption
		resp.Message = ambiguity.OptionsMessage
	} else {
		resp.Options = []proto.Option{}
	}
	return resp, nil
}

func (h *Handler) PickOption(ctx context.Context, raw json.RawMessage) (any, error) {
	var req proto.PickOptionRequest
	if err := decodeSession(raw, &req, &req.SessionID); err != nil {
		return nil, err
	}
	sess, err := h.sessions.PickOption(ctx, req.SessionID, req.OptionID)
	return respond(sess, nil, err)
}

func (h *Handler) Confirm(ctx context.Context, raw json.RawMessage) (any, error) {
	var req proto.SessionRequest
	if err := decodeSession(raw, &req, &req.SessionID); err != nil {
		return nil, err
	}
	sess, err := h.sessions.ConfirmSession(ctx, req.SessionID)
	return respond(sess, nil, err)
}

func (h *Handler) Get(ctx context.Context, raw json.RawMessage) (any, error) {
	var req proto.SessionRequest
	if err := decodeSession(raw, &req, &req.SessionID); err != nil {
		return nil, err
	}
	sess, err := h.sessions.GetSession(ctx, req.SessionID)
	return respond(sess, nil, err)
}

// respond renders sess. A rejected operation still renders the unchanged
// session, with a clarification, and passes err through for the outcome
// code.
func respond(sess *session.Session, cmd command.Command, err error) (any, error) {
	if sess == nil {
		return nil, err
	}
	resp := &proto.SessionResponse{
		SessionID: sess.ID,
		State:     string(sess.State),
		Necessity: sess.Necessity,
		Framing:   sess.Framing,
		Revision:  sess.List.Revision,
		Items:     requirements.ProtoItems(sess.List),
		Options:   requirements.ProtoOptions(sess.Options),
		Message:   stateMessages[sess.State],
	}
	if sess.State == session.StateAmbiguous {
		resp.NextAction = proto.NextActionPickOption
		resp.Message = ambiguity.OptionsMessage
	}
	if cmd != nil {
		resp.Command = cmd.String()
	}
	if err != nil {
		resp.Clarification = clarification(err)
	}
	return resp, err
}

func clarification(err error) string {
	var appErr *apperrors.AppError
	detail := err.Error()
	if errors.As(err, &appErr) {
		detail = appErr.Message
	}
	switch apperrors.Code(err) {
	case apperrors.CodeClarification:
		return "Não entendi a instrução (" + detail + "). " + commandExamples
	case apperrors.CodeInvalidSelection:
		return "Opção inválida: " + detail + "."
	case apperrors.CodeEmptyList:
		return "A lista está vazia e não pode ser confirmada."
	case apperrors.CodeClosed:
		return "A sessão já foi confirmada e não aceita mais alterações."
	case apperrors.CodeInvalidState:
		return "Operação não permitida neste momento (" + detail + ")."
	case apperrors.CodeRetrievalFailure:
		return "Não foi possível consultar a base de conhecimento. Tente novamente."
	default:
		return detail
	}
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperrors.Newf(apperrors.ErrInvalidInput, "decoding request: %v", err)
	}
	return nil
}

func decodeSession(raw json.RawMessage, v any, sessionID *string) error {
	if err := decode(raw, v); err != nil {
		return err
	}
	if strings.TrimSpace(*sessionID) == "" {
		return apperrors.New(apperrors.ErrInvalidInput, "session_id is required")
	}
	return nil
}
