package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/draft-auction/internal/draft"
	"github.com/jensholdgaard/draft-auction/internal/telemetry"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type playerRequest struct {
	Name string     `json:"name"`
	Role draft.Role `json:"role"`
}

var errBadRequest = errors.New("bad request")

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Snapshot())
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if err := s.eng.Login(r.Context(), req.Username, req.Password); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.eng.Snapshot())
}

func (s *Server) handleSession(op func(context.Context)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op(r.Context())
		writeJSON(w, http.StatusOK, s.eng.Snapshot())
	}
}

func (s *Server) handleCommand(name string, op func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := s.tracer.Start(r.Context(), "api.auction",
			trace.WithAttributes(attribute.String("command", name)),
		)
		defer span.End()

		if err := op(ctx); err != nil {
			s.writeError(ctx, w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.eng.Snapshot())
	}
}

func (s *Server) handleRoll(w http.ResponseWriter, r *http.Request) {
	team, err := s.eng.RollForNextPick(r.Context())
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, team)
}

func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "playerID")
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if err := s.eng.DraftPlayer(r.Context(), id); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.eng.Snapshot())
}

func (s *Server) handleCreatePlayer(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if err := decode(r, &req); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	p, err := s.eng.CreatePlayer(r.Context(), req.Name, req.Role)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdatePlayer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	var req playerRequest
	if err := decode(r, &req); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if err := s.eng.UpdatePlayer(r.Context(), id, req.Name, req.Role); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeletePlayer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if err := s.eng.DeletePlayer(r.Context(), id); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req draft.TeamOwnerInput
	if err := decode(r, &req); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	team, err := s.eng.CreateTeamOwner(r.Context(), req)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

func (s *Server) handleUpdateTeam(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	var req draft.TeamOwnerUpdate
	if err := decode(r, &req); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if err := s.eng.UpdateTeamOwner(r.Context(), id, req); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if err := s.eng.DeleteTeamOwner(r.Context(), id); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, draft.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, draft.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, draft.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, draft.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, draft.ErrNotYourTurn),
		errors.Is(err, draft.ErrNoPickingTeam),
		errors.Is(err, draft.ErrRoundIncomplete),
		errors.Is(err, draft.ErrRollUnavailable),
		errors.Is(err, draft.ErrNothingToUndo),
		errors.Is(err, draft.ErrPlayerUnavailable),
		errors.Is(err, draft.ErrUsernameTaken),
		errors.Is(err, draft.ErrWrongPhase):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		telemetry.LogWithTrace(ctx, s.logger).ErrorContext(ctx, "request failed", slog.Any("error", err))
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decoding body: %v", errBadRequest, err)
	}
	return nil
}

func pathID(r *http.Request, key string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, key))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s", errBadRequest, key)
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
