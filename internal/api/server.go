// Package api exposes one draft engine to its view layer over JSON HTTP and
// a websocket snapshot stream.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/draft-auction/internal/draft"
	"github.com/jensholdgaard/draft-auction/internal/health"
)

// Engine is the draft engine surface served over HTTP.
type Engine interface {
	Snapshot() draft.Snapshot
	Subscribe(ctx context.Context) <-chan uint64

	Login(ctx context.Context, username, password string) error
	Logout(ctx context.Context)
	EnterPublicView(ctx context.Context)
	ReturnToLogin(ctx context.Context)

	StartAuction(ctx context.Context) error
	StopAuction(ctx context.Context) error
	ResetAuction(ctx context.Context) error
	NextRound(ctx context.Context) error
	RollForNextPick(ctx context.Context) (draft.Team, error)
	DraftPlayer(ctx context.Context, playerID int) error
	UndoLastDraft(ctx context.Context) error

	CreatePlayer(ctx context.Context, name string, role draft.Role) (draft.Player, error)
	UpdatePlayer(ctx context.Context, id int, name string, role draft.Role) error
	DeletePlayer(ctx context.Context, id int) error

	CreateTeamOwner(ctx context.Context, in draft.TeamOwnerInput) (draft.Team, error)
	UpdateTeamOwner(ctx context.Context, teamID int, upd draft.TeamOwnerUpdate) error
	DeleteTeamOwner(ctx context.Context, teamID int) error
}

// Server routes HTTP requests to an Engine.
type Server struct {
	eng      Engine
	health   *health.Handler
	origins  []string
	upgrader websocket.Upgrader
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewServer creates a Server. allowedOrigins applies to both CORS and the
// websocket origin check; "*" allows any origin.
func NewServer(eng Engine, h *health.Handler, allowedOrigins []string, logger *slog.Logger, tp trace.TracerProvider) *Server {
	s := &Server{
		eng:     eng,
		health:  h,
		origins: allowedOrigins,
		logger:  logger,
		tracer:  tp.Tracer("github.com/jensholdgaard/draft-auction/internal/api"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler returns the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	if s.health != nil {
		s.health.Mount(r)
	}

	r.Get("/snapshot", s.handleSnapshot)
	r.Get("/ws", s.handleWebsocket)

	r.Route("/session", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleSession(s.eng.Logout))
		r.Post("/public", s.handleSession(s.eng.EnterPublicView))
		r.Post("/return", s.handleSession(s.eng.ReturnToLogin))
	})

	r.Route("/auction", func(r chi.Router) {
		r.Post("/start", s.handleCommand("start", s.eng.StartAuction))
		r.Post("/stop", s.handleCommand("stop", s.eng.StopAuction))
		r.Post("/reset", s.handleCommand("reset", s.eng.ResetAuction))
		r.Post("/next-round", s.handleCommand("next-round", s.eng.NextRound))
		r.Post("/undo", s.handleCommand("undo", s.eng.UndoLastDraft))
		r.Post("/roll", s.handleRoll)
		r.Post("/draft/{playerID}", s.handleDraft)
	})

	r.Route("/players", func(r chi.Router) {
		r.Post("/", s.handleCreatePlayer)
		r.Put("/{id}", s.handleUpdatePlayer)
		r.Delete("/{id}", s.handleDeletePlayer)
	})

	r.Route("/teams", func(r chi.Router) {
		r.Post("/", s.handleCreateTeam)
		r.Put("/{id}", s.handleUpdateTeam)
		r.Delete("/{id}", s.handleDeleteTeam)
	})

	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
		},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.origins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
