package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/grandstand-picks/grandstand/handlers"
	"github.com/grandstand-picks/grandstand/middleware"
	"github.com/grandstand-picks/grandstand/models"
)

// SetupRoutes mounts every route on the router. Admin routes require a
// token with the admin role, pick routes any authenticated user, the rest
// are public.
func SetupRoutes(
	router *chi.Mux,
	logger *slog.Logger,
	jwtSecret string,
	corsOrigins []string,
	authHandler *handlers.AuthHandler,
	tournamentHandler *handlers.TournamentHandler,
	drawHandler *handlers.DrawHandler,
	roundHandler *handlers.RoundHandler,
	matchHandler *handlers.MatchHandler,
	pickHandler *handlers.PickHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(requestLogger(logger))
	router.Use(chiMiddleware.Recoverer)

	if len(corsOrigins) == 0 {
		corsOrigins = []string{"http://*", "https://*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(jwtSecret)
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	router.Post("/auth/register", authHandler.Register)
	router.Post("/auth/login", authHandler.Login)

	router.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/users/me", authHandler.Me)
	})

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", tournamentHandler.List)
		r.Get("/{tournamentID}", tournamentHandler.Get)
		r.Get("/{tournamentID}/leaderboard", pickHandler.TournamentLeaderboard)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Get("/{tournamentID}/picks", pickHandler.GetTournamentPicks)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(adminOnly)

			r.Post("/", tournamentHandler.Create)
			r.Post("/draw", drawHandler.CommitDraw)
			r.Put("/{tournamentID}", tournamentHandler.Update)
			r.Delete("/{tournamentID}", tournamentHandler.Delete)
			r.Post("/{tournamentID}/close", tournamentHandler.Close)
			r.Post("/{tournamentID}/reopen", tournamentHandler.Reopen)
			r.Put("/{tournamentID}/active-round", tournamentHandler.SetActiveRound)
			r.Post("/{tournamentID}/logo", tournamentHandler.UploadLogo)
		})
	})

	router.Route("/rounds", func(r chi.Router) {
		r.Get("/{roundID}", roundHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Get("/{roundID}/picks", pickHandler.GetRoundPicks)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(adminOnly)

			r.Post("/{roundID}/close-submissions", roundHandler.CloseSubmissions)
			r.Post("/{roundID}/reopen-submissions", roundHandler.ReopenSubmissions)
		})
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/{matchID}", matchHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Put("/{matchID}/pick", pickHandler.Submit)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(adminOnly)

			r.Post("/{matchID}/finalize", matchHandler.Finalize)
			r.Post("/{matchID}/unfinalize", matchHandler.Unfinalize)
		})
	})

	router.Get("/leaderboard", pickHandler.OverallLeaderboard)

	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)

	router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", chiMiddleware.GetReqID(r.Context())),
			)
		})
	}
}
