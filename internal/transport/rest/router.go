package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/nonprofit-tech/casevault/internal/auth"
	"github.com/nonprofit-tech/casevault/internal/client"
	"github.com/nonprofit-tech/casevault/internal/export"
	"github.com/nonprofit-tech/casevault/internal/program"
	"github.com/nonprofit-tech/casevault/internal/transport/middleware"
	"github.com/nonprofit-tech/casevault/internal/transport/swagger"
	"github.com/nonprofit-tech/casevault/internal/user"
)

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, authHandler *auth.Handler, userHandler *user.Handler, clientHandler *client.Handler, programHandler *program.Handler, exportHandler *export.Handler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if authHandler != nil {
			r.Route("/auth", func(sr chi.Router) {
				sr.Post("/login", authHandler.Login)
				sr.Post("/refresh", authHandler.RefreshToken)
				sr.Post("/logout", authHandler.Logout)
			})

			r.Group(func(pr chi.Router) {
				pr.Use(authHandler.AuthMiddleware)

				if userHandler != nil {
					pr.Get("/users/me", userHandler.GetCurrentUser)
				}

				if programHandler != nil {
					pr.Route("/programs", func(gr chi.Router) {
						gr.Get("/", programHandler.ListPrograms)
						gr.Post("/", programHandler.CreateProgram)
						gr.Get("/{id}", programHandler.GetProgram)
						gr.Patch("/{id}", programHandler.UpdateProgram)
					})
				}

				if clientHandler != nil {
					pr.Route("/clients", func(cr chi.Router) {
						cr.Post("/", clientHandler.CreateClient)
						cr.Get("/{id}", clientHandler.GetClient)
						cr.Patch("/{id}", clientHandler.UpdateClient)
						cr.Get("/{id}/programs", clientHandler.ListClientPrograms)
						cr.Put("/{id}/fields", clientHandler.SetClientField)
					})
				}

				if exportHandler != nil {
					pr.Route("/exports", func(er chi.Router) {
						er.Post("/", exportHandler.CreateExport)
						er.Get("/{id}/download", exportHandler.DownloadExport)
						er.Post("/{id}/revoke", exportHandler.RevokeExport)
					})
				}
			})
		}
	})
}
