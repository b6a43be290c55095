package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/examforge/examforge/internal/api/http"
	auth "github.com/examforge/examforge/internal/auth/middleware"
	"github.com/examforge/examforge/internal/config"
	"github.com/examforge/examforge/internal/db"
	"github.com/examforge/examforge/internal/exam"
	"github.com/examforge/examforge/internal/question"
	"github.com/examforge/examforge/internal/rbac"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	questions := question.NewSQLStore(dbh)
	exams := exam.NewSQLStore(dbh)
	events := exam.NewEventRepo(dbh)
	svc := exam.NewService(exams, questions, events)
	checker := rbac.NewChecker(nil)

	// --- Auth ---
	secret := cfg.AuthSecret
	if secret == "" {
		secret = randomSecret()
		log.Printf("AUTH_SECRET not set; using a per-process secret (tokens reset on restart)")
	}
	authSvc := auth.NewAuthService(secret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh, cfg.AdminUser, cfg.AdminPassHash))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(auth.AttachRoleFromDB(dbh, true))

		// Authoring (admin)
		pr.With(checker.Require("bank:write")).
			Post("/banks", api.CreateBankHandler(questions))
		pr.With(checker.Require("bank:view")).
			Get("/banks", api.ListBanksHandler(questions))
		pr.With(checker.Require("bank:view")).
			Get("/banks/{bankID}", api.GetBankHandler(questions))
		pr.With(checker.Require("bank:write")).
			Delete("/banks/{bankID}", api.DeleteBankHandler(questions))
		pr.With(checker.Require("bank:write")).
			Post("/banks/import", api.ImportBankHandler(questions))
		pr.With(checker.Require("bank:write")).
			Post("/banks/{bankID}/import", api.ImportBankHandler(questions))
		pr.With(checker.Require("bank:view")).
			Get("/banks/{bankID}/export", api.ExportBankHandler(questions))

		pr.With(checker.Require("question:write")).
			Post("/banks/{bankID}/questions", api.PutQuestionHandler(questions))
		pr.With(checker.Require("question:view")).
			Get("/banks/{bankID}/questions", api.ListQuestionsHandler(questions))
		pr.With(checker.Require("question:view")).
			Get("/questions/{questionID}", api.GetQuestionHandler(questions))
		pr.With(checker.Require("question:write")).
			Put("/questions/{questionID}", api.UpdateQuestionHandler(questions))
		pr.With(checker.Require("question:write")).
			Delete("/questions/{questionID}", api.DeleteQuestionHandler(questions))
		pr.With(checker.Require("question:preview")).
			Post("/questions/{questionID}/preview", api.PreviewQuestionHandler(questions))

		// Exams
		pr.With(checker.Require("exam:create")).
			Post("/exams", api.PutExamHandler(exams))
		pr.With(checker.Require("exam:view")).
			Get("/exams", api.ListExamsHandler(exams))
		pr.With(checker.Require("exam:view")).
			Get("/exams/{examID}", api.GetExamHandler(exams))
		pr.With(checker.Require("exam:delete")).
			Delete("/exams/{examID}", api.DeleteExamHandler(exams))

		// Taking flow
		pr.With(checker.Require("attempt:create")).
			Post("/attempts", api.StartAttemptHandler(svc))
		pr.With(checker.Require("attempt:view-own", "attempt:view-all")).
			Get("/attempts", api.ListAttemptsHandler(exams, checker))
		pr.With(checker.Require("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(svc))
		pr.With(checker.Require("attempt:save")).
			Post("/attempts/{attemptID}/responses", api.SaveAnswerHandler(svc))
		pr.With(checker.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", api.SubmitAttemptHandler(svc))

		// Graded results
		pr.With(checker.Require("attempt:view-own", "attempt:view-all")).
			Get("/results", api.ListResultsHandler(exams, checker))
		pr.With(checker.Require("attempt:view-own", "attempt:view-all")).
			Get("/results/{attemptID}", api.ResultsHandler(svc, checker))
		pr.With(checker.Require("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}/results", api.ResultsHandler(svc, checker))

		// Users (admin)
		pr.With(checker.Require("users:bulk_upsert")).
			Post("/users/bulk", api.BulkUpsertUsersHandler(dbh))
		pr.With(checker.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.With(checker.Require("users:update_role")).
			Patch("/users/{userID}/role", api.AdminUpdateUserRoleHandler(dbh))
		pr.With(checker.Require("user:change_password")).
			Post("/users/change-password", api.ChangePasswordHandler(dbh))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("generate secret: %v", err)
	}
	return hex.EncodeToString(buf)
}
