package main

import (
	"context"
	"errors"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Simplici0/labsite/internal/accounts"
	"github.com/Simplici0/labsite/internal/catalog"
	"github.com/Simplici0/labsite/internal/config"
	"github.com/Simplici0/labsite/internal/contact"
	"github.com/Simplici0/labsite/internal/db"
	"github.com/Simplici0/labsite/internal/knowledge"
	"github.com/Simplici0/labsite/internal/logger"
	"github.com/Simplici0/labsite/internal/metrics"
	"github.com/Simplici0/labsite/internal/migrations"
	"github.com/Simplici0/labsite/internal/seed"
	"github.com/Simplici0/labsite/internal/sessions"
	"github.com/Simplici0/labsite/web"
)

type server struct {
	auth      *authService
	users     *accounts.Store
	catalog   *catalog.Index
	sessions  sessions.Store
	contact   *contact.Service
	metrics   *metrics.Metrics
	logger    *zap.Logger
	statusTTL time.Duration
	now       func() time.Time
}

type baseViewData struct {
	CurrentUser    *accounts.User
	ErrorMessage   string
	SuccessMessage string
}

type pageViewData struct {
	baseViewData
	CatalogVersion string
}

type knowledgeViewData struct {
	baseViewData
	Query     string
	Documents []knowledge.Document
}

type contactViewData struct {
	baseViewData
	Form   contact.Request
	Errors map[string]string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zapLogger, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	cfg.Warn(zapLogger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, zapLogger); err != nil {
		zapLogger.Fatal("server stopped with error", zap.Error(err))
	}
	zapLogger.Info("server shutdown gracefully")
}

func run(ctx context.Context, cfg config.Config, zapLogger *zap.Logger) error {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := migrations.Up(database); err != nil {
		return err
	}
	version, err := migrations.Version(database)
	if err != nil {
		return err
	}
	zapLogger.Info("database ready", zap.String("path", cfg.DBPath), zap.Int64("schema_version", version))

	users := accounts.NewStore(database)
	stats, err := seed.Run(ctx, users, seed.Config{AdminEmail: cfg.AdminEmail, AdminPassword: cfg.AdminPassword})
	if err != nil {
		return err
	}
	zapLogger.Info("seed finished", zap.Int("inserts", stats.Inserts), zap.Int("updates", stats.Updates))

	index, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}
	zapLogger.Info("catalog loaded", zap.String("version", index.Version()), zap.Int("items", len(index.AllItems())))

	var store sessions.Store
	if cfg.RedisAddr != "" {
		redisStore, err := sessions.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SessionTTL)
		if err != nil {
			return err
		}
		defer redisStore.Close()
		store = redisStore
		zapLogger.Info("calculator sessions stored in redis", zap.String("addr", cfg.RedisAddr))
	} else {
		store = sessions.NewMemoryStore(cfg.SessionTTL)
		zapLogger.Info("calculator sessions stored in memory")
	}

	secret := cfg.SessionSecret
	if secret == "" {
		// Sessions do not survive a restart without a configured secret.
		secret = uuid.NewString()
	}

	srv := &server{
		auth:      newAuthService(secret),
		users:     users,
		catalog:   index,
		sessions:  store,
		contact:   contact.NewService(database, cfg.ContactEndpoint, cfg.ContactTimeout, cfg.ContactMaxRetries, zapLogger.Named("contact")),
		metrics:   metrics.New(),
		logger:    zapLogger,
		statusTTL: cfg.StatusTTL,
		now:       time.Now,
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info("listening", zap.String("addr", httpServer.Addr), zap.String("env", cfg.Env))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func loadCatalog(path string) (*catalog.Index, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(path)
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.loadUser)

	static, _ := fs.Sub(web.Static, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	r.Handle("/metrics", s.metrics.Handler())

	r.Get("/", s.handleHome)
	r.Get("/about", s.handleAbout)
	r.Get("/services", s.handleServices)
	r.Get("/knowledge", s.handleKnowledge)
	r.Get("/contact", s.handleContactForm)
	r.Post("/contact", s.handleContactSubmit)

	r.Get("/calculator", s.handleCalculator)
	r.Post("/calculator/add", s.handleCalculatorAdd)
	r.Post("/calculator/remove", s.handleCalculatorRemove)
	r.Post("/calculator/quantity", s.handleCalculatorQuantity)
	r.Post("/calculator/source", s.handleCalculatorSource)
	r.Post("/calculator/clear", s.handleCalculatorClear)
	r.Post("/calculator/save", s.handleCalculatorSave)

	r.Get("/login", s.handleLoginForm)
	r.Post("/login", s.handleLoginSubmit)
	r.Get("/register", s.handleRegisterForm)
	r.Post("/register", s.handleRegisterSubmit)
	r.Post("/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireUser)
		r.Get("/account", s.handleAccount)
		r.Post("/account/calculations/{id}/delete", s.handleAccountDelete)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Get("/admin/users", s.handleAdminUsers)
	})

	return r
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *server) base(r *http.Request) baseViewData {
	q := r.URL.Query()
	return baseViewData{
		CurrentUser:    currentUser(r),
		ErrorMessage:   q.Get("error"),
		SuccessMessage: q.Get("success"),
	}
}

func (s *server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.renderTemplate(w, "home.html", pageViewData{baseViewData: s.base(r)})
}

func (s *server) handleAbout(w http.ResponseWriter, r *http.Request) {
	s.renderTemplate(w, "about.html", pageViewData{baseViewData: s.base(r), CatalogVersion: s.catalog.Version()})
}

func (s *server) handleKnowledge(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	s.renderTemplate(w, "knowledge.html", knowledgeViewData{
		baseViewData: s.base(r),
		Query:        query,
		Documents:    knowledge.Search(knowledge.Documents, query),
	})
}

func (s *server) handleContactForm(w http.ResponseWriter, r *http.Request) {
	s.renderTemplate(w, "contact.html", contactViewData{baseViewData: s.base(r)})
}

func (s *server) handleContactSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	req := contact.Request{
		Name:    r.FormValue("name"),
		Email:   r.FormValue("email"),
		Message: r.FormValue("message"),
	}
	err := s.contact.Submit(r.Context(), req)

	var verr *contact.ValidationError
	switch {
	case errors.As(err, &verr):
		s.metrics.ContactRequest("invalid")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.renderTemplate(w, "contact.html", contactViewData{
			baseViewData: baseViewData{CurrentUser: currentUser(r), ErrorMessage: "Проверьте заполнение формы."},
			Form:         req,
			Errors:       verr.Fields,
		})
		return
	case err != nil:
		s.metrics.ContactRequest("failed")
		s.logger.Error("submit contact request", zap.Error(err))
		redirectWithMessage(w, r, "/contact", "error", "Не удалось отправить сообщение. Позвоните нам или попробуйте позже.")
		return
	}

	s.metrics.ContactRequest("accepted")
	redirectWithMessage(w, r, "/contact", "success", "Сообщение отправлено. Мы свяжемся с вами.")
}

func redirectWithMessage(w http.ResponseWriter, r *http.Request, path, kind, message string) {
	http.Redirect(w, r, path+"?"+kind+"="+url.QueryEscape(message), http.StatusSeeOther)
}

func (s *server) renderTemplate(w http.ResponseWriter, page string, data any) {
	templates, err := template.ParseFS(web.Templates,
		"templates/layout.html",
		"templates/"+page,
	)
	if err != nil {
		s.logger.Error("parse template", zap.String("page", page), zap.Error(err))
		http.Error(w, "failed to parse template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, "layout.html", data); err != nil {
		s.logger.Error("render template", zap.String("page", page), zap.Error(err))
		http.Error(w, "failed to render template", http.StatusInternalServerError)
		return
	}
}
