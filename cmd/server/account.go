package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Simplici0/labsite/internal/accounts"
	"github.com/Simplici0/labsite/internal/pricing"
)

type credentialsViewData struct {
	baseViewData
	Email             string
	Next              string
	MinPasswordLength int
}

type savedLineView struct {
	Name      string
	Quantity  int
	UnitPrice string
	Cost      string
	Automatic bool
}

type calculationView struct {
	PublicID  string
	CreatedAt string
	Source    string
	Total     string
	Lines     []savedLineView
}

type accountViewData struct {
	baseViewData
	Query        string
	Calculations []calculationView
}

type usersViewData struct {
	baseViewData
	Users []userRowView
}

type userRowView struct {
	Email        string
	Role         string
	CreatedAt    string
	Calculations int
}

const displayTimeLayout = "02.01.2006 15:04"

func (s *server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	next := safeNext(r.URL.Query().Get("next"))
	if currentUser(r) != nil {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	s.renderTemplate(w, "login.html", credentialsViewData{baseViewData: s.base(r), Next: next})
}

func (s *server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	email := r.FormValue("email")
	next := safeNext(r.FormValue("next"))
	user, err := s.users.Authenticate(r.Context(), email, r.FormValue("password"))
	if errors.Is(err, accounts.ErrInvalidCredentials) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusUnauthorized)
		s.renderTemplate(w, "login.html", credentialsViewData{
			baseViewData: baseViewData{ErrorMessage: "Неверный email или пароль."},
			Email:        email,
			Next:         next,
		})
		return
	}
	if err != nil {
		s.logger.Error("authenticate user", zap.Error(err))
		http.Error(w, "authentication error", http.StatusInternalServerError)
		return
	}

	s.auth.setSessionCookie(w, user.ID)
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (s *server) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	next := safeNext(r.URL.Query().Get("next"))
	if currentUser(r) != nil {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	s.renderTemplate(w, "register.html", credentialsViewData{
		baseViewData:      s.base(r),
		Next:              next,
		MinPasswordLength: accounts.MinPasswordLength,
	})
}

func (s *server) handleRegisterSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	email := r.FormValue("email")
	next := safeNext(r.FormValue("next"))
	user, err := s.users.Register(r.Context(), email, r.FormValue("password"))

	var message string
	switch {
	case errors.Is(err, accounts.ErrInvalidEmail):
		message = "Укажите корректный email."
	case errors.Is(err, accounts.ErrWeakPassword):
		message = "Пароль слишком короткий."
	case errors.Is(err, accounts.ErrEmailTaken):
		message = "Пользователь с таким email уже зарегистрирован."
	case err != nil:
		s.logger.Error("register user", zap.Error(err))
		http.Error(w, "registration error", http.StatusInternalServerError)
		return
	}
	if message != "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.renderTemplate(w, "register.html", credentialsViewData{
			baseViewData:      baseViewData{ErrorMessage: message},
			Email:             email,
			Next:              next,
			MinPasswordLength: accounts.MinPasswordLength,
		})
		return
	}

	s.logger.Info("user registered", zap.Int64("user_id", user.ID))
	s.auth.setSessionCookie(w, user.ID)
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *server) handleAccount(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	calcs, err := s.users.ListCalculations(r.Context(), user.ID, query)
	if err != nil {
		s.logger.Error("list calculations", zap.Int64("user_id", user.ID), zap.Error(err))
		http.Error(w, "failed to load calculations", http.StatusInternalServerError)
		return
	}

	data := accountViewData{baseViewData: s.base(r), Query: query, Calculations: make([]calculationView, 0, len(calcs))}
	for _, c := range calcs {
		cv := calculationView{
			PublicID:  c.PublicID,
			CreatedAt: c.CreatedAt.Local().Format(displayTimeLayout),
			Source:    c.Source.Label(),
			Total:     pricing.Format(c.Total),
			Lines:     make([]savedLineView, 0, len(c.Lines)),
		}
		for _, l := range c.Lines {
			line := pricing.Line{ItemID: l.ItemID, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
			cv.Lines = append(cv.Lines, savedLineView{
				Name:      l.Name,
				Quantity:  l.Quantity,
				UnitPrice: pricing.Format(l.UnitPrice),
				Cost:      pricing.Format(line.Cost()),
				Automatic: l.Automatic,
			})
		}
		data.Calculations = append(data.Calculations, cv)
	}

	s.renderTemplate(w, "account.html", data)
}

func (s *server) handleAccountDelete(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	publicID := chi.URLParam(r, "id")
	err := s.users.DeleteCalculation(r.Context(), user.ID, publicID)
	if errors.Is(err, accounts.ErrNotFound) {
		http.Error(w, "calculation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("delete calculation", zap.Int64("user_id", user.ID), zap.Error(err))
		http.Error(w, "failed to delete calculation", http.StatusInternalServerError)
		return
	}
	redirectWithMessage(w, r, "/account", "success", "Расчёт удалён.")
}

func (s *server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.ListUsers(r.Context())
	if err != nil {
		s.logger.Error("list users", zap.Error(err))
		http.Error(w, "failed to load users", http.StatusInternalServerError)
		return
	}

	data := usersViewData{baseViewData: s.base(r), Users: make([]userRowView, 0, len(users))}
	for _, u := range users {
		data.Users = append(data.Users, userRowView{
			Email:        u.Email,
			Role:         string(u.Role),
			CreatedAt:    u.CreatedAt.Local().Format(displayTimeLayout),
			Calculations: u.Calculations,
		})
	}
	s.renderTemplate(w, "admin_users.html", data)
}
