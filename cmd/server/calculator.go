package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Simplici0/labsite/internal/calculator"
	"github.com/Simplici0/labsite/internal/catalog"
	"github.com/Simplici0/labsite/internal/pricing"
	"github.com/Simplici0/labsite/internal/sessions"
)

const calculatorCookieName = "labsite_calc"

const automaticPreparationMessage = "Изготовление образцов добавляется в расчёт автоматически."

type itemView struct {
	ID         string
	Name       string
	Price      string
	Method     string
	Sample     string
	Selected   bool
	Applicable bool
	Automatic  bool
}

type groupView struct {
	Title       string
	Preparatory bool
	Items       []itemView
}

type sourceOption struct {
	Code   string
	Label  string
	Active bool
}

type lineView struct {
	ItemID     string
	Name       string
	Quantity   int
	UnitPrice  string
	Cost       string
	Applicable bool
}

type statusView struct {
	Class   string
	Message string
}

type servicesViewData struct {
	baseViewData
	Groups []groupView
}

type calculatorViewData struct {
	baseViewData
	Sources         []sourceOption
	Groups          []groupView
	Lines           []lineView
	Derived         *lineView
	RequiredSamples int
	Total           string
	Status          *statusView
	StatusTTLMillis int64
}

func (s *server) handleServices(w http.ResponseWriter, r *http.Request) {
	s.renderTemplate(w, "services.html", servicesViewData{
		baseViewData: s.base(r),
		Groups:       s.groupViews(nil),
	})
}

func (s *server) handleCalculator(w http.ResponseWriter, r *http.Request) {
	id, sess, err := s.loadCalculator(r)
	if err != nil {
		s.logger.Error("load calculator session", zap.Error(err))
		http.Error(w, "failed to load calculator", http.StatusInternalServerError)
		return
	}
	s.setCalculatorCookie(w, id)

	data := calculatorViewData{
		baseViewData:    s.base(r),
		Groups:          s.groupViews(sess),
		RequiredSamples: sess.RequiredSamples(),
		Total:           pricing.Format(sess.Total()),
		StatusTTLMillis: s.statusTTL.Milliseconds(),
	}
	for _, src := range catalog.Sources {
		data.Sources = append(data.Sources, sourceOption{Code: src.String(), Label: src.Label(), Active: src == sess.Source()})
	}

	result := sess.Result()
	for _, lc := range result.Breakdown.Lines {
		data.Lines = append(data.Lines, s.lineView(lc, sess))
	}
	if d := result.Breakdown.Derived; d != nil {
		v := s.lineView(*d, sess)
		v.Name += calculator.AutomaticSuffix
		data.Derived = &v
	}

	switch st := sess.Status(s.now()); st.Kind {
	case calculator.StatusSaved:
		data.Status = &statusView{Class: "success", Message: st.Message}
	case calculator.StatusFailed:
		data.Status = &statusView{Class: "error", Message: st.Message}
	}

	s.renderTemplate(w, "calculator.html", data)
}

func (s *server) handleCalculatorAdd(w http.ResponseWriter, r *http.Request) {
	s.mutateCalculator(w, r, "add", func(sess *calculator.Session) string {
		itemID := r.FormValue("item_id")
		if _, ok := s.catalog.FindByID(itemID); !ok {
			return "Услуга не найдена."
		}
		if sess.Automatic(itemID) {
			return automaticPreparationMessage
		}
		if !sess.Applicable(itemID) {
			return "Услуга недоступна для выбранного типа материала."
		}
		sess.Add(itemID)
		return ""
	})
}

func (s *server) handleCalculatorRemove(w http.ResponseWriter, r *http.Request) {
	s.mutateCalculator(w, r, "remove", func(sess *calculator.Session) string {
		sess.Remove(r.FormValue("item_id"))
		return ""
	})
}

func (s *server) handleCalculatorQuantity(w http.ResponseWriter, r *http.Request) {
	s.mutateCalculator(w, r, "quantity", func(sess *calculator.Session) string {
		q, err := strconv.ParseFloat(strings.TrimSpace(r.FormValue("quantity")), 64)
		if err != nil {
			return "Количество должно быть числом."
		}
		sess.SetQuantity(r.FormValue("item_id"), q)
		return ""
	})
}

func (s *server) handleCalculatorSource(w http.ResponseWriter, r *http.Request) {
	s.mutateCalculator(w, r, "source", func(sess *calculator.Session) string {
		src, err := catalog.ParseMaterialSource(r.FormValue("source"))
		if err != nil {
			return "Неизвестный тип материала."
		}
		sess.SetSource(src)
		return ""
	})
}

func (s *server) handleCalculatorClear(w http.ResponseWriter, r *http.Request) {
	s.metrics.CalculatorAction("clear")
	if cookie, err := r.Cookie(calculatorCookieName); err == nil && sessions.ValidID(cookie.Value) {
		if err := s.sessions.Delete(r.Context(), cookie.Value); err != nil {
			s.logger.Error("delete calculator session", zap.Error(err))
			http.Error(w, "failed to clear calculator", http.StatusInternalServerError)
			return
		}
	}
	http.Redirect(w, r, "/calculator", http.StatusSeeOther)
}

func (s *server) handleCalculatorSave(w http.ResponseWriter, r *http.Request) {
	id, sess, err := s.loadCalculator(r)
	if err != nil {
		s.logger.Error("load calculator session", zap.Error(err))
		http.Error(w, "failed to load calculator", http.StatusInternalServerError)
		return
	}

	bridge := &accountBridge{users: s.users, user: currentUser(r)}
	outcome, err := sess.Save(r.Context(), bridge, "/calculator", s.now())
	s.metrics.SaveOutcome(outcome.String())

	switch outcome {
	case calculator.SaveAuthRequired:
		s.setCalculatorCookie(w, id)
		http.Redirect(w, r, bridge.redirect, http.StatusSeeOther)
		return
	case calculator.SaveEmpty:
		redirectWithMessage(w, r, "/calculator", "error", "Добавьте в расчёт хотя бы одну услугу.")
		return
	case calculator.SaveFailed:
		s.logger.Error("save calculation", zap.Int64("user_id", bridge.user.ID), zap.Error(err))
	}

	if err := s.sessions.Save(r.Context(), id, sess.State()); err != nil {
		s.logger.Error("store calculator session", zap.Error(err))
		http.Error(w, "failed to store calculator", http.StatusInternalServerError)
		return
	}
	s.setCalculatorCookie(w, id)
	http.Redirect(w, r, "/calculator", http.StatusSeeOther)
}

// mutateCalculator loads the session, applies one change and stores the result.
// apply returns a message for the user when the change was refused.
func (s *server) mutateCalculator(w http.ResponseWriter, r *http.Request, action string, apply func(*calculator.Session) string) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	id, sess, err := s.loadCalculator(r)
	if err != nil {
		s.logger.Error("load calculator session", zap.Error(err))
		http.Error(w, "failed to load calculator", http.StatusInternalServerError)
		return
	}

	if msg := apply(sess); msg != "" {
		s.setCalculatorCookie(w, id)
		redirectWithMessage(w, r, "/calculator", "error", msg)
		return
	}
	s.metrics.CalculatorAction(action)

	if err := s.sessions.Save(r.Context(), id, sess.State()); err != nil {
		s.logger.Error("store calculator session", zap.Error(err))
		http.Error(w, "failed to store calculator", http.StatusInternalServerError)
		return
	}
	s.setCalculatorCookie(w, id)
	http.Redirect(w, r, "/calculator", http.StatusSeeOther)
}

// loadCalculator returns the visitor's calculator, starting a new one when the cookie is
// missing, malformed or points to an expired session.
func (s *server) loadCalculator(r *http.Request) (string, *calculator.Session, error) {
	cookie, err := r.Cookie(calculatorCookieName)
	if err != nil || !sessions.ValidID(cookie.Value) {
		return sessions.NewID(), calculator.NewSession(s.catalog, s.statusTTL), nil
	}

	st, err := s.sessions.Load(r.Context(), cookie.Value)
	if errors.Is(err, sessions.ErrNotFound) {
		return cookie.Value, calculator.NewSession(s.catalog, s.statusTTL), nil
	}
	if err != nil {
		return "", nil, err
	}
	return cookie.Value, calculator.Restore(s.catalog, st, s.statusTTL), nil
}

func (s *server) setCalculatorCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     calculatorCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// groupViews renders the catalog. With a session the items carry selection and
// applicability for its material source.
func (s *server) groupViews(sess *calculator.Session) []groupView {
	groups := s.catalog.Groups()
	views := make([]groupView, 0, len(groups))
	for _, g := range groups {
		gv := groupView{Title: g.Title, Preparatory: g.Preparatory, Items: make([]itemView, 0, len(g.Items))}
		for _, it := range g.Items {
			iv := itemView{
				ID:         it.ID,
				Name:       it.Name,
				Price:      pricing.Format(it.UnitPrice),
				Method:     it.MethodDescription,
				Sample:     it.SampleDescription,
				Applicable: true,
			}
			if sess != nil {
				iv.Selected = sess.Selected(it.ID)
				iv.Applicable = catalog.IsApplicable(it, sess.Source())
				iv.Automatic = sess.Automatic(it.ID)
			}
			gv.Items = append(gv.Items, iv)
		}
		views = append(views, gv)
	}
	return views
}

func (s *server) lineView(lc pricing.LineCost, sess *calculator.Session) lineView {
	v := lineView{
		ItemID:     lc.ItemID,
		Name:       lc.ItemID,
		Quantity:   lc.Quantity,
		UnitPrice:  pricing.Format(lc.UnitPrice),
		Cost:       pricing.Format(lc.Cost),
		Applicable: true,
	}
	if it, ok := s.catalog.FindByID(lc.ItemID); ok {
		v.Name = it.Name
		v.Applicable = catalog.IsApplicable(it, sess.Source())
	}
	return v
}
