package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"meal-planner/internal/app"
	"meal-planner/internal/metrics"
	"meal-planner/internal/planner"
	"meal-planner/internal/recipe"
	"meal-planner/internal/spoonacular"
)

//go:embed templates/*.html
var templateFiles embed.FS

//go:embed static
var staticFiles embed.FS

// Server renders the meal plan pages and serves the JSON actions.
type Server struct {
	app       *app.App
	log       logrus.FieldLogger
	templates *template.Template
	static    fs.FS
}

// NewServer parses the embedded templates.
func NewServer(a *app.App, log logrus.FieldLogger) (*Server, error) {
	templates, err := template.New("").
		Funcs(template.FuncMap{"dayName": dayName}).
		ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to open static assets: %w", err)
	}
	return &Server{app: a, log: log, templates: templates, static: static}, nil
}

// Handler builds the router with its middleware chain.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.indexHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/view_recipe/{id:[0-9]+}", s.viewRecipeHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/custom_meal_plan", s.customPlanHandler).Methods(http.MethodGet, http.MethodHead)
	// Same page under the older path.
	r.HandleFunc("/display_custom_meal_plan", s.customPlanHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/add_to_custom_meal_plan/{day}/{meal_id}", s.addToCustomPlanHandler).Methods(http.MethodGet)
	r.HandleFunc("/remove_from_custom_meal_plan/{day}/{index:[0-9]+}", s.removeFromCustomPlanHandler).Methods(http.MethodGet)
	r.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)

	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(s.static))))

	var handler http.Handler = middleware.Recoverer(r)
	handler = &logHandler{log: s.log, next: handler}
	return middleware.RealIP(handler)
}

type dayView struct {
	Day   string
	Meals []planner.MealSummary
}

type customDayView struct {
	Day     string
	Entries []planner.CustomEntry
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	log := requestLog(r, s.log)
	log.Debug("serving weekly plan")

	meals := planner.Project(s.app.WeeklyPlan())
	days := make([]dayView, 0, len(meals))
	for _, day := range planner.SortDays(meals) {
		days = append(days, dayView{Day: day, Meals: meals[day]})
	}

	s.render(log, w, r, "index", map[string]interface{}{
		"title": "Weekly Meal Plan",
		"days":  days,
	})
}

func (s *Server) viewRecipeHandler(w http.ResponseWriter, r *http.Request) {
	log := requestLog(r, s.log)
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.NotFound(w, r)
		return
	}
	log = log.WithField("recipe_id", id)
	log.Debug("serving recipe page")

	detail, err := s.app.RecipeDetail(r.Context(), id)
	if err != nil {
		prefix := "Error"
		if errors.Is(err, spoonacular.ErrInvalidResponse) {
			prefix = "Error decoding JSON"
		}
		renderHTTPError(log, w, prefix, errors.Wrap(err, "could not retrieve recipe"), http.StatusInternalServerError)
		return
	}

	s.render(log, w, r, "view_recipe", map[string]interface{}{
		"title":  detail.Title,
		"recipe": recipe.NewView(*detail),
	})
}

func (s *Server) customPlanHandler(w http.ResponseWriter, r *http.Request) {
	log := requestLog(r, s.log)
	log.Debug("serving custom plan")

	plan, err := s.app.Service().CustomPlan()
	if err != nil {
		renderHTTPError(log, w, "Error", errors.Wrap(err, "could not load custom meal plan"), http.StatusInternalServerError)
		return
	}

	days := make([]customDayView, 0, len(plan))
	for _, day := range planner.SortDays(plan) {
		days = append(days, customDayView{Day: day, Entries: plan[day]})
	}

	s.render(log, w, r, "custom_meal_plan", map[string]interface{}{
		"title": "My Meal Plan",
		"days":  days,
	})
}

func (s *Server) addToCustomPlanHandler(w http.ResponseWriter, r *http.Request) {
	log := requestLog(r, s.log)
	vars := mux.Vars(r)
	day, mealID := vars["day"], vars["meal_id"]
	log = log.WithFields(logrus.Fields{"day": day, "meal_id": mealID})

	_, err := s.app.AddMeal(day, mealID)
	switch {
	case errors.Is(err, planner.ErrMealNotFound):
		writeMessage(log, w, http.StatusNotFound, "Meal not found in meal plan")
	case err != nil:
		log.WithError(err).Error("failed to add meal to custom plan")
		writeMessage(log, w, http.StatusInternalServerError, "Error adding meal to custom meal plan: "+err.Error())
	default:
		writeMessage(log, w, http.StatusOK, "Meal added to custom meal plan")
	}
}

func (s *Server) removeFromCustomPlanHandler(w http.ResponseWriter, r *http.Request) {
	log := requestLog(r, s.log)
	vars := mux.Vars(r)
	day := vars["day"]
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		writeMessage(log, w, http.StatusNotFound, "Meal not found in custom meal plan")
		return
	}
	log = log.WithFields(logrus.Fields{"day": day, "index": index})

	err = s.app.Service().RemoveFromCustomPlan(day, index)
	switch {
	case errors.Is(err, planner.ErrEntryNotFound):
		writeMessage(log, w, http.StatusNotFound, "Meal not found in custom meal plan")
	case err != nil:
		log.WithError(err).Error("failed to remove meal from custom plan")
		writeMessage(log, w, http.StatusInternalServerError, "Error removing meal from custom meal plan: "+err.Error())
	default:
		writeMessage(log, w, http.StatusOK, "Meal removed from custom meal plan")
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	cfg := s.app.Config()
	writeJSON(requestLog(r, s.log), w, http.StatusOK, metrics.GetSysHealth(cfg.WeeklyPlanPath, cfg.CustomPlanPath))
}

// render executes a template into a buffer so a failing template never
// leaves a half-written page.
func (s *Server) render(log logrus.FieldLogger, w http.ResponseWriter, r *http.Request, name string, data map[string]interface{}) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		renderHTTPError(log, w, "Error", errors.Wrapf(err, "could not render %s", name), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if r.Method == http.MethodHead {
		return
	}
	if _, err := buf.WriteTo(w); err != nil {
		log.WithError(err).Warn("failed to write response")
	}
}

func renderHTTPError(log logrus.FieldLogger, w http.ResponseWriter, prefix string, err error, code int) {
	log.WithField("error", err).Error("request error")
	http.Error(w, fmt.Sprintf("%s: %v", prefix, err), code)
}

func writeMessage(log logrus.FieldLogger, w http.ResponseWriter, code int, message string) {
	writeJSON(log, w, code, map[string]string{"message": message})
}

func writeJSON(log logrus.FieldLogger, w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("failed to encode response")
	}
}

// dayName capitalizes the first letter of a day key ("monday" -> "Monday").
func dayName(day string) string {
	r, size := utf8.DecodeRuneInString(day)
	if r == utf8.RuneError {
		return day
	}
	return string(unicode.ToUpper(r)) + day[size:]
}
