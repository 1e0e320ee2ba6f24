package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"meal-planner/internal/config"
	"meal-planner/internal/planner"
	"meal-planner/internal/recipe"
	"meal-planner/internal/spoonacular"
	"meal-planner/internal/storage"
)

// App holds the application's dependencies and the weekly plan loaded at startup.
type App struct {
	cfg        *config.Config
	log        logrus.FieldLogger
	recipes    spoonacular.Client
	service    *planner.Service
	weeklyPlan planner.WeeklyPlan
}

// New creates an App and loads the weekly plan, generating it when no cached
// copy exists. An error here should abort startup.
func New(
	ctx context.Context,
	cfg *config.Config,
	client spoonacular.Client,
	store *storage.JSONStore,
	log logrus.FieldLogger,
) (*App, error) {
	service := planner.NewService(client, store, planner.Options{
		WeeklyPlanPath: cfg.WeeklyPlanPath,
		CustomPlanPath: cfg.CustomPlanPath,
		Attempts:       cfg.StartupRetries + 1,
	}, log)

	plan, err := service.GetWeeklyPlan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize weekly plan: %w", err)
	}
	log.WithField("days", len(plan)).Info("weekly plan ready")

	return &App{
		cfg:        cfg,
		log:        log,
		recipes:    client,
		service:    service,
		weeklyPlan: plan,
	}, nil
}

// WeeklyPlan returns the plan loaded at startup. It is never refreshed.
func (a *App) WeeklyPlan() planner.WeeklyPlan {
	return a.weeklyPlan
}

// Service returns the plan service.
func (a *App) Service() *planner.Service {
	return a.service
}

// Config returns the configuration the app was built with.
func (a *App) Config() *config.Config {
	return a.cfg
}

// RecipeDetail fetches the full recipe for id from the recipe service.
func (a *App) RecipeDetail(ctx context.Context, id int) (*recipe.Detail, error) {
	return a.recipes.GetRecipeDetail(ctx, id)
}

// AddMeal finds mealID in the weekly plan and appends it to day of the custom plan.
func (a *App) AddMeal(day, mealID string) (planner.Meal, error) {
	meal, err := a.service.FindMeal(a.weeklyPlan, mealID)
	if err != nil {
		return planner.Meal{}, err
	}
	if err := a.service.AddToCustomPlan(day, meal); err != nil {
		return planner.Meal{}, err
	}
	return meal, nil
}
