package planner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"

	"meal-planner/internal/storage"
)

const (
	TargetCalories = 2000
	TimeFrame      = "week"
)

var (
	// ErrMealNotFound is returned when an id is absent from the weekly plan.
	ErrMealNotFound = errors.New("meal not found in meal plan")
	// ErrEntryNotFound is returned when a custom-plan position does not exist.
	ErrEntryNotFound = errors.New("meal not found in custom meal plan")
	// ErrPersistence wraps failures while writing the custom plan.
	ErrPersistence = errors.New("failed to persist custom meal plan")
)

// Generator produces a new weekly plan from the recipe service.
type Generator interface {
	GenerateMealPlan(ctx context.Context, targetCalories int, timeFrame string) (WeeklyPlan, error)
}

// Store is the document persistence the service relies on.
type Store interface {
	Load(path string, v any) error
	Save(path string, v any) error
	Read(path string, v any) error
	Update(path string, v any, fn func() error) error
}

// Options configures a Service.
type Options struct {
	WeeklyPlanPath string
	CustomPlanPath string
	// Attempts is the number of generate calls made before startup fails.
	Attempts int
	// InitialInterval is the first retry delay; later delays grow exponentially.
	InitialInterval time.Duration
}

// Service loads the weekly plan and mediates custom-plan changes.
type Service struct {
	generator Generator
	store     Store
	opts      Options
	log       logrus.FieldLogger
}

// NewService creates a new Service instance.
func NewService(generator Generator, store Store, opts Options, log logrus.FieldLogger) *Service {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 500 * time.Millisecond
	}
	return &Service{
		generator: generator,
		store:     store,
		opts:      opts,
		log:       log,
	}
}

// GetWeeklyPlan returns the cached plan, generating and caching a new one
// when the cache file is absent. A malformed cache file is returned as a
// *storage.ParseError and is not regenerated.
func (s *Service) GetWeeklyPlan(ctx context.Context) (WeeklyPlan, error) {
	var plan WeeklyPlan
	err := s.store.Load(s.opts.WeeklyPlanPath, &plan)
	if err == nil {
		s.log.WithField("path", s.opts.WeeklyPlanPath).Info("loaded cached weekly plan")
		return plan, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to load weekly plan: %w", err)
	}

	s.log.WithField("path", s.opts.WeeklyPlanPath).Info("no cached weekly plan, generating a new one")

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = s.opts.InitialInterval

	attempt := 0
	plan, err = backoff.Retry(ctx, func() (WeeklyPlan, error) {
		attempt++
		return s.generator.GenerateMealPlan(ctx, TargetCalories, TimeFrame)
	},
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(s.opts.Attempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.log.WithError(err).WithFields(logrus.Fields{
				"attempt":  attempt,
				"retry_in": next.String(),
			}).Warn("weekly plan generation failed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate weekly plan after %d attempts: %w", attempt, err)
	}

	if err := s.store.Save(s.opts.WeeklyPlanPath, plan); err != nil {
		return nil, fmt.Errorf("failed to cache weekly plan: %w", err)
	}
	return plan, nil
}

// FindMeal looks up a meal by id given as a string. Surrounding whitespace is
// ignored; a non-numeric id never matches.
func (s *Service) FindMeal(plan WeeklyPlan, mealID string) (Meal, error) {
	id, err := strconv.Atoi(strings.TrimSpace(mealID))
	if err != nil {
		return Meal{}, ErrMealNotFound
	}
	return s.FindMealByID(plan, id)
}

// FindMealByID returns the first meal with the given id, scanning days in
// SortDays order and each day's meals in list order.
func (s *Service) FindMealByID(plan WeeklyPlan, id int) (Meal, error) {
	for _, day := range SortDays(plan) {
		for _, m := range plan[day].Meals {
			if m.ID == id {
				return m, nil
			}
		}
	}
	return Meal{}, ErrMealNotFound
}

// CustomPlan loads the custom plan, returning an empty plan when the file
// does not exist yet.
func (s *Service) CustomPlan() (CustomPlan, error) {
	plan := CustomPlan{}
	if err := s.store.Read(s.opts.CustomPlanPath, &plan); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return CustomPlan{}, nil
		}
		return nil, fmt.Errorf("failed to load custom meal plan: %w", err)
	}
	return plan, nil
}

// AddToCustomPlan appends a snapshot of meal to day and rewrites the custom plan.
func (s *Service) AddToCustomPlan(day string, meal Meal) error {
	plan := CustomPlan{}
	err := s.store.Update(s.opts.CustomPlanPath, &plan, func() error {
		if plan == nil {
			plan = CustomPlan{}
		}
		plan[day] = append(plan[day], NewCustomEntry(meal))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.log.WithFields(logrus.Fields{"day": day, "meal_id": meal.ID}).Info("added meal to custom plan")
	return nil
}

// RemoveFromCustomPlan deletes the entry at index for day. The day is dropped
// once it has no entries left.
func (s *Service) RemoveFromCustomPlan(day string, index int) error {
	plan := CustomPlan{}
	err := s.store.Update(s.opts.CustomPlanPath, &plan, func() error {
		entries, ok := plan[day]
		if !ok || index < 0 || index >= len(entries) {
			return ErrEntryNotFound
		}
		entries = append(entries[:index:index], entries[index+1:]...)
		if len(entries) == 0 {
			delete(plan, day)
		} else {
			plan[day] = entries
		}
		return nil
	})
	if errors.Is(err, ErrEntryNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.log.WithFields(logrus.Fields{"day": day, "index": index}).Info("removed meal from custom plan")
	return nil
}
