package planner

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Meal is a recipe summary as it appears in a generated plan.
type Meal struct {
	ID             int    `json:"id"`
	ImageType      string `json:"imageType,omitempty"`
	Title          string `json:"title"`
	ReadyInMinutes int    `json:"readyInMinutes"`
	Servings       int    `json:"servings"`
	SourceURL      string `json:"sourceUrl"`
}

// Validate checks the fields every meal must carry.
func (m Meal) Validate() error {
	switch {
	case m.ID == 0:
		return errors.New("meal is missing id")
	case m.Title == "":
		return fmt.Errorf("meal %d is missing title", m.ID)
	case m.ReadyInMinutes < 0:
		return fmt.Errorf("meal %d has negative readyInMinutes", m.ID)
	case m.Servings < 1:
		return fmt.Errorf("meal %d has servings < 1", m.ID)
	}
	return nil
}

// DayPlan represents the plan for a single day.
type DayPlan struct {
	Meals     []Meal             `json:"meals"`
	Nutrients map[string]float64 `json:"nutrients,omitempty"`
}

// WeeklyPlan maps day names to that day's generated meals.
type WeeklyPlan map[string]DayPlan

// Validate checks every meal of every day.
func (p WeeklyPlan) Validate() error {
	if len(p) == 0 {
		return errors.New("weekly plan has no days")
	}
	for day, dp := range p {
		for i, m := range dp.Meals {
			if err := m.Validate(); err != nil {
				return fmt.Errorf("%s meal %d: %w", day, i, err)
			}
		}
	}
	return nil
}

// CustomEntry is a snapshot of a Meal added to the custom plan.
type CustomEntry struct {
	Title          string `json:"title"`
	ID             int    `json:"id"`
	ReadyInMinutes int    `json:"readyInMinutes"`
	Servings       int    `json:"servings"`
	URL            string `json:"url"`
}

// NewCustomEntry copies the fields of m kept in the custom plan.
func NewCustomEntry(m Meal) CustomEntry {
	return CustomEntry{
		Title:          m.Title,
		ID:             m.ID,
		ReadyInMinutes: m.ReadyInMinutes,
		Servings:       m.Servings,
		URL:            m.SourceURL,
	}
}

// CustomPlan maps caller-supplied day names to user-picked meals.
type CustomPlan map[string][]CustomEntry

// Validate checks that every entry identifies a meal.
func (p CustomPlan) Validate() error {
	for day, entries := range p {
		for i, e := range entries {
			if e.ID == 0 {
				return fmt.Errorf("%s entry %d is missing id", day, i)
			}
			if e.Title == "" {
				return fmt.Errorf("%s entry %d is missing title", day, i)
			}
		}
	}
	return nil
}

// MealSummary is the projection of a Meal shown on the plan overview.
type MealSummary struct {
	ID             int    `json:"id"`
	Title          string `json:"title"`
	ReadyInMinutes int    `json:"readyInMinutes"`
	Servings       int    `json:"servings"`
}

// Project reduces the plan to day -> meal summaries.
func Project(plan WeeklyPlan) map[string][]MealSummary {
	out := make(map[string][]MealSummary, len(plan))
	for day, dp := range plan {
		summaries := make([]MealSummary, 0, len(dp.Meals))
		for _, m := range dp.Meals {
			summaries = append(summaries, MealSummary{
				ID:             m.ID,
				Title:          m.Title,
				ReadyInMinutes: m.ReadyInMinutes,
				Servings:       m.Servings,
			})
		}
		out[day] = summaries
	}
	return out
}

var weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func weekdayIndex(day string) int {
	d := strings.ToLower(strings.TrimSpace(day))
	for i, w := range weekdays {
		if d == w {
			return i
		}
	}
	return len(weekdays)
}

// SortDays orders day names Monday..Sunday (case-insensitive), followed by any
// other names alphabetically.
func SortDays[V any](m map[string]V) []string {
	days := make([]string, 0, len(m))
	for day := range m {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool {
		wi, wj := weekdayIndex(days[i]), weekdayIndex(days[j])
		if wi != wj {
			return wi < wj
		}
		return days[i] < days[j]
	})
	return days
}
