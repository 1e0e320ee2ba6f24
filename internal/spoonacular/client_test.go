package spoonacular

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"meal-planner/internal/config"
)

const weekJSON = `{
	"week": {
		"monday": {
			"meals": [
				{"id": 12345, "imageType": "jpg", "title": "Soup", "readyInMinutes": 20, "servings": 2, "sourceUrl": "http://x"}
			],
			"nutrients": {"calories": 1999.5, "protein": 80}
		},
		"tuesday": {
			"meals": [
				{"id": 678, "title": "Pasta", "readyInMinutes": 30, "servings": 4, "sourceUrl": "http://y"}
			]
		}
	}
}`

func newTestClient(url string) Client {
	return NewClient(&config.Config{
		SpoonacularBaseURL: url,
		SpoonacularAPIKey:  "test_key",
		UpstreamTimeout:    2 * time.Second,
	})
}

func TestGenerateMealPlan(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/mealplanner/generate" {
				t.Errorf("Expected path '/mealplanner/generate', got '%s'", r.URL.Path)
			}
			q := r.URL.Query()
			if q.Get("apiKey") != "test_key" {
				t.Errorf("Expected apiKey 'test_key', got '%s'", q.Get("apiKey"))
			}
			if q.Get("targetCalories") != "2000" {
				t.Errorf("Expected targetCalories '2000', got '%s'", q.Get("targetCalories"))
			}
			if q.Get("timeFrame") != "week" {
				t.Errorf("Expected timeFrame 'week', got '%s'", q.Get("timeFrame"))
			}
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, weekJSON)
		}))
		defer server.Close()

		week, err := newTestClient(server.URL).GenerateMealPlan(ctx, 2000, "week")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(week) != 2 {
			t.Fatalf("Expected 2 days, got %d", len(week))
		}
		meal := week["monday"].Meals[0]
		if meal.ID != 12345 || meal.Title != "Soup" || meal.SourceURL != "http://x" {
			t.Errorf("Unexpected monday meal: %+v", meal)
		}
		if week["monday"].Nutrients["calories"] != 1999.5 {
			t.Errorf("Expected nutrients to be decoded, got %v", week["monday"].Nutrients)
		}
	})

	t.Run("ServerError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).GenerateMealPlan(ctx, 2000, "week")
		if !errors.Is(err, ErrUpstreamUnavailable) {
			t.Fatalf("Expected ErrUpstreamUnavailable, got %v", err)
		}
	})

	t.Run("MissingWeek", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, `{"status": "failure", "code": 402}`)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).GenerateMealPlan(ctx, 2000, "week")
		if !errors.Is(err, ErrInvalidResponse) {
			t.Fatalf("Expected ErrInvalidResponse, got %v", err)
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		defer server.Close()
		defer close(release)

		client := NewClient(&config.Config{
			SpoonacularBaseURL: server.URL,
			UpstreamTimeout:    50 * time.Millisecond,
		})
		_, err := client.GenerateMealPlan(ctx, 2000, "week")
		if !errors.Is(err, ErrUpstreamUnavailable) {
			t.Fatalf("Expected ErrUpstreamUnavailable on timeout, got %v", err)
		}
		if strings.Contains(err.Error(), "apiKey") {
			t.Errorf("Expected the API key to be redacted, got %v", err)
		}
	})
}

func TestGetRecipeDetail(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/recipes/12345/information" {
				t.Errorf("Expected path '/recipes/12345/information', got '%s'", r.URL.Path)
			}
			if r.URL.Query().Get("apiKey") != "test_key" {
				t.Errorf("Expected apiKey 'test_key', got '%s'", r.URL.Query().Get("apiKey"))
			}
			fmt.Fprintln(w, `{
				"id": 12345, "title": "Soup", "readyInMinutes": 20, "servings": 2,
				"sourceUrl": "http://x", "summary": "<b>Warm</b> soup",
				"extendedIngredients": [{"id": 1, "name": "tomato", "original": "2 tomatoes"}]
			}`)
		}))
		defer server.Close()

		detail, err := newTestClient(server.URL).GetRecipeDetail(ctx, 12345)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if detail.Title != "Soup" {
			t.Errorf("Expected title 'Soup', got '%s'", detail.Title)
		}
		if len(detail.ExtendedIngredients) != 1 || detail.ExtendedIngredients[0].Original != "2 tomatoes" {
			t.Errorf("Unexpected ingredients: %+v", detail.ExtendedIngredients)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).GetRecipeDetail(ctx, 1)
		if !errors.Is(err, ErrUpstreamUnavailable) {
			t.Fatalf("Expected ErrUpstreamUnavailable, got %v", err)
		}
		if !strings.Contains(err.Error(), "404") {
			t.Errorf("Expected status code in error, got %v", err)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, "this is not json")
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).GetRecipeDetail(ctx, 1)
		if !errors.Is(err, ErrInvalidResponse) {
			t.Fatalf("Expected ErrInvalidResponse, got %v", err)
		}
	})

	t.Run("SharedFetch", func(t *testing.T) {
		var calls int32
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			<-release
			fmt.Fprintln(w, `{"id": 7, "title": "Stew"}`)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := client.GetRecipeDetail(ctx, 7); err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
			}()
		}
		// Give the goroutines time to join the in-flight call.
		time.Sleep(100 * time.Millisecond)
		close(release)
		wg.Wait()

		if n := atomic.LoadInt32(&calls); n != 1 {
			t.Errorf("Expected 1 upstream call, got %d", n)
		}
	})

	t.Run("FirstCallerCancelled", func(t *testing.T) {
		var calls int32
		started := make(chan struct{})
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				close(started)
			}
			<-release
			fmt.Fprintln(w, `{"id": 7, "title": "Stew"}`)
		}))
		defer server.Close()
		defer func() {
			select {
			case <-release:
			default:
				close(release)
			}
		}()

		client := newTestClient(server.URL)

		firstCtx, cancel := context.WithCancel(ctx)
		firstErr := make(chan error, 1)
		go func() {
			_, err := client.GetRecipeDetail(firstCtx, 7)
			firstErr <- err
		}()
		<-started

		type result struct {
			title string
			err   error
		}
		second := make(chan result, 1)
		go func() {
			d, err := client.GetRecipeDetail(ctx, 7)
			if err != nil {
				second <- result{err: err}
				return
			}
			second <- result{title: d.Title}
		}()
		// Give the second caller time to join the in-flight call.
		time.Sleep(100 * time.Millisecond)

		cancel()
		if err := <-firstErr; !errors.Is(err, context.Canceled) {
			t.Errorf("Expected the cancelled caller to get context.Canceled, got %v", err)
		}

		close(release)
		res := <-second
		if res.err != nil {
			t.Fatalf("Expected the second caller to succeed, got %v", res.err)
		}
		if res.title != "Stew" {
			t.Errorf("Expected title 'Stew', got '%s'", res.title)
		}
		if n := atomic.LoadInt32(&calls); n != 1 {
			t.Errorf("Expected 1 upstream call, got %d", n)
		}
	})
}
