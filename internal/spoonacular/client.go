package spoonacular

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"meal-planner/internal/config"
	"meal-planner/internal/planner"
	"meal-planner/internal/recipe"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrUpstreamUnavailable covers transport failures, timeouts and non-2xx statuses.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrInvalidResponse is returned when a 2xx body cannot be decoded.
	ErrInvalidResponse = errors.New("invalid upstream response")
)

// MealPlanResponse is the top-level structure of a generated weekly plan.
type MealPlanResponse struct {
	Week planner.WeeklyPlan `json:"week"`
}

// Client is an interface for a Spoonacular API client.
type Client interface {
	GenerateMealPlan(ctx context.Context, targetCalories int, timeFrame string) (planner.WeeklyPlan, error)
	GetRecipeDetail(ctx context.Context, recipeID int) (*recipe.Detail, error)
}

// spoonacularClient is the concrete implementation of the Spoonacular API client.
type spoonacularClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	details    singleflight.Group
}

// NewClient creates a new Spoonacular API client.
func NewClient(cfg *config.Config) Client {
	timeout := cfg.UpstreamTimeout
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}
	return &spoonacularClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.SpoonacularBaseURL, "/"),
		apiKey:     cfg.SpoonacularAPIKey,
	}
}

// GenerateMealPlan asks the meal planner endpoint for a new plan and returns its week.
func (c *spoonacularClient) GenerateMealPlan(ctx context.Context, targetCalories int, timeFrame string) (planner.WeeklyPlan, error) {
	params := url.Values{}
	params.Set("targetCalories", strconv.Itoa(targetCalories))
	params.Set("timeFrame", timeFrame)

	body, err := c.get(ctx, "/mealplanner/generate", params)
	if err != nil {
		return nil, fmt.Errorf("generate meal plan: %w", err)
	}

	var resp MealPlanResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("generate meal plan: %w: %w", ErrInvalidResponse, err)
	}
	if resp.Week == nil {
		return nil, fmt.Errorf("generate meal plan: %w: response has no week", ErrInvalidResponse)
	}
	if err := resp.Week.Validate(); err != nil {
		return nil, fmt.Errorf("generate meal plan: %w: %w", ErrInvalidResponse, err)
	}
	return resp.Week, nil
}

// GetRecipeDetail fetches the full information for one recipe. Concurrent
// requests for the same id share a single upstream call, which outlives the
// cancellation of whichever caller started it.
func (c *spoonacularClient) GetRecipeDetail(ctx context.Context, recipeID int) (*recipe.Detail, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.details.DoChan(strconv.Itoa(recipeID), func() (interface{}, error) {
		body, err := c.get(shared, fmt.Sprintf("/recipes/%d/information", recipeID), url.Values{})
		if err != nil {
			return nil, err
		}

		var detail recipe.Detail
		if err := json.Unmarshal(body, &detail); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
		}
		return &detail, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("recipe %d: %w", recipeID, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("recipe %d: %w", recipeID, res.Err)
		}
		return res.Val.(*recipe.Detail), nil
	}
}

// get performs an authenticated GET and returns the body of a 2xx response.
func (c *spoonacularClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	params.Set("apiKey", c.apiKey)
	endpoint := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d %s for %s", ErrUpstreamUnavailable, resp.StatusCode, http.StatusText(resp.StatusCode), path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrUpstreamUnavailable, err)
	}
	return body, nil
}

// redact strips the request URL, which carries the API key, from transport errors.
func redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return err
}
