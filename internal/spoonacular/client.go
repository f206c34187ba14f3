package spoonacular

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"recipebox/internal/config"
)

const maxBodyBytes = 2 * 1024 * 1024

// API is what the catalog and detail pages need from the recipe service.
type API interface {
	SearchByCategory(ctx context.Context, query, apiKey string) ([]RecipeSummary, error)
	GetDetail(ctx context.Context, id int, apiKey string) (*RecipeDetail, error)
}

// Client calls the Spoonacular REST API. The key travels in the query string.
type Client struct {
	baseURL    string
	number     int
	httpClient *http.Client
	tracer     trace.Tracer
}

var _ API = (*Client)(nil)

// New returns the live client, or the canned mock when mocks are enabled.
func New(cfg *config.Config) (API, error) {
	if cfg.Mocks.Enable {
		slog.Info("using mock recipe api")
		return mock{}, nil
	}
	return NewClient(cfg.Spoonacular)
}

// NewClient creates a Spoonacular client. RetryMax of zero means every call
// is a single attempt.
func NewClient(cfg config.SpoonacularConfig) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = config.DefaultSpoonacularURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	number := cfg.ResultCount
	if number <= 0 {
		number = config.DefaultResultCount
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	// the built-in logger prints request URLs, which carry the key
	rc.Logger = nil
	rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			slog.InfoContext(req.Context(), "retrying recipe api", "attempt", attempt, "url", redact(req.URL))
		}
	}
	if cfg.HTTPClient != nil {
		rc.HTTPClient = cfg.HTTPClient
	}
	if cfg.Timeout > 0 {
		rc.HTTPClient.Timeout = cfg.Timeout
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		number:     number,
		httpClient: rc.StandardClient(),
		tracer:     otel.Tracer("recipebox/spoonacular"),
	}, nil
}

// docs https://spoonacular.com/food-api/docs#Search-Recipes-Complex
// SearchByCategory returns up to the configured count of recipes matching query
// in random order. An empty result is not an error.
func (c *Client) SearchByCategory(ctx context.Context, query, apiKey string) ([]RecipeSummary, error) {
	ctx, span := c.tracer.Start(ctx, "spoonacular.complexSearch", trace.WithAttributes(attribute.String("recipe.query", query)))
	defer span.End()

	params := url.Values{}
	params.Set("query", query)
	params.Set("sort", "random")
	params.Set("number", strconv.Itoa(c.number))
	params.Set("apiKey", apiKey)

	var resp searchResponse
	if err := c.getJSON(ctx, "complexSearch", "/recipes/complexSearch", params, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if resp.Results == nil {
		resp.Results = []RecipeSummary{}
	}
	span.SetAttributes(attribute.Int("recipe.count", len(resp.Results)))
	return resp.Results, nil
}

// docs https://spoonacular.com/food-api/docs#Get-Recipe-Information
func (c *Client) GetDetail(ctx context.Context, id int, apiKey string) (*RecipeDetail, error) {
	ctx, span := c.tracer.Start(ctx, "spoonacular.information", trace.WithAttributes(attribute.Int("recipe.id", id)))
	defer span.End()

	params := url.Values{}
	params.Set("apiKey", apiKey)

	var detail RecipeDetail
	if err := c.getJSON(ctx, "information", fmt.Sprintf("/recipes/%d/information", id), params, &detail); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return &detail, nil
}

func (c *Client) getJSON(ctx context.Context, operation, path string, params url.Values, out any) error {
	reqURL, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse %s URL: %w", operation, err)
	}
	reqURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")

	slog.InfoContext(ctx, "calling recipe api", "operation", operation, "url", redact(reqURL))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransport, operation, scrub(err, params.Get("apiKey")))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read %s response: %w", ErrTransport, operation, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		slog.ErrorContext(ctx, "received recipe api error", "operation", operation, "status", resp.StatusCode)
		return &StatusError{Operation: operation, StatusCode: resp.StatusCode, Body: apiMessage(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: parse %s response: %w", ErrTransport, operation, err)
	}
	return nil
}

func redact(u *url.URL) string {
	clone := *u
	q := clone.Query()
	if q.Has("apiKey") {
		q.Set("apiKey", "REDACTED")
	}
	clone.RawQuery = q.Encode()
	return clone.String()
}

// scrub strips the key from transport errors, which embed the request URL.
func scrub(err error, apiKey string) error {
	if apiKey == "" || !strings.Contains(err.Error(), apiKey) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), apiKey, "REDACTED"))
}

// apiMessage pulls the message out of Spoonacular's {"status":"failure","message":...} body.
func apiMessage(body []byte) string {
	var failure struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &failure); err == nil && failure.Message != "" {
		return failure.Message
	}
	return strings.TrimSpace(string(body))
}
