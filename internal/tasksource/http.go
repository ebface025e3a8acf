package tasksource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/julianstephens/tickup/internal/logger"
	"github.com/julianstephens/tickup/internal/models"
)

// HTTPSource reads tasks from GET {base}/api/tasks/user/{userID}.
type HTTPSource struct {
	baseURL string
	userID  string
	token   string
	client  *http.Client
	loc     *time.Location
}

type HTTPOption func(*HTTPSource)

func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) { s.client = c }
}

func WithLocation(loc *time.Location) HTTPOption {
	return func(s *HTTPSource) { s.loc = loc }
}

func NewHTTPSource(baseURL, userID, token string, opts ...HTTPOption) (*HTTPSource, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("task API URL is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid task API URL: %w", err)
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}

	s := &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		userID:  userID,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
		loc:     time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// flexID accepts ids encoded as JSON numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("task id must be a string or number: %s", data)
	}
	*f = flexID(n.String())
	return nil
}

type apiTask struct {
	ID          flexID  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	DueDate     *string `json:"due_date"`
	Priority    string  `json:"priority"`
	Status      string  `json:"status"`
	Category    string  `json:"category"`
	IsCompleted *bool   `json:"is_completed"`
}

type tasksResponse struct {
	Tasks []apiTask `json:"tasks"`
	Error string    `json:"error"`
}

func (s *HTTPSource) Tasks(ctx context.Context) ([]models.TaskSnapshot, error) {
	endpoint := fmt.Sprintf("%s/api/tasks/user/%s", s.baseURL, url.PathEscape(s.userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tasks: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read task response: %w", err)
	}

	var payload tasksResponse
	decodeErr := json.Unmarshal(body, &payload)

	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("task API rejected credentials (status %d)", res.StatusCode)
	case res.StatusCode != http.StatusOK:
		msg := payload.Error
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return nil, fmt.Errorf("task API returned status %d: %s", res.StatusCode, msg)
	case decodeErr != nil:
		return nil, fmt.Errorf("failed to decode task response: %w", decodeErr)
	}

	tasks := make([]models.TaskSnapshot, 0, len(payload.Tasks))
	for _, t := range payload.Tasks {
		if t.ID == "" {
			logger.Warn("Skipping task without id", "title", t.Title)
			continue
		}

		var due time.Time
		if t.DueDate != nil {
			parsed, err := parseDue(*t.DueDate, s.loc)
			if err != nil {
				logger.Warn("Ignoring unparseable due date", "task", string(t.ID), "error", err)
			}
			due = parsed
		}

		completed := t.IsCompleted != nil && *t.IsCompleted
		tasks = append(tasks, models.TaskSnapshot{
			ID:          string(t.ID),
			Title:       t.Title,
			DueAt:       due,
			IsCompleted: isCompleted(t.Status, completed),
		})
	}

	logger.Debug("Fetched tasks", "count", len(tasks))
	return tasks, nil
}
