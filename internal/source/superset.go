package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/opsdesk/vigia/internal/report"
)

// SupersetConfig holds the connection and credential settings for a Superset
// instance. The password arrives through configuration, never hardcoded.
type SupersetConfig struct {
	URL      string `toml:"url"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// Superset fetches the data behind one Superset chart. Each fetch performs a
// fresh JWT login; tokens are short-lived and runs are minutes apart, so
// caching them buys nothing.
type Superset struct {
	cfg     SupersetConfig
	chartID int
	client  *http.Client
}

// NewSuperset creates a source for the given chart. The http.Client's own
// timeout is left zero; per-run deadlines come from the fetch context.
func NewSuperset(cfg SupersetConfig, chartID int) *Superset {
	return &Superset{
		cfg:     cfg,
		chartID: chartID,
		client:  &http.Client{},
	}
}

// NewSupersetWithClient creates a source with a custom HTTP client (tests).
func NewSupersetWithClient(cfg SupersetConfig, chartID int, client *http.Client) *Superset {
	return &Superset{
		cfg:     cfg,
		chartID: chartID,
		client:  client,
	}
}

// Fetch logs in, pulls the chart data and flattens the first result set into
// a table.
func (s *Superset) Fetch(ctx context.Context) (report.Table, error) {
	token, err := s.login(ctx)
	if err != nil {
		return report.Table{}, fmt.Errorf("superset login failed: %w", err)
	}

	return s.chartData(ctx, token)
}

// login authenticates against the Superset security API and returns the
// access token.
func (s *Superset) login(ctx context.Context) (string, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"provider": "db",
		"username": s.cfg.Username,
		"password": s.cfg.Password,
		"refresh":  true,
	})
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(s.cfg.URL, "/") + "/api/v1/security/login"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("login returned status %d: %s", resp.StatusCode, body)
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode login response: %w", err)
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("login response missing access token")
	}

	return result.AccessToken, nil
}

// chartData fetches /api/v1/chart/{id}/data and flattens the first result.
func (s *Superset) chartData(ctx context.Context, token string) (report.Table, error) {
	url := fmt.Sprintf("%s/api/v1/chart/%d/data", strings.TrimRight(s.cfg.URL, "/"), s.chartID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return report.Table{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return report.Table{}, fmt.Errorf("chart data request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return report.Table{}, fmt.Errorf("chart data returned status %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Result []struct {
			Colnames []string                 `json:"colnames"`
			Data     []map[string]interface{} `json:"data"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return report.Table{}, fmt.Errorf("failed to decode chart data: %w", err)
	}

	if len(result.Result) == 0 {
		return report.Table{}, nil
	}

	first := result.Result[0]
	table := report.Table{Columns: first.Colnames}
	for _, record := range first.Data {
		table.Rows = append(table.Rows, report.Row(record))
	}

	return table, nil
}
