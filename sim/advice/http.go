// HTTP-backed advisor: posts the snapshot summary to a completion-style
// endpoint and returns its text. Every failure mode (dial, timeout, non-200,
// bad JSON) maps to UnavailableError so the caller can degrade gracefully.

package advice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/citygrid-sim/citygrid-sim/sim"
)

type adviceRequest struct {
	Model   string  `json:"model,omitempty"`
	Prompt  string  `json:"prompt"`
	Summary Summary `json:"summary"`
}

type adviceResponse struct {
	Text string `json:"text"`
}

// HTTPAdvisor calls an external advisory service once per request.
type HTTPAdvisor struct {
	Endpoint string
	APIKey   string
	Model    string
	Client   *http.Client
}

// NewHTTPAdvisor builds an advisor with a per-call timeout (default 10s).
func NewHTTPAdvisor(endpoint, apiKey, model string, timeout time.Duration) *HTTPAdvisor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPAdvisor{
		Endpoint: endpoint,
		APIKey:   apiKey,
		Model:    model,
		Client:   &http.Client{Timeout: timeout},
	}
}

// Advise posts the snapshot summary and returns the service's advisory text.
func (a *HTTPAdvisor) Advise(s *sim.Snapshot) (string, error) {
	sum := Summarize(s)
	payload := adviceRequest{
		Model: a.Model,
		Prompt: fmt.Sprintf(
			"You are a city grid operator's assistant. Given the co-simulation state below, give one short operational recommendation. Tick %d, %d vehicles, %.1f MW served, %.1f MW shortfall.",
			sum.Tick, sum.Vehicles, sum.TotalLoadMW, sum.ShortfallMW),
		Summary: sum,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &UnavailableError{Err: err}
	}

	req, err := http.NewRequest(http.MethodPost, a.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &UnavailableError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if a.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.APIKey)
	}

	resp, err := a.Client.Do(req)
	if err != nil {
		return "", &UnavailableError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &UnavailableError{Err: fmt.Errorf("advisory service returned %d", resp.StatusCode)}
	}
	var out adviceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &UnavailableError{Err: err}
	}
	if out.Text == "" {
		return "", &UnavailableError{Err: fmt.Errorf("advisory service returned empty text")}
	}
	return out.Text, nil
}
