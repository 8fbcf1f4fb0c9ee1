package integration

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/atelierforma/gatekeeper/pkg/identity"
	"github.com/atelierforma/gatekeeper/pkg/resolver"
)

// StepsContext holds state shared between step definitions
type StepsContext struct {
	tc           *TestContext
	client       *http.Client
	cookies      []*http.Cookie
	response     *http.Response
	responseBody []byte
	principal    string
}

// NewStepsContext creates a new steps context
func NewStepsContext(tc *TestContext) *StepsContext {
	return &StepsContext{
		tc: tc,
		client: &http.Client{
			Timeout: 10 * time.Second,
			// Redirects are the behavior under test; never follow them.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// RegisterSteps registers all step definitions
func (s *StepsContext) RegisterSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a gatekeeper server is running$`, s.aGatekeeperServerIsRunning)
	sc.Step(`^"([^"]*)" has role "([^"]*)"$`, s.principalHasRole)
	sc.Step(`^"([^"]*)" is demoted to role "([^"]*)"$`, s.principalHasRole)
	sc.Step(`^"([^"]*)" has an active trainer record$`, s.principalHasTrainerRecord)
	sc.Step(`^I am signed in as "([^"]*)"$`, s.iAmSignedInAs)
	sc.Step(`^I visit "([^"]*)"$`, s.iVisit)
	sc.Step(`^I request "([^"]*)"$`, s.iVisit)
	sc.Step(`^I wait for role resolution$`, s.iWaitForRoleResolution)
	sc.Step(`^the response status should be (\d+)$`, s.theResponseStatusShouldBe)
	sc.Step(`^I should be redirected to "([^"]*)"$`, s.iShouldBeRedirectedTo)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, s.theResponseFieldShouldBe)
}

func (s *StepsContext) aGatekeeperServerIsRunning() error {
	// Server is already running via TestContext
	return nil
}

func (s *StepsContext) principalHasRole(principal, role string) error {
	return s.tc.DB.Exec(`
		INSERT INTO user_roles (principal_id, role) VALUES (?, ?)
		ON CONFLICT (principal_id) DO UPDATE SET role = EXCLUDED.role
	`, principal, role).Error
}

func (s *StepsContext) principalHasTrainerRecord(principal string) error {
	return s.tc.DB.Exec(`
		INSERT INTO trainer_records (principal_id, active) VALUES (?, true)
		ON CONFLICT (principal_id) DO UPDATE SET active = true
	`, principal).Error
}

func (s *StepsContext) iAmSignedInAs(principal string) error {
	form := url.Values{"principal": {principal}}
	resp, err := s.client.PostForm(s.tc.ServerURL+"/auth/sign-in", form)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusFound {
		return fmt.Errorf("sign-in returned status %d", resp.StatusCode)
	}

	s.cookies = resp.Cookies()
	s.principal = principal
	if len(s.cookies) == 0 {
		return fmt.Errorf("sign-in did not set a session cookie")
	}
	return nil
}

func (s *StepsContext) iVisit(path string) error {
	req, err := http.NewRequest("GET", s.tc.ServerURL+path, nil)
	if err != nil {
		return err
	}
	for _, c := range s.cookies {
		req.AddCookie(c)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	// Carry rotated session cookies forward like a browser would.
	if rotated := resp.Cookies(); len(rotated) > 0 {
		s.cookies = rotated
	}

	s.response = resp
	s.responseBody = body
	return nil
}

func (s *StepsContext) iWaitForRoleResolution() error {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap := s.tc.Resolver.Snapshot()
		if snap.State == resolver.StateResolved && snap.Principal == identity.Principal(s.principal) {
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("role for %q was not resolved in time", s.principal)
}

func (s *StepsContext) theResponseStatusShouldBe(status int) error {
	if s.response == nil {
		return fmt.Errorf("no response recorded")
	}
	if s.response.StatusCode != status {
		return fmt.Errorf("expected status %d, got %d (body: %s)",
			status, s.response.StatusCode, truncate(string(s.responseBody), 200))
	}
	return nil
}

func (s *StepsContext) iShouldBeRedirectedTo(location string) error {
	if s.response == nil {
		return fmt.Errorf("no response recorded")
	}
	if s.response.StatusCode != http.StatusFound {
		return fmt.Errorf("expected a redirect, got status %d", s.response.StatusCode)
	}
	if got := s.response.Header.Get("Location"); got != location {
		return fmt.Errorf("expected redirect to %q, got %q", location, got)
	}
	return nil
}

func (s *StepsContext) theResponseFieldShouldBe(field, want string) error {
	var payload map[string]interface{}
	if err := json.Unmarshal(s.responseBody, &payload); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}

	got, ok := payload[field]
	if !ok {
		return fmt.Errorf("response has no field %q", field)
	}
	if fmt.Sprintf("%v", got) != want {
		return fmt.Errorf("expected %s=%q, got %q", field, want, got)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "..."
}
