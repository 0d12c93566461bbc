package consent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cucumber/godog"

	"consentbroker/internal/consent/models"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	AuthenticateAs(subject string, role models.Role) error
	ClearAuth()
	Do(method, path string, body any) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	Alias(name string) (string, error)
	RememberConsent(item, consentID string)
	ConsentFor(item string) (string, error)
}

// RegisterSteps registers consent-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &consentSteps{tc: tc}

	ctx.Step(`^"([^"]*)" is signed in as (?:a|an) (provider|seeker|admin)$`, steps.signIn)
	ctx.Step(`^I am not signed in$`, steps.signOut)

	ctx.Step(`^I request access to "([^"]*)"$`, steps.requestAccess)
	ctx.Step(`^I re-request access to "([^"]*)"$`, steps.reRequest)
	ctx.Step(`^I fetch the content of "([^"]*)"$`, steps.fetchContent)
	ctx.Step(`^I list my pending consents$`, steps.listPending)
	ctx.Step(`^I approve the consent for "([^"]*)" with (\d+) access(?:es)?$`, steps.approve)
	ctx.Step(`^I (reject|revoke) the consent for "([^"]*)"$`, steps.rejectOrRevoke)
	ctx.Step(`^I view my (seeker|provider) history$`, steps.viewHistory)
	ctx.Step(`^I set owner "([^"]*)" active to (true|false)$`, steps.setOwnerActive)

	ctx.Step(`^the pending list should contain (\d+) requests?$`, steps.pendingListShouldContain)
	ctx.Step(`^the history actions should be "([^"]*)"$`, steps.historyActionsShouldBe)
}

type consentSteps struct {
	tc TestContext
}

func (s *consentSteps) signIn(ctx context.Context, name, role string) error {
	subject := name
	if models.Role(role) != models.RoleAdmin {
		id, err := s.tc.Alias(name)
		if err != nil {
			return err
		}
		subject = id
	}
	return s.tc.AuthenticateAs(subject, models.Role(role))
}

func (s *consentSteps) signOut(ctx context.Context) error {
	s.tc.ClearAuth()
	return nil
}

func (s *consentSteps) itemPath(item, suffix string) (string, error) {
	itemID, err := s.tc.Alias(item)
	if err != nil {
		return "", err
	}
	return "/seeker/items/" + itemID + suffix, nil
}

func (s *consentSteps) seekerCall(method, item, suffix string) error {
	path, err := s.itemPath(item, suffix)
	if err != nil {
		return err
	}
	if err := s.tc.Do(method, path, nil); err != nil {
		return err
	}
	if consentID, err := s.tc.GetResponseField("consent_id"); err == nil {
		s.tc.RememberConsent(item, fmt.Sprint(consentID))
	}
	return nil
}

func (s *consentSteps) requestAccess(ctx context.Context, item string) error {
	return s.seekerCall(http.MethodPost, item, "/access")
}

func (s *consentSteps) reRequest(ctx context.Context, item string) error {
	return s.seekerCall(http.MethodPost, item, "/rerequest")
}

func (s *consentSteps) fetchContent(ctx context.Context, item string) error {
	path, err := s.itemPath(item, "/content")
	if err != nil {
		return err
	}
	return s.tc.Do(http.MethodGet, path, nil)
}

func (s *consentSteps) listPending(ctx context.Context) error {
	return s.tc.Do(http.MethodGet, "/provider/consents/pending", nil)
}

func (s *consentSteps) decide(item string, body map[string]any) error {
	consentID, err := s.tc.ConsentFor(item)
	if err != nil {
		return err
	}
	return s.tc.Do(http.MethodPost, "/provider/consents/"+consentID+"/decision", body)
}

func (s *consentSteps) approve(ctx context.Context, item string, count int) error {
	return s.decide(item, map[string]any{"decision": "approve", "access_count": count})
}

func (s *consentSteps) rejectOrRevoke(ctx context.Context, decision, item string) error {
	return s.decide(item, map[string]any{"decision": decision})
}

func (s *consentSteps) viewHistory(ctx context.Context, side string) error {
	return s.tc.Do(http.MethodGet, "/"+side+"/history", nil)
}

func (s *consentSteps) setOwnerActive(ctx context.Context, owner, active string) error {
	ownerID, err := s.tc.Alias(owner)
	if err != nil {
		return err
	}
	return s.tc.Do(http.MethodPut, "/admin/owners/"+ownerID+"/activity", map[string]any{"active": active == "true"})
}

func (s *consentSteps) pendingListShouldContain(ctx context.Context, n int) error {
	var body struct {
		Pending []json.RawMessage `json:"pending"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &body); err != nil {
		return fmt.Errorf("failed to unmarshal pending list: %w", err)
	}
	if len(body.Pending) != n {
		return fmt.Errorf("expected %d pending requests, got %d", n, len(body.Pending))
	}
	return nil
}

// historyActionsShouldBe compares the comma-separated action sequence,
// newest first.
func (s *consentSteps) historyActionsShouldBe(ctx context.Context, expected string) error {
	var body struct {
		Entries []struct {
			Action string `json:"action"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &body); err != nil {
		return fmt.Errorf("failed to unmarshal history: %w", err)
	}
	actions := make([]string, 0, len(body.Entries))
	for _, e := range body.Entries {
		actions = append(actions, e.Action)
	}
	if got := strings.Join(actions, ","); got != expected {
		return fmt.Errorf("expected history %q, got %q", expected, got)
	}
	return nil
}
