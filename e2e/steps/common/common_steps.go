package common

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GetResponseField(field string) (any, error)
	ResponseContains(text string) bool
	GetLastResponseStatus() int
	GetLastResponseHeader(name string) string
	GetLastResponseBody() []byte
}

// RegisterSteps registers common step definitions used across features
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the consent broker is running$`, steps.brokerIsRunning)

	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the response should contain "([^"]*)"$`, steps.responseShouldContain)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, steps.responseFieldShouldEqual)
	ctx.Step(`^the response header "([^"]*)" should equal "([^"]*)"$`, steps.responseHeaderShouldEqual)
	ctx.Step(`^the response body should be "([^"]*)"$`, steps.responseBodyShouldBe)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) brokerIsRunning(ctx context.Context) error {
	return nil
}

func (s *commonSteps) responseStatusShouldBe(ctx context.Context, expectedStatus int) error {
	if actual := s.tc.GetLastResponseStatus(); actual != expectedStatus {
		return fmt.Errorf("expected status %d, got %d. Body: %s", expectedStatus, actual, string(s.tc.GetLastResponseBody()))
	}
	return nil
}

func (s *commonSteps) responseShouldContain(ctx context.Context, text string) error {
	if !s.tc.ResponseContains(text) {
		return fmt.Errorf("response does not contain %q. Body: %s", text, string(s.tc.GetLastResponseBody()))
	}
	return nil
}

func (s *commonSteps) responseFieldShouldEqual(ctx context.Context, field, expected string) error {
	value, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if actual := fmt.Sprint(value); actual != expected {
		return fmt.Errorf("expected %s to equal %q, got %q", field, expected, actual)
	}
	return nil
}

func (s *commonSteps) responseHeaderShouldEqual(ctx context.Context, name, expected string) error {
	if actual := s.tc.GetLastResponseHeader(name); actual != expected {
		return fmt.Errorf("expected header %s to equal %q, got %q", name, expected, actual)
	}
	return nil
}

func (s *commonSteps) responseBodyShouldBe(ctx context.Context, expected string) error {
	if actual := string(s.tc.GetLastResponseBody()); actual != expected {
		return fmt.Errorf("expected body %q, got %q", expected, actual)
	}
	return nil
}
