package membership

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string) error
	Do(method, path string, body interface{}) error
	GetResponseField(field string) (interface{}, error)
	GetLastResponseStatus() int
	LoginAsAdmin(subject string) error
	Save(key, value string)
	Saved(key string) (string, error)
}

const (
	adminBase       = "/api/admin/membership"
	applicationBase = adminBase + "/applications"
	lastApplication = "application"
)

// RegisterSteps registers membership lifecycle step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &membershipSteps{tc: tc}

	// Intake
	ctx.Step(`^I apply with email "([^"]*)" and personal number "([^"]*)"$`, steps.apply)
	ctx.Step(`^I apply with email "([^"]*)" and personal number "([^"]*)" paying (-?\d+)$`, steps.applyPaying)
	ctx.Step(`^I save the application id$`, steps.saveApplicationID)

	// Review
	ctx.Step(`^I am authenticated as administrator "([^"]*)"$`, steps.authenticateAsAdmin)
	ctx.Step(`^I accept the application$`, steps.accept)
	ctx.Step(`^I reject the application with reason "([^"]*)" keeping it (\d+) days$`, steps.reject)
	ctx.Step(`^I reject the application without a body$`, steps.rejectWithoutBody)
	ctx.Step(`^I revert the application to pending$`, steps.revert)
	ctx.Step(`^I fetch the application$`, steps.fetch)
	ctx.Step(`^I delete the application$`, steps.deleteApplication)
	ctx.Step(`^I list "([^"]*)" applications$`, steps.list)
	ctx.Step(`^I trigger a retention sweep$`, steps.sweep)

	// Assertions
	ctx.Step(`^the listing should contain (\d+) applications?$`, steps.listingShouldContain)
}

type membershipSteps struct {
	tc TestContext
}

func applyBody(email, personalNr string, amount int) map[string]interface{} {
	return map[string]interface{}{
		"first_name":        "Kari",
		"last_name":         "Nordmann",
		"personal_nr":       personalNr,
		"email":             email,
		"payment_reference": "E2E-" + personalNr,
		"payment_amount":    amount,
	}
}

func (s *membershipSteps) apply(ctx context.Context, email, personalNr string) error {
	return s.tc.POST("/api/membership/apply", applyBody(email, personalNr, 300))
}

func (s *membershipSteps) applyPaying(ctx context.Context, email, personalNr string, amount int) error {
	return s.tc.POST("/api/membership/apply", applyBody(email, personalNr, amount))
}

func (s *membershipSteps) saveApplicationID(ctx context.Context) error {
	value, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	id, ok := value.(string)
	if !ok || id == "" {
		return fmt.Errorf("application id missing from response")
	}
	s.tc.Save(lastApplication, id)
	return nil
}

func (s *membershipSteps) authenticateAsAdmin(ctx context.Context, subject string) error {
	return s.tc.LoginAsAdmin(subject)
}

func (s *membershipSteps) applicationPath(suffix string) (string, error) {
	id, err := s.tc.Saved(lastApplication)
	if err != nil {
		return "", err
	}
	return applicationBase + "/" + id + suffix, nil
}

func (s *membershipSteps) patch(suffix string, body interface{}) error {
	path, err := s.applicationPath(suffix)
	if err != nil {
		return err
	}
	return s.tc.Do("PATCH", path, body)
}

func (s *membershipSteps) accept(ctx context.Context) error {
	return s.patch("/accept", nil)
}

func (s *membershipSteps) reject(ctx context.Context, reason string, days int) error {
	return s.patch("/reject", map[string]interface{}{
		"reason":       reason,
		"days_to_keep": days,
	})
}

func (s *membershipSteps) rejectWithoutBody(ctx context.Context) error {
	return s.patch("/reject", nil)
}

func (s *membershipSteps) revert(ctx context.Context) error {
	return s.patch("/pending", nil)
}

func (s *membershipSteps) fetch(ctx context.Context) error {
	path, err := s.applicationPath("")
	if err != nil {
		return err
	}
	return s.tc.GET(path)
}

func (s *membershipSteps) deleteApplication(ctx context.Context) error {
	path, err := s.applicationPath("")
	if err != nil {
		return err
	}
	return s.tc.Do("DELETE", path, nil)
}

func (s *membershipSteps) list(ctx context.Context, status string) error {
	return s.tc.GET(applicationBase + "?status=" + status + "&size=100")
}

func (s *membershipSteps) sweep(ctx context.Context) error {
	return s.tc.POST(adminBase+"/retention/sweep", nil)
}

func (s *membershipSteps) listingShouldContain(ctx context.Context, count int) error {
	value, err := s.tc.GetResponseField("items")
	if err != nil {
		return err
	}
	items, ok := value.([]interface{})
	if !ok {
		return fmt.Errorf("items is not a list")
	}
	if len(items) < count {
		return fmt.Errorf("expected at least %s applications, got %d", strconv.Itoa(count), len(items))
	}
	return nil
}
