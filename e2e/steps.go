package e2e

import (
	"github.com/cucumber/godog"

	"orgapi/e2e/steps/common"
	"orgapi/e2e/steps/membership"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	membership.RegisterSteps(ctx, tc)
}
