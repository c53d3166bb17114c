package caller

import (
	"context"

	"github.com/sirupsen/logrus"

	"lambdakit/lib/captcha"
	"lambdakit/lib/constants"
	"lambdakit/lib/models"
	"lambdakit/lib/ratelimit"
	"lambdakit/lib/request"
)

const checkCallerSource = "context.checkCaller"

// Checker runs the caller-verification pipeline.
type Checker struct {
	Resolver  *Resolver
	RateLimit *ratelimit.Service
	Captcha   captcha.Verifier
	Extractor *request.Extractor
	Logger    *logrus.Logger
}

// CheckCaller evaluates, in order: scheduled-event bypass, solutionId
// presence, rate limit, authentication, solution load and CAPTCHA. The first
// failing guard returns an ERROR result.
//
// A CAPTCHA token that fails verification is not an ERROR result: it comes
// back as a non-nil error (a *models.LambdaError with auth-failed semantics),
// so callers must check both return values.
func (c *Checker) CheckCaller(ctx context.Context, evt *models.Event, settings models.CheckCallerSettings) (*models.CheckCallerResult, error) {
	if request.CallFromAWSEvents(evt) {
		if settings.StopAWSEvent {
			return &models.CheckCallerResult{Type: models.CheckCallerStop}, nil
		}
		return &models.CheckCallerResult{Type: models.CheckCallerContinue}, nil
	}

	if err := settings.Validate(); err != nil {
		return errorResult(models.HTTPERROR_500, constants.ERROR_PARAMETER_INVALID, map[string]interface{}{
			"name":     "settings",
			"reason":   err.Error(),
			"settings": settings.AsMap(),
		}), nil
	}

	solutionID := c.Extractor.GetStringValue(evt, "solutionId", "")
	recaptchaToken := c.Extractor.GetStringValue(evt, "recaptchaToken", "")
	sourceIP := ""
	if evt != nil {
		sourceIP = evt.Identity.SourceIP
	}
	logger := c.Logger.WithFields(logrus.Fields{
		"operation":   "CheckCaller",
		"api_name":    settings.APIName,
		"source_ip":   sourceIP,
		"solution_id": solutionID,
	})

	if solutionID == "" && settings.RequiresSolutionID(recaptchaToken != "") {
		logger.Warn("Missing solutionId")
		return errorResult(models.HTTPERROR_400, constants.ERROR_PARAMETER_MISSING, map[string]interface{}{
			"paramName": "solutionId",
			"settings":  settings.AsMap(),
		}), nil
	}

	if !settings.IgnoreRateLimit && !c.RateLimit.CheckRateLimit(ctx, sourceIP, settings.APIName, settings.APIPoints) {
		return errorResult(models.HTTPERROR_429, constants.ERROR_TOO_MANY_REQUESTS, map[string]interface{}{
			"sourceIp": sourceIP,
			"settings": settings.AsMap(),
		}), nil
	}

	callerContext := &models.CallerContext{}
	if settings.RequiresAuth() {
		callerContext = c.Resolver.GetContext(ctx, evt, settings)
		if callerContext.UserID == "" {
			logger.Warn("Caller could not be authenticated")
			return errorResult(models.HTTPERROR_403, constants.ERROR_AUTH_FAILED, map[string]interface{}{
				"sourceIp": sourceIP,
				"settings": settings.AsMap(),
			}), nil
		}
	}

	var solution models.Solution
	if settings.RequiresSolution() {
		solution = c.Resolver.GetSolution(ctx, solutionID)
		if solution == nil {
			return errorResult(models.HTTPERROR_403, constants.ERROR_PARAMETER_INVALID, map[string]interface{}{
				"name":     "solutionId",
				"settings": settings.AsMap(),
			}), nil
		}
		callerContext.Solution = solution
	}

	if settings.VerifyReCaptcha {
		if recaptchaToken == "" {
			return errorResult(models.HTTPERROR_403, constants.ERROR_PARAMETER_MISSING, map[string]interface{}{
				"name":     "recaptchaToken",
				"settings": settings.AsMap(),
			}), nil
		}

		valid, err := c.Captcha.Verify(ctx, solution.RecaptchaSiteKey(), recaptchaToken)
		if err != nil || !valid {
			rejection := models.NewLambdaError(models.HTTPERROR_403, constants.ERROR_AUTH_FAILED, checkCallerSource, map[string]interface{}{
				"reason":         "ERROR_API_FAILED_RECAPTCHA",
				"recaptchaToken": recaptchaToken,
				"settings":       settings.AsMap(),
			})
			if err != nil {
				rejection.Inner = err.Error()
			}
			logger.WithField("captcha_error", err).Warn("Recaptcha verification failed")
			return nil, rejection
		}
	}

	callerContext.Event = evt
	return &models.CheckCallerResult{
		Type:     models.CheckCallerContinue,
		Context:  callerContext,
		Solution: solution,
	}, nil
}

func errorResult(status models.HttpError, errorType string, detail map[string]interface{}) *models.CheckCallerResult {
	return &models.CheckCallerResult{
		Type:  models.CheckCallerError,
		Error: models.NewLambdaError(status, errorType, checkCallerSource, detail),
	}
}
