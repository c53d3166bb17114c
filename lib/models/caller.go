package models

import "fmt"

// Solution is a tenant configuration blob loaded from <solutionId>/solution.json.
type Solution map[string]interface{}

// RecaptchaSiteKey returns keys.recaptchaSiteKey, or "" when absent.
func (s Solution) RecaptchaSiteKey() string {
	keys, ok := s["keys"].(map[string]interface{})
	if !ok {
		return ""
	}
	siteKey, _ := keys["recaptchaSiteKey"].(string)
	return siteKey
}

// CallerContext is the authenticated, request-scoped view of a caller.
type CallerContext struct {
	UserID         string   `json:"userId,omitempty"`
	OrganizationID string   `json:"organizationId,omitempty"`
	Roles          []string `json:"roles,omitempty"`
	Licenses       []string `json:"licenses,omitempty"`
	AccessToken    string   `json:"-"`
	User           Profile  `json:"user,omitempty"`
	Organization   Profile  `json:"organization,omitempty"`
	Solution       Solution `json:"-"`
	Event          *Event   `json:"-"`

	// Diagnostics records non-fatal misses (e.g. a profile that could not
	// be loaded) without failing the request.
	Diagnostics []string `json:"-"`
}

// HasRole reports whether the caller holds the role.
func (c *CallerContext) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// CheckCallerSettings enumerates every option the caller pipeline
// recognizes. Zero value: rate limit with default cost, authenticate,
// no solution, no CAPTCHA.
//
//	Option             Effect
//	APIName            rate limit bucket suffix
//	APIPoints          rate limit cost (<=0 uses the default)
//	StopAWSEvent       scheduled events return STOP instead of CONTINUE
//	NeedSolution       solutionId required and solution loaded
//	NeedAuthorization  forces authentication and solution loading
//	IgnoreAuth         skips authentication (overridden by NeedAuthorization)
//	VerifyReCaptcha    recaptchaToken required and verified; loads solution
//	IgnoreRateLimit    skips rate limiting
//	SkipUserProfile    context is not enriched with user.<id>
//	SkipOrganization   context is not enriched with organization.<id>
type CheckCallerSettings struct {
	APIName           string `json:"apiName,omitempty"`
	APIPoints         int    `json:"apiPoints,omitempty"`
	StopAWSEvent      bool   `json:"stopAWSEvent,omitempty"`
	NeedSolution      bool   `json:"needSolution,omitempty"`
	NeedAuthorization bool   `json:"needAuthorization,omitempty"`
	IgnoreAuth        bool   `json:"ignoreAuth,omitempty"`
	VerifyReCaptcha   bool   `json:"verifyReCaptcha,omitempty"`
	IgnoreRateLimit   bool   `json:"ignoreRateLimit,omitempty"`
	SkipUserProfile   bool   `json:"skipUserProfile,omitempty"`
	SkipOrganization  bool   `json:"skipOrganization,omitempty"`
}

// Validate rejects settings that cannot be honoured.
func (s CheckCallerSettings) Validate() error {
	if s.APIPoints < 0 {
		return fmt.Errorf("apiPoints must not be negative, got %d", s.APIPoints)
	}
	return nil
}

// RequiresAuth reports whether the pipeline authenticates the caller.
func (s CheckCallerSettings) RequiresAuth() bool {
	return !s.IgnoreAuth || s.NeedAuthorization
}

// RequiresSolution reports whether the pipeline loads the solution record.
func (s CheckCallerSettings) RequiresSolution() bool {
	return s.NeedSolution || s.NeedAuthorization || s.VerifyReCaptcha
}

// RequiresSolutionID reports whether solutionId must be present in the request.
func (s CheckCallerSettings) RequiresSolutionID(hasRecaptchaToken bool) bool {
	return s.NeedSolution || s.NeedAuthorization || (s.VerifyReCaptcha && hasRecaptchaToken)
}

// AsMap is the settings echo carried in error details.
func (s CheckCallerSettings) AsMap() map[string]interface{} {
	return map[string]interface{}{
		"apiName":           s.APIName,
		"apiPoints":         s.APIPoints,
		"stopAWSEvent":      s.StopAWSEvent,
		"needSolution":      s.NeedSolution,
		"needAuthorization": s.NeedAuthorization,
		"ignoreAuth":        s.IgnoreAuth,
		"verifyReCaptcha":   s.VerifyReCaptcha,
		"ignoreRateLimit":   s.IgnoreRateLimit,
	}
}

// CheckCallerResultType tags a CheckCallerResult.
type CheckCallerResultType string

const (
	CheckCallerStop     CheckCallerResultType = "STOP"
	CheckCallerContinue CheckCallerResultType = "CONTINUE"
	CheckCallerError    CheckCallerResultType = "ERROR"
)

// CheckCallerResult is the outcome of the caller pipeline.
type CheckCallerResult struct {
	Type     CheckCallerResultType `json:"type"`
	Context  *CallerContext        `json:"context,omitempty"`
	Solution Solution              `json:"-"`
	Error    *LambdaError          `json:"error,omitempty"`
}
