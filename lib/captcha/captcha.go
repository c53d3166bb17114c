// Package captcha verifies reCAPTCHA Enterprise assertions.
package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"lambdakit/lib/constants"
	"lambdakit/lib/data"
)

// Verifier checks a client-supplied CAPTCHA token against a site key.
type Verifier interface {
	Verify(ctx context.Context, siteKey, token string) (bool, error)
}

// HTTPClient is the subset of *http.Client the verifier calls.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RecaptchaVerifier posts assessments to the reCAPTCHA Enterprise API using
// the GOOGLE_PROJECT_ID and GOOGLE_RECAPTCHA_KEY secrets.
type RecaptchaVerifier struct {
	Secrets    data.SSMRepository
	HTTPClient HTTPClient
	Logger     *logrus.Logger
	// URLFormat overrides the assessment endpoint; it takes the project id
	// and the API key.
	URLFormat string
}

// NewRecaptchaVerifier returns a verifier with a 10 second HTTP timeout.
func NewRecaptchaVerifier(secrets data.SSMRepository, logger *logrus.Logger) *RecaptchaVerifier {
	return &RecaptchaVerifier{
		Secrets:    secrets,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Logger:     logger,
		URLFormat:  constants.RECAPTCHA_ASSESSMENT_URL,
	}
}

type assessmentRequest struct {
	Event assessmentEvent `json:"event"`
}

type assessmentEvent struct {
	Token   string `json:"token"`
	SiteKey string `json:"siteKey"`
}

type assessmentResponse struct {
	TokenProperties struct {
		Valid         bool   `json:"valid"`
		InvalidReason string `json:"invalidReason"`
		Action        string `json:"action"`
	} `json:"tokenProperties"`
	Score float64 `json:"score"`
}

// Verify returns true only when the endpoint answers 2xx and reports the
// token as valid. Transport and decoding failures are returned as errors.
func (v *RecaptchaVerifier) Verify(ctx context.Context, siteKey, token string) (bool, error) {
	if siteKey == "" || token == "" {
		return false, nil
	}

	projectID, err := v.Secrets.GetSecretValue(ctx, constants.GOOGLE_PROJECT_ID)
	if err != nil {
		return false, fmt.Errorf("failed to read recaptcha project id: %w", err)
	}
	apiKey, err := v.Secrets.GetSecretValue(ctx, constants.GOOGLE_RECAPTCHA_KEY)
	if err != nil {
		return false, fmt.Errorf("failed to read recaptcha key: %w", err)
	}

	payload, err := json.Marshal(assessmentRequest{Event: assessmentEvent{Token: token, SiteKey: siteKey}})
	if err != nil {
		return false, err
	}
	endpoint := fmt.Sprintf(v.URLFormat, url.PathEscape(projectID), url.QueryEscape(apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("failed to build recaptcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.HTTPClient.Do(req)
	if err != nil {
		v.Logger.WithFields(logrus.Fields{
			"operation": "VerifyReCaptcha",
			"error":     err.Error(),
		}).Error("Recaptcha assessment request failed")
		return false, fmt.Errorf("recaptcha assessment failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, fmt.Errorf("failed to read recaptcha response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		v.Logger.WithFields(logrus.Fields{
			"operation":   "VerifyReCaptcha",
			"status_code": resp.StatusCode,
		}).Warn("Recaptcha assessment rejected")
		return false, nil
	}

	var assessment assessmentResponse
	if err := json.Unmarshal(body, &assessment); err != nil {
		return false, fmt.Errorf("failed to decode recaptcha response: %w", err)
	}
	if !assessment.TokenProperties.Valid {
		v.Logger.WithFields(logrus.Fields{
			"operation":      "VerifyReCaptcha",
			"invalid_reason": assessment.TokenProperties.InvalidReason,
		}).Info("Recaptcha token is not valid")
	}
	return assessment.TokenProperties.Valid, nil
}
