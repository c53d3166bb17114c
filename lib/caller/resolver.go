// Package caller turns inbound events into an authenticated caller context
// and runs the caller-verification pipeline in front of API handlers.
package caller

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/sirupsen/logrus"

	"lambdakit/lib/constants"
	"lambdakit/lib/data"
	"lambdakit/lib/models"
	"lambdakit/lib/request"
)

// CognitoClientInterface is the subset of the Cognito client used to
// resolve access tokens.
type CognitoClientInterface interface {
	GetUser(ctx context.Context, params *cognitoidentityprovider.GetUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.GetUserOutput, error)
}

var _ CognitoClientInterface = (*cognitoidentityprovider.Client)(nil)

// Status tells apart the outcomes of one resolution strategy.
type Status int

const (
	// NotAttempted means the credential was not present in the event.
	NotAttempted Status = iota
	// NotFound means the credential was present but matched nothing.
	NotFound
	// Failed means a collaborator errored while resolving the credential.
	Failed
	// Resolved means Context is populated.
	Resolved
)

func (s Status) String() string {
	switch s {
	case NotAttempted:
		return "not_attempted"
	case NotFound:
		return "not_found"
	case Failed:
		return "failed"
	case Resolved:
		return "resolved"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Resolution is the result of one credential strategy.
type Resolution struct {
	Status  Status
	Context *models.CallerContext
	Err     error
}

// ErrMissingUserToken is reported when Cognito knows the user but no "user"
// token record holds their roles.
var ErrMissingUserToken = errors.New("missing user token record")

// Resolver builds caller contexts from API tokens or Cognito access tokens.
type Resolver struct {
	Tokens    data.TokenRepository
	Cognito   CognitoClientInterface
	Profiles  data.ProfileRepository
	Solutions data.SolutionRepository
	Extractor *request.Extractor
	Logger    *logrus.Logger
}

// ParseAPIToken resolves the apiToken parameter through the token store.
func (r *Resolver) ParseAPIToken(ctx context.Context, evt *models.Event) Resolution {
	apiToken := r.Extractor.GetStringValue(evt, "apiToken", "")
	if apiToken == "" {
		return Resolution{Status: NotAttempted}
	}

	token := r.Tokens.CheckToken(ctx, apiToken)
	if token == nil {
		r.Logger.WithField("operation", "ParseAPIToken").Warn("API token was not recognized")
		return Resolution{Status: NotFound}
	}
	callerContext := contextFromTokenData(token.Data)
	if token.Type != constants.TOKEN_TYPE_USER {
		// Grants on derived tokens are never taken from their own data.
		callerContext.Roles, callerContext.Licenses = r.userGrants(ctx, callerContext.UserID)
	}
	return Resolution{Status: Resolved, Context: callerContext}
}

// userGrants returns the roles and licenses recorded on the user's "user"
// token, or none when that token cannot be read.
func (r *Resolver) userGrants(ctx context.Context, userID string) ([]string, []string) {
	if userID == "" {
		return nil, nil
	}
	userToken, err := r.Tokens.GetToken(ctx, userID, constants.TOKEN_TYPE_USER)
	if err != nil || userToken == nil {
		fields := logrus.Fields{"operation": "userGrants", "user_id": userID}
		if err != nil {
			fields["error"] = err.Error()
		}
		r.Logger.WithFields(fields).Warn("No user token to take grants from")
		return nil, nil
	}
	return stringSlice(userToken.Data["roles"]), stringSlice(userToken.Data["licenses"])
}

// ParseAccessToken resolves the accessToken parameter through Cognito. The
// Cognito username has the form "<organizationId>.<userId>"; roles and
// licenses come from the user's "user" token.
func (r *Resolver) ParseAccessToken(ctx context.Context, evt *models.Event) Resolution {
	accessToken := r.Extractor.GetStringValue(evt, "accessToken", "")
	if accessToken == "" {
		return Resolution{Status: NotAttempted}
	}

	output, err := r.Cognito.GetUser(ctx, &cognitoidentityprovider.GetUserInput{
		AccessToken: aws.String(accessToken),
	})
	if err != nil {
		r.Logger.WithFields(logrus.Fields{
			"operation": "ParseAccessToken",
			"error":     err.Error(),
		}).Warn("Failed to get user by access token")
		return Resolution{Status: Failed, Err: err}
	}
	username := aws.ToString(output.Username)
	if username == "" {
		return Resolution{Status: NotFound}
	}

	organizationID, userID, ok := strings.Cut(username, ".")
	if !ok || userID == "" {
		err := fmt.Errorf("unexpected username format %q", username)
		r.Logger.WithFields(logrus.Fields{
			"operation": "ParseAccessToken",
			"error":     err.Error(),
		}).Error("Failed to parse cognito username")
		return Resolution{Status: Failed, Err: err}
	}

	userToken, err := r.Tokens.GetToken(ctx, userID, constants.TOKEN_TYPE_USER)
	if err == nil && userToken == nil {
		err = ErrMissingUserToken
	}
	if err != nil {
		r.Logger.WithFields(logrus.Fields{
			"operation": "ParseAccessToken",
			"user_id":   userID,
			"error":     err.Error(),
		}).Error("Failed to load user token")
		return Resolution{Status: Failed, Err: err}
	}

	return Resolution{Status: Resolved, Context: &models.CallerContext{
		AccessToken:    accessToken,
		UserID:         userID,
		OrganizationID: organizationID,
		Roles:          stringSlice(userToken.Data["roles"]),
		Licenses:       stringSlice(userToken.Data["licenses"]),
	}}
}

// GetContext tries the API token first, then the access token, and enriches
// the result with the user and organization profiles. The returned context
// is never nil; it has no UserID when neither credential resolved. Misses
// are recorded in Diagnostics rather than failing the call.
func (r *Resolver) GetContext(ctx context.Context, evt *models.Event, settings models.CheckCallerSettings) *models.CallerContext {
	var diagnostics []string

	resolution := r.ParseAPIToken(ctx, evt)
	if resolution.Status != Resolved {
		if resolution.Status != NotAttempted {
			diagnostics = append(diagnostics, "apiToken: "+resolution.describe())
		}
		resolution = r.ParseAccessToken(ctx, evt)
		if resolution.Status != Resolved && resolution.Status != NotAttempted {
			diagnostics = append(diagnostics, "accessToken: "+resolution.describe())
		}
	}

	callerContext := resolution.Context
	if callerContext == nil {
		callerContext = &models.CallerContext{}
	}
	callerContext.Event = evt
	callerContext.Diagnostics = diagnostics

	if callerContext.UserID != "" && !settings.SkipUserProfile {
		if profile, err := r.loadProfile(ctx, models.UserProfileID(callerContext.UserID)); err != nil {
			callerContext.Diagnostics = append(callerContext.Diagnostics, "user profile: "+err.Error())
		} else {
			profile["id"] = callerContext.UserID
			callerContext.User = profile
		}
	}
	if callerContext.OrganizationID != "" && !settings.SkipOrganization {
		if profile, err := r.loadProfile(ctx, models.OrganizationProfileID(callerContext.OrganizationID)); err != nil {
			callerContext.Diagnostics = append(callerContext.Diagnostics, "organization profile: "+err.Error())
		} else {
			profile["id"] = callerContext.OrganizationID
			callerContext.Organization = profile
		}
	}

	if len(callerContext.Diagnostics) > 0 {
		r.Logger.WithFields(logrus.Fields{
			"operation":   "GetContext",
			"user_id":     callerContext.UserID,
			"diagnostics": callerContext.Diagnostics,
		}).Info("Caller context resolved partially")
	}
	return callerContext
}

// GetSolution loads the solution record; any failure yields nil.
func (r *Resolver) GetSolution(ctx context.Context, solutionID string) models.Solution {
	solution, err := r.Solutions.GetSolution(ctx, solutionID)
	if err != nil {
		r.Logger.WithFields(logrus.Fields{
			"operation":   "GetSolution",
			"solution_id": solutionID,
			"error":       err.Error(),
		}).Warn("Solution could not be loaded")
		return nil
	}
	return solution
}

func (r *Resolver) loadProfile(ctx context.Context, id string) (models.Profile, error) {
	var profile models.Profile
	if err := r.Profiles.GetProfile(ctx, id, &profile); err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, data.ErrProfileNotFound
	}
	return profile, nil
}

func (res Resolution) describe() string {
	if res.Err != nil {
		return res.Status.String() + " (" + res.Err.Error() + ")"
	}
	return res.Status.String()
}

func contextFromTokenData(tokenData map[string]interface{}) *models.CallerContext {
	userID, _ := tokenData["userId"].(string)
	organizationID, _ := tokenData["organizationId"].(string)
	return &models.CallerContext{
		UserID:         userID,
		OrganizationID: organizationID,
		Roles:          stringSlice(tokenData["roles"]),
		Licenses:       stringSlice(tokenData["licenses"]),
	}
}

// stringSlice accepts both []string and the []interface{} produced by
// decoding a stored document.
func stringSlice(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []interface{}:
		result := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	}
	return nil
}
