package caller

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lambdakit/lib/models"
)

func eventWith(headers map[string]string) *models.Event {
	return &models.Event{Headers: headers, Identity: models.Identity{SourceIP: "10.0.0.1"}}
}

func Test_GetContext_APIToken(t *testing.T) {
	//Arrange
	f := newFixture()
	token, _ := f.tokens.CreateUserToken(context.Background(), "u1", "o1", []string{"admin"}, false)
	evt := eventWith(map[string]string{"apiToken": token.Token})

	//Act
	actual := f.resolver.GetContext(context.Background(), evt, models.CheckCallerSettings{})

	//Assert
	assert.Equal(t, "u1", actual.UserID)
	assert.Equal(t, "o1", actual.OrganizationID)
	assert.Equal(t, []string{"admin"}, actual.Roles)
	assert.Equal(t, "u1@example.com", actual.User["email"])
	assert.Equal(t, "u1", actual.User["id"])
	assert.Equal(t, "Org One", actual.Organization["name"])
	assert.Same(t, evt, actual.Event)
	assert.Empty(t, actual.Diagnostics)
	assert.Equal(t, 0, f.cognito.calls)
}

func Test_GetContext_FallsBackToAccessToken(t *testing.T) {
	f := newFixture()
	f.tokens.CreateUserToken(context.Background(), "u1", "org1", []string{"viewer"}, false)
	evt := eventWith(map[string]string{"apiToken": "never-issued", "accessToken": "access-1"})

	actual := f.resolver.GetContext(context.Background(), evt, models.CheckCallerSettings{})

	assert.Equal(t, "u1", actual.UserID)
	assert.Equal(t, "org1", actual.OrganizationID)
	assert.Equal(t, "access-1", actual.AccessToken)
	assert.Equal(t, []string{"viewer"}, actual.Roles)
	assert.Equal(t, "Org From Cognito", actual.Organization["name"])
	assert.Equal(t, []string{"apiToken: not_found"}, actual.Diagnostics)
}

func Test_GetContext_SkipsProfiles(t *testing.T) {
	f := newFixture()
	token, _ := f.tokens.CreateUserToken(context.Background(), "u1", "o1", nil, false)

	actual := f.resolver.GetContext(context.Background(), eventWith(map[string]string{"apiToken": token.Token}),
		models.CheckCallerSettings{SkipUserProfile: true, SkipOrganization: true})

	assert.Equal(t, "u1", actual.UserID)
	assert.Nil(t, actual.User)
	assert.Nil(t, actual.Organization)
}

func Test_GetContext_ProfileMissIsDiagnostic(t *testing.T) {
	f := newFixture()
	token, _ := f.tokens.CreateUserToken(context.Background(), "u1", "o-missing", nil, false)

	actual := f.resolver.GetContext(context.Background(), eventWith(map[string]string{"apiToken": token.Token}), models.CheckCallerSettings{})

	assert.Equal(t, "u1", actual.UserID)
	assert.NotNil(t, actual.User)
	assert.Nil(t, actual.Organization)
	require.Len(t, actual.Diagnostics, 1)
	assert.Contains(t, actual.Diagnostics[0], "organization profile")
}

func Test_GetContext_NoCredentials(t *testing.T) {
	f := newFixture()

	actual := f.resolver.GetContext(context.Background(), eventWith(nil), models.CheckCallerSettings{})

	require.NotNil(t, actual)
	assert.Empty(t, actual.UserID)
	assert.Empty(t, actual.Diagnostics)
}

func Test_ParseAPIToken_Statuses(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	assert.Equal(t, NotAttempted, f.resolver.ParseAPIToken(ctx, eventWith(nil)).Status)
	assert.Equal(t, NotFound, f.resolver.ParseAPIToken(ctx, eventWith(map[string]string{"apiToken": "x"})).Status)
}

func Test_ParseAccessToken_Statuses(t *testing.T) {
	ctx := context.Background()

	t.Run("not attempted", func(t *testing.T) {
		f := newFixture()
		assert.Equal(t, NotAttempted, f.resolver.ParseAccessToken(ctx, eventWith(nil)).Status)
		assert.Equal(t, 0, f.cognito.calls)
	})

	t.Run("cognito error", func(t *testing.T) {
		f := newFixture()
		f.cognito.err = errors.New("throttled")
		actual := f.resolver.ParseAccessToken(ctx, eventWith(map[string]string{"accessToken": "access-1"}))
		assert.Equal(t, Failed, actual.Status)
		assert.ErrorContains(t, actual.Err, "throttled")
	})

	t.Run("missing user token", func(t *testing.T) {
		f := newFixture()
		actual := f.resolver.ParseAccessToken(ctx, eventWith(map[string]string{"accessToken": "access-1"}))
		assert.Equal(t, Failed, actual.Status)
		assert.ErrorIs(t, actual.Err, ErrMissingUserToken)
	})

	t.Run("bad username", func(t *testing.T) {
		f := newFixture()
		f.cognito.users["access-2"] = "no-dot"
		actual := f.resolver.ParseAccessToken(ctx, eventWith(map[string]string{"accessToken": "access-2"}))
		assert.Equal(t, Failed, actual.Status)
	})

	t.Run("resolved", func(t *testing.T) {
		f := newFixture()
		f.tokens.CreateUserToken(ctx, "u1", "org1", []string{"admin"}, false)
		actual := f.resolver.ParseAccessToken(ctx, eventWith(map[string]string{"accessToken": "access-1"}))
		assert.Equal(t, Resolved, actual.Status)
		assert.Equal(t, "u1", actual.Context.UserID)
	})
}

func Test_GetSolution(t *testing.T) {
	f := newFixture()

	assert.Equal(t, "site-1", f.resolver.GetSolution(context.Background(), "sol1").RecaptchaSiteKey())
	assert.Nil(t, f.resolver.GetSolution(context.Background(), "missing"))
}

func Test_StringSlice(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, stringSlice([]interface{}{"a", 1, "b"}))
	assert.Equal(t, []string{"x"}, stringSlice([]string{"x"}))
	assert.Nil(t, stringSlice("x"))
}

func Test_ParseAPIToken_DerivedTokenIgnoresClaimedGrants(t *testing.T) {
	//Arrange
	f := newFixture()
	ctx := context.Background()
	f.tokens.CreateUserToken(ctx, "u1", "o1", []string{"viewer"}, false)
	derived, _ := f.tokens.CreateToken(ctx, "u1", "x", map[string]interface{}{
		"userId":         "u1",
		"organizationId": "o1",
		"roles":          []interface{}{"admin"},
		"licenses":       []interface{}{"enterprise"},
	}, false)

	//Act
	actual := f.resolver.ParseAPIToken(ctx, eventWith(map[string]string{"apiToken": derived.Token}))

	//Assert
	require.Equal(t, Resolved, actual.Status)
	assert.Equal(t, "u1", actual.Context.UserID)
	assert.NotContains(t, actual.Context.Roles, "admin")
	assert.Equal(t, []string{"viewer"}, actual.Context.Roles)
	assert.Empty(t, actual.Context.Licenses)
}

func Test_ParseAPIToken_DerivedTokenWithoutUserToken(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	derived, _ := f.tokens.CreateToken(ctx, "u9", "x", map[string]interface{}{
		"userId": "u9",
		"roles":  []interface{}{"admin"},
	}, false)

	actual := f.resolver.ParseAPIToken(ctx, eventWith(map[string]string{"apiToken": derived.Token}))

	require.Equal(t, Resolved, actual.Status)
	assert.Empty(t, actual.Context.Roles)
}

func Test_TokenData(t *testing.T) {
	callerContext := &models.CallerContext{UserID: "u1", OrganizationID: "o1", Roles: []string{"viewer"}}
	requested := map[string]interface{}{
		"scope":          "read",
		"userId":         "someone-else",
		"organizationId": "other-org",
		"roles":          []interface{}{"admin"},
		"licenses":       []interface{}{"enterprise"},
	}

	actual := TokenData(callerContext, requested)

	assert.Equal(t, map[string]interface{}{"scope": "read", "userId": "u1", "organizationId": "o1"}, actual)
	assert.Contains(t, requested, "roles")
	assert.Equal(t, map[string]interface{}{"userId": "u1", "organizationId": "o1"}, TokenData(callerContext, nil))
}
