package caller

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/sirupsen/logrus"

	"lambdakit/lib/data"
	"lambdakit/lib/models"
	"lambdakit/lib/ratelimit"
	"lambdakit/lib/request"
)

type fakeTokens struct {
	issued map[string]*models.Token
	byUser map[string]*models.Token
	err    error
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{issued: map[string]*models.Token{}, byUser: map[string]*models.Token{}}
}

func (f *fakeTokens) EncryptToken(ctx context.Context, rawID string) (string, error) {
	return "enc:" + rawID, nil
}

func (f *fakeTokens) CreateToken(ctx context.Context, subjectID, tokenType string, data map[string]interface{}, allowMultiple bool) (*models.Token, error) {
	token := &models.Token{Token: "tok-" + subjectID + "-" + tokenType, Type: tokenType, Data: data}
	f.issued[token.Token] = token
	if tokenType == "user" {
		f.byUser[subjectID] = token
	}
	return token, nil
}

func (f *fakeTokens) GetToken(ctx context.Context, subjectID, tokenType string) (*models.Token, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byUser[subjectID], nil
}

func (f *fakeTokens) CheckToken(ctx context.Context, token string) *models.Token {
	return f.issued[token]
}

func (f *fakeTokens) CreateUserToken(ctx context.Context, userID, organizationID string, roles []string, allowMultiple bool) (*models.Token, error) {
	data := models.UserTokenData{UserID: userID, OrganizationID: organizationID, Roles: roles}
	return f.CreateToken(ctx, userID, "user", data.ToMap(), allowMultiple)
}

type fakeProfiles map[string]models.Profile

func (f fakeProfiles) GetProfile(ctx context.Context, id string, out interface{}) error {
	profile, ok := f[id]
	if !ok {
		return data.ErrProfileNotFound
	}
	raw, _ := json.Marshal(profile)
	return json.Unmarshal(raw, out)
}

func (f fakeProfiles) PutProfile(ctx context.Context, id string, item interface{}) error {
	return errors.New("read only")
}

func (f fakeProfiles) PutProfileIfVersion(ctx context.Context, id string, item interface{}, expectedVersion int64) error {
	return errors.New("read only")
}

type fakeSolutions map[string]models.Solution

func (f fakeSolutions) GetSolution(ctx context.Context, solutionID string) (models.Solution, error) {
	if s, ok := f[solutionID]; ok {
		return s, nil
	}
	return nil, data.ErrSolutionNotFound
}

type fakeCognito struct {
	users map[string]string
	err   error
	calls int
}

func (f *fakeCognito) GetUser(ctx context.Context, params *cognitoidentityprovider.GetUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.GetUserOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	username, ok := f.users[aws.ToString(params.AccessToken)]
	if !ok {
		return nil, errors.New("NotAuthorizedException: invalid access token")
	}
	return &cognitoidentityprovider.GetUserOutput{Username: aws.String(username)}, nil
}

type fakeCaptcha struct {
	valid bool
	err   error
	calls int
	site  string
}

func (f *fakeCaptcha) Verify(ctx context.Context, siteKey, token string) (bool, error) {
	f.calls++
	f.site = siteKey
	return f.valid, f.err
}

type countingLimiter struct {
	calls int
	deny  bool
}

func (l *countingLimiter) Consume(ctx context.Context, key string, points int) error {
	l.calls++
	if l.deny {
		return errors.New("insufficient points")
	}
	return nil
}

func (l *countingLimiter) Close() error { return nil }

type fixture struct {
	tokens    *fakeTokens
	cognito   *fakeCognito
	profiles  fakeProfiles
	solutions fakeSolutions
	captcha   *fakeCaptcha
	limiter   *countingLimiter
	resolver  *Resolver
}

func newFixture() *fixture {
	logger := logrus.New()
	extractor := request.NewExtractor(logger)
	f := &fixture{
		tokens:  newFakeTokens(),
		cognito: &fakeCognito{users: map[string]string{"access-1": "org1.u1"}},
		profiles: fakeProfiles{
			"user.u1":           {"email": "u1@example.com"},
			"organization.o1":   {"name": "Org One"},
			"organization.org1": {"name": "Org From Cognito"},
		},
		solutions: fakeSolutions{"sol1": {"keys": map[string]interface{}{"recaptchaSiteKey": "site-1"}}},
		captcha:   &fakeCaptcha{valid: true},
		limiter:   &countingLimiter{},
	}
	f.resolver = &Resolver{
		Tokens:    f.tokens,
		Cognito:   f.cognito,
		Profiles:  f.profiles,
		Solutions: f.solutions,
		Extractor: extractor,
		Logger:    logger,
	}
	return f
}

func (f *fixture) checker() *Checker {
	logger := logrus.New()
	return &Checker{
		Resolver:  f.resolver,
		RateLimit: ratelimit.NewService(f.limiter, logger),
		Captcha:   f.captcha,
		Extractor: f.resolver.Extractor,
		Logger:    logger,
	}
}
