package data

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"lambdakit/lib/constants"
	"lambdakit/lib/crypto"
	"lambdakit/lib/models"
	"lambdakit/lib/util"
)

// tokenSeparator joins the fields of the raw token id.
const tokenSeparator = "|"

// ErrInvalidSubjectID is returned for subject ids that contain the token
// separator and could therefore never be checked.
var ErrInvalidSubjectID = errors.New("subject id must not contain " + tokenSeparator)

// TokenRepository issues and verifies opaque bearer tokens kept in the
// tokens.<subjectId> profile record.
type TokenRepository interface {
	EncryptToken(ctx context.Context, rawID string) (string, error)
	CreateToken(ctx context.Context, subjectID, tokenType string, data map[string]interface{}, allowMultiple bool) (*models.Token, error)
	GetToken(ctx context.Context, subjectID, tokenType string) (*models.Token, error)
	CheckToken(ctx context.Context, token string) *models.Token
	CreateUserToken(ctx context.Context, userID, organizationID string, roles []string, allowMultiple bool) (*models.Token, error)
}

// TokenDao implements TokenRepository on top of a ProfileRepository.
// Writes are versioned, so two concurrent creations for the same subject
// fail one of them with ErrProfileConflict instead of losing an update.
type TokenDao struct {
	Profiles ProfileRepository
	Secrets  SSMRepository
	Logger   *logrus.Logger
	// Now and NewID are replaceable in tests.
	Now   func() time.Time
	NewID func() string
}

func (dao *TokenDao) now() time.Time {
	if dao.Now != nil {
		return dao.Now()
	}
	return time.Now()
}

func (dao *TokenDao) newID() string {
	if dao.NewID != nil {
		return dao.NewID()
	}
	return util.NewGuid()
}

func (dao *TokenDao) secrets(ctx context.Context) (string, string, error) {
	code, err := dao.Secrets.GetSecretValue(ctx, constants.SECRET_CODE)
	if err != nil {
		return "", "", err
	}
	iv, err := dao.Secrets.GetSecretValue(ctx, constants.SECRET_IV)
	if err != nil {
		return "", "", err
	}
	return code, iv, nil
}

// EncryptToken encrypts rawID with the SECRET_CODE/SECRET_IV pair.
func (dao *TokenDao) EncryptToken(ctx context.Context, rawID string) (string, error) {
	code, iv, err := dao.secrets(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read token secrets: %w", err)
	}
	return crypto.Encrypt(rawID, code, iv)
}

// CreateToken issues a token of tokenType for subjectID. Unless
// allowMultiple is set, an existing entry of the same type keeps its token
// string and only has its data replaced.
func (dao *TokenDao) CreateToken(ctx context.Context, subjectID, tokenType string, data map[string]interface{}, allowMultiple bool) (*models.Token, error) {
	if subjectID == "" || tokenType == "" {
		return nil, errors.New("subject id and token type are required")
	}
	if strings.Contains(subjectID, tokenSeparator) {
		return nil, ErrInvalidSubjectID
	}

	id := models.TokensProfileID(subjectID)
	createdOn := util.UTCISOString(dao.now())

	profile, err := dao.loadTokenProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	expectedVersion := int64(0)
	if profile == nil {
		profile = &models.TokenProfile{ID: id, CreatedOn: createdOn}
	} else {
		expectedVersion = profile.Version
	}

	tokenString, err := dao.EncryptToken(ctx, strings.Join([]string{subjectID, tokenType, dao.newID()}, tokenSeparator))
	if err != nil {
		return nil, err
	}
	token := models.Token{Token: tokenString, Type: tokenType, Data: data, CreatedOn: createdOn}

	index := -1
	if !allowMultiple {
		for i := range profile.Tokens {
			if profile.Tokens[i].Type == tokenType {
				profile.Tokens[i].Data = data
				index = i
				break
			}
		}
	}
	if index < 0 {
		profile.Tokens = append(profile.Tokens, token)
		index = len(profile.Tokens) - 1
	}

	profile.Version = expectedVersion + 1
	if err := dao.Profiles.PutProfileIfVersion(ctx, id, profile, expectedVersion); err != nil {
		return nil, err
	}

	dao.Logger.WithFields(logrus.Fields{
		"operation":      "CreateToken",
		"subject_id":     subjectID,
		"token_type":     tokenType,
		"allow_multiple": allowMultiple,
		"token_count":    len(profile.Tokens),
	}).Debug("Token stored")

	stored := profile.Tokens[index]
	return &stored, nil
}

// CreateUserToken returns the subject's "user" token, creating it with
// {userId, organizationId, roles} when none exists.
func (dao *TokenDao) CreateUserToken(ctx context.Context, userID, organizationID string, roles []string, allowMultiple bool) (*models.Token, error) {
	token, err := dao.GetToken(ctx, userID, constants.TOKEN_TYPE_USER)
	if err != nil {
		return nil, err
	}
	if token != nil {
		return token, nil
	}
	data := models.UserTokenData{UserID: userID, OrganizationID: organizationID, Roles: roles}
	return dao.CreateToken(ctx, userID, constants.TOKEN_TYPE_USER, data.ToMap(), allowMultiple)
}

// GetToken returns the first token of tokenType, or nil when the profile
// or the entry does not exist.
func (dao *TokenDao) GetToken(ctx context.Context, subjectID, tokenType string) (*models.Token, error) {
	profile, err := dao.loadTokenProfile(ctx, models.TokensProfileID(subjectID))
	if err != nil || profile == nil {
		return nil, err
	}
	for _, t := range profile.Tokens {
		if t.Type == tokenType {
			found := t
			return &found, nil
		}
	}
	return nil, nil
}

// CheckToken proves token was issued and is still recorded. Every failure
// (bad ciphertext, missing secrets, store errors) yields nil.
func (dao *TokenDao) CheckToken(ctx context.Context, token string) *models.Token {
	code, iv, err := dao.secrets(ctx)
	if err != nil {
		dao.Logger.WithFields(logrus.Fields{
			"operation": "CheckToken",
			"error":     err.Error(),
		}).Error("Failed to read token secrets")
		return nil
	}

	raw, err := crypto.Decrypt(token, code, iv)
	if err != nil || raw == "" {
		dao.Logger.WithField("operation", "CheckToken").Debug("Token could not be decrypted")
		return nil
	}
	subjectID, _, _ := strings.Cut(raw, tokenSeparator)
	if subjectID == "" {
		return nil
	}

	profile, err := dao.loadTokenProfile(ctx, models.TokensProfileID(subjectID))
	if err != nil || profile == nil {
		return nil
	}
	for _, t := range profile.Tokens {
		if t.Token == token {
			found := t
			return &found
		}
	}
	return nil
}

// loadTokenProfile returns nil, nil when the record does not exist.
func (dao *TokenDao) loadTokenProfile(ctx context.Context, id string) (*models.TokenProfile, error) {
	var profile models.TokenProfile
	err := dao.Profiles.GetProfile(ctx, id, &profile)
	if errors.Is(err, ErrProfileNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
