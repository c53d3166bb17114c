// Package main implements the Cognito Pre Token Generation V2.0 trigger.
//
// Cognito usernames have the form "<organizationId>.<userId>". The trigger
// looks up the user's "user" token in the profile store and copies its
// organization, roles and licenses into both the ID and the access token,
// mapping roles to Cognito groups. Lookup failures never block sign-in: the
// event is returned unchanged.
package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lambdakit/lib/clients"
	"lambdakit/lib/config"
	"lambdakit/lib/constants"
	"lambdakit/lib/data"
	"lambdakit/lib/util"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"
)

// Global variables for Lambda cold start optimization
var (
	logger          *logrus.Logger
	tokenRepository data.TokenRepository
)

func Handler(ctx context.Context, event events.CognitoEventUserPoolsPreTokenGenV2_0) (events.CognitoEventUserPoolsPreTokenGenV2_0, error) {
	logger.WithFields(logrus.Fields{
		"trigger_source": event.TriggerSource,
		"user_pool_id":   event.UserPoolID,
		"username":       event.UserName,
		"operation":      "Handler",
	}).Debug("Processing Cognito Pre Token Generation V2.0 event")

	if !isValidTriggerSourceV2(event.TriggerSource) {
		logger.WithFields(logrus.Fields{
			"trigger_source": event.TriggerSource,
			"operation":      "Handler",
		}).Warn("Invalid trigger source for V2.0, returning event unchanged")
		return event, nil
	}

	if event.UserName == "" {
		logger.WithField("operation", "Handler").Error("Username is empty in event")
		return event, errors.New("username cannot be empty")
	}

	organizationID, userID, ok := strings.Cut(event.UserName, ".")
	if !ok || userID == "" {
		logger.WithFields(logrus.Fields{
			"username":  event.UserName,
			"operation": "Handler",
		}).Warn("Username is not <organizationId>.<userId>, proceeding without custom claims")
		return event, nil
	}

	token, err := tokenRepository.GetToken(ctx, userID, constants.TOKEN_TYPE_USER)
	if err != nil || token == nil {
		fields := logrus.Fields{"user_id": userID, "operation": "Handler"}
		if err != nil {
			fields["error"] = err.Error()
		}
		logger.WithFields(fields).Error("Failed to load user token, proceeding without custom claims")
		return event, nil
	}

	roles := stringList(token.Data["roles"])
	claimsToAdd := map[string]interface{}{
		"user_id":         userID,
		"organization_id": organizationID,
		"roles":           strings.Join(roles, ","),
		"licenses":        strings.Join(stringList(token.Data["licenses"]), ","),
	}

	event.Response.ClaimsAndScopeOverrideDetails = events.ClaimsAndScopeOverrideDetailsV2_0{
		IDTokenGeneration: events.IDTokenGenerationV2_0{
			ClaimsToAddOrOverride: claimsToAdd,
			ClaimsToSuppress:      []string{},
		},
		AccessTokenGeneration: events.AccessTokenGenerationV2_0{
			ClaimsToAddOrOverride: claimsToAdd,
			ClaimsToSuppress:      []string{},
			ScopesToAdd:           []string{},
			ScopesToSuppress:      []string{},
		},
		GroupOverrideDetails: events.GroupConfigurationV2_0{
			GroupsToOverride:   roles,
			IAMRolesToOverride: []string{},
		},
	}

	if logger.IsLevelEnabled(logrus.DebugLevel) {
		logger.WithFields(logrus.Fields{
			"user_id":         userID,
			"organization_id": organizationID,
			"roles_count":     len(roles),
			"operation":       "Handler",
		}).Debug("Successfully added custom claims to token")
	}
	return event, nil
}

func isValidTriggerSourceV2(triggerSource string) bool {
	switch triggerSource {
	case "TokenGeneration_HostedAuth",
		"TokenGeneration_Authentication",
		"TokenGeneration_NewPasswordChallenge",
		"TokenGeneration_AuthenticateDevice",
		"TokenGeneration_RefreshTokens":
		return true
	}
	return false
}

func stringList(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []interface{}:
		result := make([]string, 0, len(t))
		for _, item := range t {
			result = append(result, fmt.Sprint(item))
		}
		return result
	}
	return []string{}
}

func main() {
	lambda.Start(Handler)
}

func init() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Error while loading configuration")
	}

	logger = util.NewLogger(cfg.LogLevel, cfg.IsLocal)
	awsSettings := clients.Settings{Region: cfg.Region, IsLocal: cfg.IsLocal, LocalEndpoint: cfg.LocalEndpoint}

	ssmRepository := &data.SSMDao{
		SSM:    clients.NewSSMClient(awsSettings),
		Logger: logger,
		Path:   cfg.SecretPath,
	}

	var profiles data.ProfileRepository
	if cfg.Profile.Store == "postgres" {
		db, err := clients.NewPostgresSQLClient(cfg.Profile.PostgresDSN)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"operation": "init",
				"error":     err.Error(),
			}).Fatal("Error setting up PostgreSQL client")
		}
		profiles = &data.PostgresProfileDao{DB: db, Logger: logger}
	} else {
		profiles = &data.ProfileDao{
			DynamoDB:  clients.NewDynamoDBClient(awsSettings),
			TableName: cfg.Profile.TableName,
			Logger:    logger,
		}
	}

	tokenRepository = &data.TokenDao{
		Profiles: profiles,
		Secrets:  ssmRepository,
		Logger:   logger,
	}

	logger.WithField("operation", "init").Info("Token Customizer Lambda initialization completed successfully")
}
