package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"lambdakit/lib/api"
	"lambdakit/lib/caller"
	"lambdakit/lib/captcha"
	"lambdakit/lib/clients"
	"lambdakit/lib/config"
	"lambdakit/lib/constants"
	"lambdakit/lib/data"
	"lambdakit/lib/messaging"
	"lambdakit/lib/models"
	"lambdakit/lib/ratelimit"
	"lambdakit/lib/request"
	"lambdakit/lib/util"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"
)

// Global variables for Lambda cold start optimization
var (
	logger          *logrus.Logger
	cfg             *config.Config
	awsSettings     clients.Settings
	ssmRepository   data.SSMRepository
	tokenRepository data.TokenRepository
	extractor       *request.Extractor
	checker         *caller.Checker
	dispatcher      *messaging.Dispatcher
	uploader        *clients.S3Uploader
)

func LambdaHandler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger.WithFields(logrus.Fields{
		"operation": "LambdaHandler",
		"method":    req.HTTPMethod,
		"path":      req.Path,
		"resource":  req.Resource,
	}).Info("Caller context request received")

	evt := request.FromAPIGatewayRequest(req, logger)

	switch {
	case req.HTTPMethod == http.MethodGet && req.Resource == "/context":
		return handleGetContext(ctx, evt), nil
	case req.HTTPMethod == http.MethodPost && req.Resource == "/tokens":
		return handleCreateToken(ctx, evt), nil
	case req.HTTPMethod == http.MethodPost && req.Resource == "/actions":
		return handleSendAction(ctx, evt), nil
	case req.HTTPMethod == http.MethodPost && req.Resource == "/messages":
		return handleSendMessage(ctx, evt), nil
	case req.HTTPMethod == http.MethodPost && req.Resource == "/uploads":
		return handleCreateUploadURL(ctx, evt), nil
	}
	return api.OnError(models.NewLambdaError(models.HTTPERROR_404, constants.ERROR_PARAMETER_INVALID, "callerContext.route", nil), nil, logger, api.Redact()), nil
}

// checkCaller runs the pipeline and returns the context when the request
// may proceed, or the response to send otherwise.
func checkCaller(ctx context.Context, evt *models.Event, settings models.CheckCallerSettings) (*models.CallerContext, *events.APIGatewayProxyResponse) {
	if settings.APIName == "" {
		settings.APIName = cfg.APIName
	}
	result, err := checker.CheckCaller(ctx, evt, settings)
	if resp, done := api.FromCheckCaller(result, err, logger, api.Redact()); done {
		return nil, &resp
	}
	return result.Context, nil
}

// handleGetContext handles GET /context
func handleGetContext(ctx context.Context, evt *models.Event) events.APIGatewayProxyResponse {
	settings := models.CheckCallerSettings{
		NeedSolution:    extractor.GetStringValue(evt, "solutionId", "") != "",
		VerifyReCaptcha: extractor.GetStringValue(evt, "recaptchaToken", "") != "",
	}
	callerContext, resp := checkCaller(ctx, evt, settings)
	if resp != nil {
		return *resp
	}
	return api.OnSuccess(callerContext, logger)
}

// handleCreateToken handles POST /tokens
func handleCreateToken(ctx context.Context, evt *models.Event) events.APIGatewayProxyResponse {
	callerContext, resp := checkCaller(ctx, evt, models.CheckCallerSettings{APIPoints: 4})
	if resp != nil {
		return *resp
	}

	tokenType := extractor.GetStringValue(evt, "type", constants.TOKEN_TYPE_USER)
	allowMultiple := extractor.GetBooleanValue(evt, "allowMultiple", false)

	var (
		token *models.Token
		err   error
	)
	if tokenType == constants.TOKEN_TYPE_USER {
		token, err = tokenRepository.CreateUserToken(ctx, callerContext.UserID, callerContext.OrganizationID, callerContext.Roles, allowMultiple)
	} else {
		tokenData := caller.TokenData(callerContext, extractor.GetObjectValue(evt, "data", nil))
		token, err = tokenRepository.CreateToken(ctx, callerContext.UserID, tokenType, tokenData, allowMultiple)
	}
	if err != nil {
		status, errorType := models.HTTPERROR_500, constants.ERROR_DYNAMODB
		switch {
		case errors.Is(err, data.ErrProfileConflict):
			status = models.HTTPERROR_409
		case errors.Is(err, data.ErrInvalidSubjectID):
			status, errorType = models.HTTPERROR_400, constants.ERROR_PARAMETER_INVALID
		}
		return api.OnError(models.NewLambdaError(status, errorType, "callerContext.createToken", nil), err, logger, api.Redact())
	}
	return api.OnSuccess(token, logger)
}

// handleSendAction handles POST /actions
func handleSendAction(ctx context.Context, evt *models.Event) events.APIGatewayProxyResponse {
	callerContext, resp := checkCaller(ctx, evt, models.CheckCallerSettings{NeedSolution: true})
	if resp != nil {
		return *resp
	}

	action, err := dispatcher.SendAction(ctx,
		extractor.GetStringValue(evt, "topic", ""),
		extractor.GetObjectValue(evt, "data", nil),
		actionSettings(evt, callerContext))
	if err != nil {
		return api.OnError(nil, err, logger, api.Redact())
	}
	return api.OnSuccess(map[string]string{"id": action.ID}, logger)
}

// handleSendMessage handles POST /messages
func handleSendMessage(ctx context.Context, evt *models.Event) events.APIGatewayProxyResponse {
	callerContext, resp := checkCaller(ctx, evt, models.CheckCallerSettings{NeedSolution: true})
	if resp != nil {
		return *resp
	}

	var template models.MessageTemplate
	if raw := extractor.GetObjectValue(evt, "template", nil); raw != nil {
		if err := util.Decode(raw, &template); err != nil {
			return api.OnError(models.NewLambdaError(models.HTTPERROR_400, constants.ERROR_PARAMETER_INVALID, "callerContext.sendMessage", nil), err, logger, api.Redact())
		}
	}

	actions, err := dispatcher.SendMessage(ctx, &template, actionSettings(evt, callerContext))
	if err != nil {
		return api.OnError(nil, err, logger, api.Redact())
	}
	ids := make([]string, 0, len(actions))
	for _, action := range actions {
		ids = append(ids, action.ID)
	}
	return api.OnSuccess(map[string]interface{}{"ids": ids}, logger)
}

// handleCreateUploadURL handles POST /uploads
func handleCreateUploadURL(ctx context.Context, evt *models.Event) events.APIGatewayProxyResponse {
	callerContext, resp := checkCaller(ctx, evt, models.CheckCallerSettings{NeedSolution: true})
	if resp != nil {
		return *resp
	}

	fileName := extractor.GetStringValue(evt, "fileName", "")
	if fileName == "" {
		return api.OnError(models.NewLambdaError(models.HTTPERROR_400, constants.ERROR_PARAMETER_MISSING, "callerContext.createUploadUrl",
			map[string]interface{}{"paramName": "fileName"}), nil, logger)
	}
	if uploader == nil {
		if err := setupUploader(); err != nil {
			return api.OnError(models.NewLambdaError(models.HTTPERROR_500, constants.ERROR_S3, "callerContext.createUploadUrl", nil), err, logger, api.Redact())
		}
	}

	bucket := fmt.Sprintf("%s-upload", cfg.ResourcePrefix)
	key := fmt.Sprintf("%s/%s/%s/%s", extractor.GetStringValue(evt, "solutionId", ""), callerContext.OrganizationID, callerContext.UserID, fileName)
	url, err := uploader.GenerateUploadURL(ctx, bucket, key, 15*time.Minute)
	if err != nil {
		return api.OnError(models.NewLambdaError(models.HTTPERROR_500, constants.ERROR_S3, "callerContext.createUploadUrl", nil), err, logger, api.Redact())
	}
	return api.OnSuccess(map[string]string{"url": url, "bucket": bucket, "key": key}, logger)
}

func actionSettings(evt *models.Event, callerContext *models.CallerContext) models.ActionSettings {
	return models.ActionSettings{
		SolutionID:            extractor.GetStringValue(evt, "solutionId", ""),
		Name:                  extractor.GetStringValue(evt, "name", ""),
		UserID:                callerContext.UserID,
		OrganizationID:        callerContext.OrganizationID,
		User:                  callerContext.User,
		Organization:          callerContext.Organization,
		RequireUserID:         true,
		RequireOrganizationID: true,
	}
}

func main() {
	lambda.Start(LambdaHandler)
}

func init() {
	var err error

	cfg, err = config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Error while loading configuration")
	}

	// Logger setup
	logger = util.NewLogger(cfg.LogLevel, cfg.IsLocal)

	awsSettings = clients.Settings{Region: cfg.Region, IsLocal: cfg.IsLocal, LocalEndpoint: cfg.LocalEndpoint}

	// Secrets (SECRET_CODE, SECRET_IV, recaptcha keys) come from SSM Parameter Store
	ssmRepository = &data.SSMDao{
		SSM:    clients.NewSSMClient(awsSettings),
		Logger: logger,
		Path:   cfg.SecretPath,
	}
	if _, err = ssmRepository.GetParameters(); err != nil {
		logger.WithFields(logrus.Fields{
			"operation": "init",
			"error":     err.Error(),
		}).Fatal("Error while getting SSM params from parameter store")
	}

	profiles, err := setupProfileRepository()
	if err != nil {
		logger.WithFields(logrus.Fields{
			"operation": "init",
			"error":     err.Error(),
		}).Fatal("Error setting up profile store")
	}

	tokenRepository = &data.TokenDao{
		Profiles: profiles,
		Secrets:  ssmRepository,
		Logger:   logger,
	}

	s3Client := clients.NewS3Client(awsSettings)
	var solutions data.SolutionRepository = &data.SolutionDao{S3: s3Client, Bucket: cfg.Buckets.Solution, Logger: logger}
	if cfg.Buckets.Cache != "" {
		solutions = &data.CachedSolutionDao{
			Solutions:     solutions,
			Cache:         &data.CacheDao{S3: s3Client, Bucket: cfg.Buckets.Cache, Logger: logger},
			ExpireMinutes: 60,
		}
	}

	limiter, err := setupLimiter()
	if err != nil {
		logger.WithFields(logrus.Fields{
			"operation": "init",
			"error":     err.Error(),
		}).Fatal("Error setting up rate limiter")
	}

	extractor = request.NewExtractor(logger)
	checker = &caller.Checker{
		Resolver: &caller.Resolver{
			Tokens:    tokenRepository,
			Cognito:   clients.NewCognitoIdentityProviderClient(awsSettings),
			Profiles:  profiles,
			Solutions: solutions,
			Extractor: extractor,
			Logger:    logger,
		},
		RateLimit: ratelimit.NewService(limiter, logger),
		Captcha:   captcha.NewRecaptchaVerifier(ssmRepository, logger),
		Extractor: extractor,
		Logger:    logger,
	}

	dispatcher = &messaging.Dispatcher{
		S3:                s3Client,
		SNS:               clients.NewSNSClient(awsSettings),
		ResourcePrefix:    cfg.ResourcePrefix,
		SNSTopicARNPrefix: cfg.SNSTopicARNPrefix,
		Logger:            logger,
	}

	logger.WithField("operation", "init").Info("Caller Context Lambda initialization completed successfully")
}

func setupProfileRepository() (data.ProfileRepository, error) {
	if cfg.Profile.Store == "postgres" {
		db, err := clients.NewPostgresSQLClient(cfg.Profile.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("error creating PostgreSQL client: %w", err)
		}
		return &data.PostgresProfileDao{DB: db, Logger: logger}, nil
	}
	return &data.ProfileDao{
		DynamoDB:  clients.NewDynamoDBClient(awsSettings),
		TableName: cfg.Profile.TableName,
		Logger:    logger,
	}, nil
}

func setupLimiter() (ratelimit.Limiter, error) {
	if cfg.RateLimit.RedisAddr == "" {
		return ratelimit.NewMemory(cfg.RateLimit.PointsPerPeriod, cfg.RateLimit.Duration), nil
	}
	client, err := clients.NewRedisClient(context.Background(), cfg.RateLimit.RedisAddr)
	if err != nil {
		return nil, err
	}
	if logger.IsLevelEnabled(logrus.DebugLevel) {
		logger.WithField("operation", "setupLimiter").Debug("Redis rate limiter initialized successfully")
	}
	return ratelimit.NewRedis(client, cfg.RateLimit.PointsPerPeriod, cfg.RateLimit.Duration), nil
}

// setupUploader reads the S3_UPLOADER secret on first use.
func setupUploader() error {
	secret, err := ssmRepository.GetSecretValue(context.Background(), constants.S3_UPLOADER)
	if err != nil {
		return err
	}
	uploader, err = clients.NewS3Uploader(awsSettings, secret)
	return err
}
