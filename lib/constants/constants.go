package constants

// SSM parameter names, relative to the configured secret path.
const (
	SECRET_CODE          = "SECRET_CODE"
	SECRET_IV            = "SECRET_IV"
	GOOGLE_RECAPTCHA_KEY = "GOOGLE_RECAPTCHA_KEY"
	GOOGLE_PROJECT_ID    = "GOOGLE_PROJECT_ID"
	S3_UPLOADER          = "S3_UPLOADER"
	ALLOWED_ORIGINS      = "ALLOWED_ORIGINS"
	DRIVER_NAME          = "postgres"
)

// Error type tags carried in LambdaError.Type.
const (
	ERROR_PARAMETER_MISSING = "ERROR_PARAMETER_MISSING"
	ERROR_PARAMETER_INVALID = "ERROR_PARAMETER_INVALID"
	ERROR_TOO_MANY_REQUESTS = "ERROR_TOO_MANY_REQUESTS"
	ERROR_AUTH_FAILED       = "ERROR_AUTH_FAILED"
	ERROR_UNEXPECTED        = "ERROR_UNEXPECTED"
	ERROR_S3                = "ERROR_S3"
	ERROR_DYNAMODB          = "ERROR_DYNAMODB"
)

const (
	// AWS_EVENTS_SOURCE is the source of scheduled (EventBridge) invocations.
	AWS_EVENTS_SOURCE = "aws.events"

	// GUID_EMPTY stands in for a missing organization id in action paths.
	GUID_EMPTY = "00000000-0000-0000-0000-000000000000"

	TOKEN_TYPE_USER = "user"

	RATE_LIMIT_DURATION          = 1
	RATE_LIMIT_POINTS_PER_SECOND = 2
	RATE_LIMIT_DEFAULT_COST      = 2

	// CACHE_DEFAULT_EXPIRE_MINUTES is 30 days.
	CACHE_DEFAULT_EXPIRE_MINUTES = 30 * 24 * 60

	RECAPTCHA_ASSESSMENT_URL = "https://recaptchaenterprise.googleapis.com/v1beta1/projects/%s/assessments?key=%s"
)
