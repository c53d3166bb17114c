package clients

import (
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
)

// NewCognitoIdentityProviderClient creates the identity provider client used
// to resolve access tokens.
func NewCognitoIdentityProviderClient(settings Settings) *cognitoidentityprovider.Client {
	return cognitoidentityprovider.NewFromConfig(mustLoad(settings))
}
