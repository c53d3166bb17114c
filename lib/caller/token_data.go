package caller

import "lambdakit/lib/models"

// grantKeys are token data keys that only the token store may set.
var grantKeys = []string{"roles", "licenses"}

// TokenData builds the data stored with a token the caller issues for
// itself. Identity comes from callerContext; grants are stripped because
// the resolver reads them from the user's "user" token.
func TokenData(callerContext *models.CallerContext, requested map[string]interface{}) map[string]interface{} {
	tokenData := make(map[string]interface{}, len(requested)+2)
	for k, v := range requested {
		tokenData[k] = v
	}
	for _, k := range grantKeys {
		delete(tokenData, k)
	}
	tokenData["userId"] = callerContext.UserID
	tokenData["organizationId"] = callerContext.OrganizationID
	return tokenData
}
