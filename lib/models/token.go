package models

// Token is one issued bearer token inside a tokens.<subjectId> profile.
type Token struct {
	Token     string                 `json:"token"`
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedOn string                 `json:"createdOn"`
}

// TokenProfile is the profile record holding all tokens of one subject.
// Version backs the conditional write of the DynamoDB profile store.
type TokenProfile struct {
	ID        string  `json:"id"`
	CreatedOn string  `json:"createdOn"`
	Version   int64   `json:"version"`
	Tokens    []Token `json:"tokens"`
}

// UserTokenData is the payload of a "user" token.
type UserTokenData struct {
	UserID         string   `json:"userId"`
	OrganizationID string   `json:"organizationId"`
	Roles          []string `json:"roles"`
	Licenses       []string `json:"licenses,omitempty"`
}

// ToMap converts the payload into the loosely typed token data.
func (d UserTokenData) ToMap() map[string]interface{} {
	data := map[string]interface{}{
		"userId":         d.UserID,
		"organizationId": d.OrganizationID,
		"roles":          d.Roles,
	}
	if len(d.Licenses) > 0 {
		data["licenses"] = d.Licenses
	}
	return data
}

// Profile is a loosely typed profile record (user.<id>, organization.<id>, ...).
type Profile map[string]interface{}

// Profile id prefixes.
func UserProfileID(id string) string         { return "user." + id }
func OrganizationProfileID(id string) string { return "organization." + id }
func TokensProfileID(id string) string       { return "tokens." + id }
func SolutionProfileID(id string) string     { return "solution." + id }
