package models

// ActionSettings controls where and how an action record is written.
type ActionSettings struct {
	SolutionID            string  `json:"solutionId"`
	Domain                string  `json:"domain,omitempty"`
	ID                    string  `json:"id,omitempty"`
	Name                  string  `json:"name,omitempty"`
	UserID                string  `json:"userId,omitempty"`
	OrganizationID        string  `json:"organizationId,omitempty"`
	User                  Profile `json:"user,omitempty"`
	Organization          Profile `json:"organization,omitempty"`
	RequireUserID         bool    `json:"requireUserId"`
	RequireOrganizationID bool    `json:"requireOrganizationId"`
	Type                  string  `json:"type,omitempty"`
}

// Action is the record written to <resourcePrefix>-<type> and later fanned
// out to SNS subscribers.
type Action struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name,omitempty"`
	CreatedOn      string                 `json:"createdOn"`
	CreatedBy      string                 `json:"createdBy,omitempty"`
	SolutionID     string                 `json:"solutionId"`
	OrganizationID string                 `json:"organizationId"`
	User           Profile                `json:"user,omitempty"`
	Organization   Profile                `json:"organization,omitempty"`
	Data           map[string]interface{} `json:"data"`
	Settings       ActionSettings         `json:"settings"`
	SNSTopic       string                 `json:"snsTopic"`
	S3BucketName   string                 `json:"s3BucketName"`
	S3FileName     string                 `json:"s3FileName"`
}

// ActionNotification is the SNS message pointing at a stored action.
type ActionNotification struct {
	BucketName string `json:"bucketName"`
	FileName   string `json:"fileName"`
}

// MessageRecipients lists who receives a templated message.
type MessageRecipients struct {
	To  []string `json:"to"`
	CC  []string `json:"cc,omitempty"`
	BCC []string `json:"bcc,omitempty"`
}

// MessageTemplate describes a message delivered over one or more methods.
type MessageTemplate struct {
	Content                  map[string]interface{} `json:"content"`
	Methods                  []string               `json:"methods,omitempty"`
	Recipients               *MessageRecipients     `json:"recipients,omitempty"`
	Sender                   string                 `json:"sender,omitempty"`
	ContextUserProps         string                 `json:"contextUserProps,omitempty"`
	ContextOrganizationProps string                 `json:"contextOrganizationProps,omitempty"`
}
