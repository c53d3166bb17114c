package clients

import (
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

func NewSSMClient(settings Settings) *ssm.Client {
	return ssm.NewFromConfig(mustLoad(settings))
}
