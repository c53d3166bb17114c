package data

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/sirupsen/logrus"
)

// SSMRepository is the secret store. Parameters are fetched once per
// process and served from memory afterwards.
type SSMRepository interface {
	GetParameters() (map[string]string, error)
	GetSecretValue(ctx context.Context, name string) (string, error)
}

type SSMClientInterface interface {
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
}

type SSMDao struct {
	SSM    SSMClientInterface
	Logger *logrus.Logger
	// Path is the parameter hierarchy holding the secrets, e.g. "/lambdakit".
	Path string

	mu     sync.Mutex
	params map[string]string
}

func (client *SSMDao) GetParameters() (map[string]string, error) {
	return client.load(context.TODO())
}

// GetSecretValue returns the parameter <Path>/<name>.
func (client *SSMDao) GetSecretValue(ctx context.Context, name string) (string, error) {
	params, err := client.load(ctx)
	if err != nil {
		return "", err
	}
	value, ok := params[client.path()+"/"+name]
	if !ok || value == "" {
		return "", fmt.Errorf("secret %s not found under %s", name, client.path())
	}
	return value, nil
}

func (client *SSMDao) path() string {
	if client.Path == "" {
		return "/lambdakit"
	}
	return strings.TrimSuffix(client.Path, "/")
}

func (client *SSMDao) load(ctx context.Context) (map[string]string, error) {
	client.mu.Lock()
	defer client.mu.Unlock()
	if client.params != nil {
		return client.params, nil
	}

	params := map[string]string{}
	input := &ssm.GetParametersByPathInput{
		Path:           aws.String(client.path()),
		Recursive:      aws.Bool(true),
		WithDecryption: aws.Bool(true),
	}

	for {
		output, err := client.SSM.GetParametersByPath(ctx, input)
		if err != nil {
			return nil, err
		}

		for _, param := range output.Parameters {
			params[*param.Name] = *param.Value
		}

		// If there's no NextToken, we've got all parameters
		if output.NextToken == nil {
			break
		}
		input.NextToken = output.NextToken
	}

	if client.Logger != nil && client.Logger.IsLevelEnabled(logrus.DebugLevel) {
		client.Logger.WithFields(logrus.Fields{
			"operation":    "GetParameters",
			"path":         client.path(),
			"params_count": len(params),
		}).Debug("Loaded SSM parameters")
	}
	client.params = params
	return params, nil
}
