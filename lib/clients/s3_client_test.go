package clients

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockS3API struct {
	objects map[string]string
	putErr  error
}

func (m *MockS3API) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := m.objects[*params.Bucket+"/"+*params.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func (m *MockS3API) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	body, _ := io.ReadAll(params.Body)
	m.objects[*params.Bucket+"/"+*params.Key] = string(body)
	return &s3.PutObjectOutput{}, nil
}

func (m *MockS3API) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := m.objects[*params.Bucket+"/"+*params.Key]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func Test_S3Client_PutThenGet(t *testing.T) {
	client := NewS3ClientFromAPI(&MockS3API{objects: map[string]string{}})
	ctx := context.Background()

	require.NoError(t, client.PutObject(ctx, "bucket", "a/b.json", []byte(`{"a":1}`), "application/json"))
	body, err := client.GetObject(ctx, "bucket", "a/b.json")

	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(body))

	exists, err := client.ObjectExists(ctx, "bucket", "a/b.json")
	require.NoError(t, err)
	assert.True(t, exists)
}

func Test_S3Client_GetMissing(t *testing.T) {
	client := NewS3ClientFromAPI(&MockS3API{objects: map[string]string{}})

	_, err := client.GetObject(context.Background(), "bucket", "missing.json")

	assert.ErrorIs(t, err, ErrObjectNotFound)

	exists, err := client.ObjectExists(context.Background(), "bucket", "missing.json")
	require.NoError(t, err)
	assert.False(t, exists)
}

func Test_S3Client_PutFailure(t *testing.T) {
	client := NewS3ClientFromAPI(&MockS3API{objects: map[string]string{}, putErr: errors.New("access denied")})

	err := client.PutObject(context.Background(), "bucket", "k", []byte("x"), "")

	assert.ErrorContains(t, err, "access denied")
}

func Test_NewS3Uploader_BadSecret(t *testing.T) {
	_, err := NewS3Uploader(Settings{Region: "us-east-2"}, "only-one-part")

	assert.Error(t, err)
}
