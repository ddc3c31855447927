package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	appaws "github.com/reliefdesk/reliefdesk-backend/internal/aws"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestLocalStack runs S3 and SES in LocalStack for archive and email tests.
type TestLocalStack struct {
	Container *localstack.LocalStackContainer
	Config    aws.Config
	Endpoint  string
}

// NewTestLocalStack starts a container that is terminated when t finishes.
// Callers gate on testing.Short themselves.
func NewTestLocalStack(t *testing.T) *TestLocalStack {
	t.Helper()
	ctx := context.Background()

	container, err := localstack.Run(ctx,
		"localstack/localstack:3.0",
		testcontainers.CustomizeRequest(testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Env: map[string]string{"SERVICES": "s3,ses"},
			},
		}),
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForLog("Ready.").WithStartupTimeout(60*time.Second),
				wait.ForListeningPort("4566/tcp").WithStartupTimeout(60*time.Second),
			),
		),
	)
	require.NoError(t, err, "Failed to start LocalStack container")

	ls := &TestLocalStack{Container: container}
	t.Cleanup(ls.Close)

	ls.Endpoint, err = container.PortEndpoint(ctx, "4566/tcp", "http")
	require.NoError(t, err, "Failed to get LocalStack endpoint")

	ls.Config, err = config.LoadDefaultConfig(ctx,
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	require.NoError(t, err, "Failed to load AWS config")

	return ls
}

// S3 returns a service bound to a freshly created bucket.
func (ls *TestLocalStack) S3(t *testing.T, bucket string) *appaws.S3Service {
	t.Helper()
	svc := appaws.NewS3ServiceFromConfig(ls.Config, ls.Endpoint, bucket)
	require.NoError(t, svc.EnsureBucket(context.Background()), "Failed to create bucket %s", bucket)
	return svc
}

// Email returns an SES service whose sender identity is already verified.
func (ls *TestLocalStack) Email(t *testing.T, sender string) *appaws.EmailService {
	t.Helper()
	svc := appaws.NewEmailServiceFromConfig(ls.Config, ls.Endpoint, sender)
	_, err := svc.VerifyEmailIdentity(context.Background())
	require.NoError(t, err, "Failed to verify sender %s", sender)
	return svc
}

func (ls *TestLocalStack) Close() {
	if ls.Container != nil {
		_ = ls.Container.Terminate(context.Background())
	}
}
