package IO

import (
	"context"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"
)

var errNotS3 = errors.New("not an S3 URL")

// S3Client is the part of *s3.S3 the getter needs.
type S3Client interface {
	GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
}

// S3Getter reads public objects anonymously. Clients are created per
// region on first use.
type S3Getter struct {
	// NewClient overrides client construction (tests).
	NewClient func(region string) (S3Client, error)

	mu      sync.Mutex
	clients map[string]S3Client
}

func (g *S3Getter) client(region string) (S3Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.clients[region]; ok {
		return c, nil
	}
	newClient := g.NewClient
	if newClient == nil {
		newClient = anonymousClient
	}
	c, err := newClient(region)
	if err != nil {
		return nil, err
	}
	if g.clients == nil {
		g.clients = map[string]S3Client{}
	}
	g.clients[region] = c
	return c, nil
}

func anonymousClient(region string) (S3Client, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.AnonymousCredentials,
	})
	if err != nil {
		return nil, err
	}
	return s3.New(sess), nil
}

func (g *S3Getter) Get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	region, bucket, key, ok := ParseS3URL(rawURL)
	if !ok {
		return nil, &url.Error{Op: "s3 get", URL: rawURL, Err: errNotS3}
	}
	c, err := g.client(region)
	if err != nil {
		return nil, err
	}
	out, err := c.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

// ParseS3URL understands path-style (s3[.region].amazonaws.com/bucket/key)
// and virtual-hosted (bucket.s3[.region].amazonaws.com/key) URLs.
func ParseS3URL(rawURL string) (region, bucket, key string, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil || !strings.HasSuffix(u.Host, ".amazonaws.com") {
		return "", "", "", false
	}
	host := strings.TrimSuffix(u.Host, ".amazonaws.com")
	path := strings.TrimPrefix(u.Path, "/")
	region = "us-east-1"

	labels := strings.Split(host, ".")
	i := len(labels) - 1
	// Last label is either "s3", "s3-<region>" or a region after "s3".
	if i > 0 && labels[i-1] == "s3" {
		region = labels[i]
		i--
	} else if strings.HasPrefix(labels[i], "s3-") {
		region = strings.TrimPrefix(labels[i], "s3-")
	} else if labels[i] != "s3" {
		return "", "", "", false
	}
	if i > 0 {
		bucket = strings.Join(labels[:i], ".")
		key = path
	} else {
		bucket, key, _ = strings.Cut(path, "/")
	}
	if bucket == "" || key == "" {
		return "", "", "", false
	}
	return region, bucket, key, true
}
