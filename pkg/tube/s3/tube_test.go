package s3

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"hoover/pkg/core"
	"hoover/pkg/tube"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 记录上传的对象
type fakeS3 struct {
	bucketExists bool
	created      []string
	puts         map[string]*s3.PutObjectInput
	bodies       map[string][]byte
	putErr       error
}

func newFakeS3(exists bool) *fakeS3 {
	return &fakeS3{bucketExists: exists, puts: map[string]*s3.PutObjectInput{}, bodies: map[string][]byte{}}
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if !f.bucketExists {
		return nil, errors.New("404 not found")
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.created = append(f.created, aws.ToString(in.Bucket))
	f.bucketExists = true
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Key)
	f.puts[key] = in
	f.bodies[key] = body
	return &s3.PutObjectOutput{}, nil
}

func testObject() (*core.DataObject, core.Header) {
	obj := &core.DataObject{Payload: []byte("payload"), Size: 7, Hash: "0123456789abcdef0123456789abcdef01234567", Compression: "gz"}
	h := core.Header{
		Filename:    "/scratch/run/app.darshan.gz",
		NodeID:      "nid00042",
		TaskID:      "42-7",
		Compression: "gz",
		Type:        "darshan",
		Hash:        obj.Hash,
		Size:        obj.Size,
	}
	return obj, h
}

func TestOpenCreatesBucket(t *testing.T) {
	api := newFakeS3(false)
	tb, err := OpenWithClient(context.Background(), api, tube.S3Config{Bucket: "hoover"})
	require.NoError(t, err)
	assert.Equal(t, []string{"hoover"}, api.created)
	assert.Equal(t, "s3://hoover", tb.Destination())
}

func TestOpenRequiresBucket(t *testing.T) {
	_, err := OpenWithClient(context.Background(), newFakeS3(true), tube.S3Config{})
	assert.ErrorIs(t, err, tube.ErrDestinationUnwritable)
}

func TestSend(t *testing.T) {
	api := newFakeS3(true)
	tb, err := OpenWithClient(context.Background(), api, tube.S3Config{Bucket: "hoover", Prefix: "runs/42"})
	require.NoError(t, err)
	defer tb.Close()

	obj, h := testObject()
	require.NoError(t, tb.Send(context.Background(), obj, h))

	key := "runs/42/app.darshan.gz"
	require.Contains(t, api.puts, key)
	assert.Equal(t, []byte("payload"), api.bodies[key])
	assert.Equal(t, "application/gzip", aws.ToString(api.puts[key].ContentType))
	assert.Equal(t, map[string]string{
		"filename":    h.Filename,
		"node_id":     "nid00042",
		"task_id":     "42-7",
		"compression": "gz",
		"sha_hash":    string(obj.Hash),
		"size":        "7",
		"type":        "darshan",
	}, api.puts[key].Metadata)
}

func TestSendCustomHashField(t *testing.T) {
	api := newFakeS3(true)
	tb, err := OpenWithClient(context.Background(), api, tube.S3Config{Bucket: "hoover", HashField: "sha1sum"})
	require.NoError(t, err)
	defer tb.Close()

	obj, h := testObject()
	require.NoError(t, tb.Send(context.Background(), obj, h))

	meta := api.puts["app.darshan.gz"].Metadata
	assert.Equal(t, string(obj.Hash), meta["sha1sum"])
	assert.NotContains(t, meta, "sha_hash")
}

func TestSendFailure(t *testing.T) {
	api := newFakeS3(true)
	api.putErr = errors.New("access denied")
	tb, err := OpenWithClient(context.Background(), api, tube.S3Config{Bucket: "hoover"})
	require.NoError(t, err)

	obj, h := testObject()
	assert.ErrorIs(t, tb.Send(context.Background(), obj, h), tube.ErrPublishError)

	require.NoError(t, tb.Close())
	assert.ErrorIs(t, tb.Send(context.Background(), obj, h), tube.ErrTubeClosed)
}

// 检查本地 MinIO 端口是否开放 (9000)
func isMinIOAvailable(t *testing.T) bool {
	conn, err := net.DialTimeout("tcp", "localhost:9000", 1*time.Second)
	if err != nil {
		t.Logf("MinIO not reachable at localhost:9000: %v", err)
		return false
	}
	conn.Close()
	return true
}

func TestTube_Integration(t *testing.T) {
	if !isMinIOAvailable(t) {
		t.Skip("Skipping S3 integration tests (MinIO down)")
	}
	ctx := context.Background()
	tb, err := Open(ctx, tube.S3Config{
		Endpoint:        "http://localhost:9000",
		Region:          "us-east-1",
		Bucket:          "hoover-test-bucket",
		AccessKeyID:     "admin",
		SecretAccessKey: "password",
		Prefix:          "it",
	})
	require.NoError(t, err)
	defer tb.Close()

	obj, h := testObject()
	assert.NoError(t, tb.Send(ctx, obj, h))
}
