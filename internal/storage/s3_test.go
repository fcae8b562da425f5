package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/batch-email/internal/domain"
)

// fakeS3 keeps objects in memory keyed by "bucket/key".
type fakeS3 struct {
	mu          sync.Mutex
	objects     map[string][]byte
	copyErr     map[string]error // by source "bucket/key"
	deleteCalls []*s3.DeleteObjectsInput
	deleteFail  map[string]bool // keys reported as failed by DeleteObjects
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects:    make(map[string][]byte),
		copyErr:    make(map[string]error),
		deleteFail: make(map[string]bool),
	}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(data)))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, err := url.PathUnescape(aws.ToString(in.CopySource))
	if err != nil {
		return nil, err
	}
	if err := f.copyErr[src]; err != nil {
		return nil, err
	}
	data, ok := f.objects[src]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, in)
	out := &s3.DeleteObjectsOutput{}
	for _, id := range in.Delete.Objects {
		k := aws.ToString(id.Key)
		if f.deleteFail[k] {
			out.Errors = append(out.Errors, types.Error{Key: id.Key, Code: aws.String("AccessDenied"), Message: aws.String("denied")})
			continue
		}
		delete(f.objects, aws.ToString(in.Bucket)+"/"+k)
	}
	return out, nil
}

func (f *fakeS3) has(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[path]
	return ok
}

func TestS3Store_GetText(t *testing.T) {
	fake := newFakeS3()
	fake.objects["b/templates/failure.html"] = []byte("<p>hi</p>")
	store := NewS3Store(fake)

	text, err := store.GetText(context.Background(), "b", "templates/failure.html")
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", text)
}

func TestS3Store_GetNotFound(t *testing.T) {
	store := NewS3Store(newFakeS3())

	_, err := store.Get(context.Background(), "b", "missing.csv")
	assert.ErrorIs(t, err, domain.ErrObjectNotFound)
	assert.Contains(t, err.Error(), "s3://b/missing.csv")
}

type errS3 struct{ fakeS3 }

func (e *errS3) GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return nil, &smithy.GenericAPIError{Code: "InternalError", Message: "try again"}
}

func TestS3Store_GetOtherError(t *testing.T) {
	store := NewS3Store(&errS3{})

	_, err := store.Get(context.Background(), "b", "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrObjectNotFound)
}

func TestS3Store_Put(t *testing.T) {
	fake := newFakeS3()
	store := NewS3Store(fake)

	require.NoError(t, store.Put(context.Background(), "b", "k.txt", []byte("data"), "text/plain"))
	assert.Equal(t, []byte("data"), fake.objects["b/k.txt"])
}

func TestS3Store_MoveObjects(t *testing.T) {
	fake := newFakeS3()
	fake.objects["b1/batch/send/a b.csv"] = []byte("a")
	fake.objects["b1/batch/send/c.csv"] = []byte("c")
	fake.objects["b2/batch/send/d.csv"] = []byte("d")
	fake.objects["b2/batch/send/broken.csv"] = []byte("x")
	fake.copyErr["b2/batch/send/broken.csv"] = errors.New("copy refused")
	store := NewS3Store(fake)

	err := store.MoveObjects(context.Background(), []Move{
		{Bucket: "b1", Key: "batch/send/a b.csv", ToKey: "batch/failed/a b.csv"},
		{Bucket: "b1", Key: "batch/send/c.csv", ToKey: "batch/failed/c.csv"},
		{Bucket: "b2", Key: "batch/send/d.csv", ToKey: "batch/failed/d.csv"},
		{Bucket: "b2", Key: "batch/send/broken.csv", ToKey: "batch/failed/broken.csv"},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy refused")

	assert.True(t, fake.has("b1/batch/failed/a b.csv"))
	assert.False(t, fake.has("b1/batch/send/a b.csv"))
	assert.True(t, fake.has("b1/batch/failed/c.csv"))
	assert.True(t, fake.has("b2/batch/failed/d.csv"))
	assert.False(t, fake.has("b2/batch/send/d.csv"))

	// The failed copy keeps its source.
	assert.True(t, fake.has("b2/batch/send/broken.csv"))
	assert.False(t, fake.has("b2/batch/failed/broken.csv"))

	// One delete per bucket, in first-seen order.
	require.Len(t, fake.deleteCalls, 2)
	assert.Equal(t, "b1", aws.ToString(fake.deleteCalls[0].Bucket))
	assert.Len(t, fake.deleteCalls[0].Delete.Objects, 2)
	assert.Equal(t, "b2", aws.ToString(fake.deleteCalls[1].Bucket))
}

func TestS3Store_DeleteManyReportsPerKeyErrors(t *testing.T) {
	fake := newFakeS3()
	fake.objects["b/x"] = []byte("x")
	fake.objects["b/y"] = []byte("y")
	fake.deleteFail["y"] = true
	store := NewS3Store(fake)

	err := store.DeleteMany(context.Background(), "b", []string{"x", "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3://b/y")
	assert.False(t, fake.has("b/x"))
	assert.True(t, fake.has("b/y"))
}

func TestS3Store_DeleteManyChunks(t *testing.T) {
	fake := newFakeS3()
	keys := make([]string, 2500)
	for i := range keys {
		keys[i] = "k" + strings.Repeat("x", i%3)
	}
	require.NoError(t, NewS3Store(fake).DeleteMany(context.Background(), "b", keys))
	require.Len(t, fake.deleteCalls, 3)
	assert.Len(t, fake.deleteCalls[2].Delete.Objects, 500)
}

func TestCopySource(t *testing.T) {
	assert.Equal(t, "bucket/batch/send/a%20b+c.csv", copySource("bucket", "batch/send/a b+c.csv"))
}
