package declsource

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Document(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "library.yaml"))
	require.NoError(t, err)

	doc, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "library", doc.Namespace)
	require.Len(t, doc.Entities, 6)

	book := doc.Entities[0]
	assert.Equal(t, "Book", book.Name)
	require.Len(t, book.Properties, 4)
	assert.True(t, book.Properties[0].Primary)
	assert.Equal(t, "m:1", book.Properties[2].Kind)
	assert.Equal(t, []string{"persist", "remove"}, book.Properties[2].Cascade)
	assert.Equal(t, "books", book.Properties[3].InversedBy)

	animal := doc.Entities[3]
	assert.Equal(t, "sti", animal.Inheritance)
	assert.Equal(t, map[string]string{"1": "Dog"}, animal.DiscriminatorMap)

	dog := doc.Entities[4]
	require.NotNil(t, dog.Properties[0].Prefix)
	assert.Equal(t, "", *dog.Properties[0].Prefix)

	collar := doc.Entities[5]
	require.NotNil(t, collar.Properties[0].Persist)
	assert.False(t, *collar.Properties[0].Persist)
	assert.Nil(t, book.Properties[0].Persist)
}

func TestParse_JSON(t *testing.T) {
	doc, err := Parse([]byte(`{"entities":[{"name":"Tag","properties":[{"name":"id","type":"integer","primary":true}]}]}`))
	require.NoError(t, err)
	require.Len(t, doc.Entities, 1)
	assert.Equal(t, "Tag", doc.Entities[0].Name)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		message string
	}{
		{name: "empty", input: "  \n", message: "empty"},
		{name: "invalid yaml", input: "entities: [", message: "failed to parse"},
		{name: "unknown option", input: "entities:\n  - name: A\n    tabel: a\n", message: "tabel"},
		{name: "no entities", input: "namespace: x\n", message: "no entities"},
		{name: "unnamed entity", input: "entities:\n  - table: a\n", message: "no name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoader_FileAndStdin(t *testing.T) {
	input := "entities:\n  - name: Tag\n"
	path := filepath.Join(t.TempDir(), "decls.yaml")
	require.NoError(t, os.WriteFile(path, []byte(input), 0o600))

	loader := New(WithStdin(strings.NewReader(input)))

	doc, err := loader.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Tag", doc.Entities[0].Name)

	doc, err = loader.Load(context.Background(), Stdin)
	require.NoError(t, err)
	assert.Equal(t, "Tag", doc.Entities[0].Name)

	_, err = loader.Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read declarations file")

	_, err = loader.Load(context.Background(), "")
	require.Error(t, err)
}

type fakeGetter struct {
	objects map[string]string
	calls   []string
}

func (f *fakeGetter) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := *in.Bucket + "/" + *in.Key
	f.calls = append(f.calls, key)
	body, ok := f.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestLoader_S3(t *testing.T) {
	getter := &fakeGetter{objects: map[string]string{"decls/model/library.yaml": "entities:\n  - name: Book\n"}}
	loader := New(WithS3Client(getter))

	doc, err := loader.Load(context.Background(), "s3://decls/model/library.yaml")
	require.NoError(t, err)
	assert.Equal(t, "Book", doc.Entities[0].Name)
	assert.Equal(t, []string{"decls/model/library.yaml"}, getter.calls)

	_, err = loader.Load(context.Background(), "s3://decls/missing.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NoSuchKey")
}

func TestParseS3URI(t *testing.T) {
	bucket, key, err := ParseS3URI("s3://bucket/a/b.yaml")
	require.NoError(t, err)
	assert.Equal(t, "bucket", bucket)
	assert.Equal(t, "a/b.yaml", key)

	for _, bad := range []string{"s3://bucket", "s3:///key", "http://bucket/key"} {
		_, _, err := ParseS3URI(bad)
		assert.Error(t, err, bad)
	}
}

// objectServer answers path-style GetObject requests from memory.
type objectServer struct {
	objects map[string][]byte
}

func (s *objectServer) Do(req *http.Request) (*http.Response, error) {
	body, ok := s.objects[strings.TrimPrefix(req.URL.Path, "/")]
	if req.Method != http.MethodGet || !ok {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Header:     http.Header{"Content-Type": []string{"application/xml"}},
			Body:       io.NopCloser(strings.NewReader(`<Error><Code>NoSuchKey</Code></Error>`)),
			Request:    req,
		}, nil
	}
	return &http.Response{
		StatusCode:    http.StatusOK,
		Header:        http.Header{"Content-Type": []string{"application/yaml"}},
		ContentLength: int64(len(body)),
		Body:          io.NopCloser(bytes.NewReader(body)),
		Request:       req,
	}, nil
}

func TestNewS3Client_PathStyleEndpoint(t *testing.T) {
	server := &objectServer{objects: map[string][]byte{"models/library.yaml": []byte("entities:\n  - name: Author\n")}}
	loader := New(WithS3Config(S3Config{
		Region:          "eu-west-1",
		Endpoint:        "https://s3.test.local",
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		HTTPClient:      server,
	}))

	doc, err := loader.Load(context.Background(), "s3://models/library.yaml")
	require.NoError(t, err)
	assert.Equal(t, "Author", doc.Entities[0].Name)
}
