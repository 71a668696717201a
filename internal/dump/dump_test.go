package dump

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entitymeta/internal/discovery"
	"entitymeta/internal/metadata"
)

func libraryRegistry(t *testing.T) *metadata.Registry {
	t.Helper()
	decls := []metadata.EntityDeclaration{
		{Name: "Author", Properties: []metadata.PropertyDeclaration{
			{Name: "id", Type: "integer", Primary: true},
			{Name: "name", Type: "string"},
			{Name: "books", Kind: "1:m", Target: "Book", MappedBy: "author"},
		}},
		{Name: "Book", Properties: []metadata.PropertyDeclaration{
			{Name: "id", Type: "integer", Primary: true},
			{Name: "title", Type: "string", Nullable: true},
			{Name: "author", Kind: "m:1", Target: "Author"},
		}},
	}
	reg, err := discovery.Resolve(context.Background(), decls, discovery.Options{
		Namespace: "library",
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return reg
}

func TestSummary_Golden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "library_summary", []byte(Summary(libraryRegistry(t))))
}

func TestJSON_IsDeterministic(t *testing.T) {
	first, err := JSON(libraryRegistry(t))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := JSON(libraryRegistry(t))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}

	var decoded struct {
		Namespace string `json:"namespace"`
		Entities  []struct {
			Name       string `json:"name"`
			ID         int    `json:"id"`
			Table      string `json:"table"`
			Properties []struct {
				Name       string   `json:"name"`
				Kind       string   `json:"kind"`
				FieldNames []string `json:"fieldNames"`
			} `json:"properties"`
		} `json:"entities"`
	}
	require.NoError(t, json.Unmarshal(first, &decoded))

	assert.Equal(t, "library", decoded.Namespace)
	require.Len(t, decoded.Entities, 2)
	book := decoded.Entities[1]
	assert.Equal(t, "Book", book.Name)
	assert.Equal(t, 2, book.ID)
	require.Len(t, book.Properties, 3)
	assert.Equal(t, "author", book.Properties[2].Name)
	assert.Equal(t, "m:1", book.Properties[2].Kind)
	assert.Equal(t, []string{"author_id"}, book.Properties[2].FieldNames)
}

func TestWrite_Formats(t *testing.T) {
	reg := libraryRegistry(t)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, reg, FormatSummary))
	assert.Contains(t, buf.String(), "Book #2 table=book")

	buf.Reset()
	require.NoError(t, Write(&buf, reg, ""))
	assert.True(t, json.Valid(buf.Bytes()))

	assert.Error(t, Write(&buf, reg, "xml"))
}

func TestSummary_Pivots(t *testing.T) {
	decls := []metadata.EntityDeclaration{
		{Name: "Book", Properties: []metadata.PropertyDeclaration{
			{Name: "id", Type: "integer", Primary: true},
			{Name: "tags", Kind: "m:n", Target: "Tag"},
			{Name: "chapters", Kind: "m:n", Target: "Tag", FixedOrder: true, FixedOrderColumn: "position"},
		}},
		{Name: "Tag", Properties: []metadata.PropertyDeclaration{
			{Name: "id", Type: "integer", Primary: true},
		}},
		{Name: "Shelf", Properties: []metadata.PropertyDeclaration{
			{Name: "room", Type: "integer", Primary: true},
			{Name: "slot", Type: "integer", Primary: true},
		}},
	}
	reg, err := discovery.Resolve(context.Background(), decls, discovery.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	out := Summary(reg)
	assert.Contains(t, out, "~ pivot compositekey: book -> Book [book_id], tag -> Tag [tag_id]")
	assert.Contains(t, out, "~ pivot sequenced: book -> Book [book_id], tag -> Tag [tag_id] attributes=position")
	assert.Contains(t, out, "Shelf #3 table=shelf composite_key\n")
	assert.Contains(t, out, "table=book_tags composite_key pivot\n")
	assert.Contains(t, out, "table=book_chapters pivot\n")
}

func TestEntityJSON(t *testing.T) {
	reg := libraryRegistry(t)
	book, err := reg.Get("Book")
	require.NoError(t, err)

	data, err := EntityJSON(book)
	require.NoError(t, err)

	var decoded struct {
		Name       string `json:"name"`
		Properties []struct {
			Name string `json:"name"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Book", decoded.Name)
	require.Len(t, decoded.Properties, 3)
	assert.Equal(t, "id", decoded.Properties[0].Name)
	assert.Equal(t, "author", decoded.Properties[2].Name)
}
