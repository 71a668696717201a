package compiled

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"entitymeta/internal/discovery"
	"entitymeta/internal/metadata"
	"entitymeta/internal/platform"
)

func pk(name, typ string) metadata.PropertyDeclaration {
	return metadata.PropertyDeclaration{Name: name, Type: typ, Primary: true}
}

func scalar(name, typ string) metadata.PropertyDeclaration {
	return metadata.PropertyDeclaration{Name: name, Type: typ}
}

func rel(name, kind, target string) metadata.PropertyDeclaration {
	return metadata.PropertyDeclaration{Name: name, Kind: kind, Target: target}
}

func entity(name string, props ...metadata.PropertyDeclaration) metadata.EntityDeclaration {
	return metadata.EntityDeclaration{Name: name, Properties: props}
}

func embeddable(name string, props ...metadata.PropertyDeclaration) metadata.EntityDeclaration {
	return metadata.EntityDeclaration{Name: name, Embeddable: true, Properties: props}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustResolve(t *testing.T, types *platform.Types, decls ...metadata.EntityDeclaration) *metadata.Registry {
	t.Helper()
	reg, err := discovery.Resolve(context.Background(), decls, discovery.Options{Logger: testLogger(), Types: types})
	require.NoError(t, err)
	return reg
}

// libraryDecls is a small graph with references, collections, an inline embed, an object
// embed, a composite key and a custom type.
func libraryDecls() []metadata.EntityDeclaration {
	books := rel("books", "1:m", "Book")
	books.MappedBy = "author"
	tagBooks := rel("books", "m:n", "Book")
	tagBooks.MappedBy = "tags"

	address := rel("address", "embedded", "Address")
	address.Nullable = true
	meta := rel("meta", "embedded", "Address")
	meta.Object = true
	meta.Nullable = true

	return []metadata.EntityDeclaration{
		entity("Book",
			pk("id", "integer"),
			scalar("title", "string"),
			scalar("published", "boolean"),
			scalar("releasedOn", "date"),
			scalar("updatedAt", "datetime"),
			rel("author", "m:1", "Author"),
			rel("tags", "m:n", "Tag"),
		),
		entity("Author",
			pk("id", "integer"),
			scalar("name", "string"),
			books,
		),
		entity("Tag",
			pk("id", "integer"),
			scalar("name", "string"),
			tagBooks,
		),
		entity("Person",
			pk("id", "integer"),
			address,
			meta,
			metadata.PropertyDeclaration{Name: "settings", CustomType: "json", Nullable: true},
			scalar("externalId", "uuid"),
		),
		embeddable("Address",
			scalar("street", "string"),
			rel("geo", "embedded", "Geo"),
		),
		embeddable("Geo",
			scalar("lat", "float"),
			scalar("lng", "float"),
		),
		entity("Account", pk("tenantId", "integer"), pk("localId", "bigint")),
		entity("User", pk("id", "integer"), rel("account", "m:1", "Account")),
		entity("Node", pk("id", "integer"), rel("parent", "m:1", "Node")),
	}
}

func newLibrary(t *testing.T, opts ...Option) (*metadata.Registry, *Cache) {
	t.Helper()
	types := platform.NewTypes()
	reg := mustResolve(t, types, libraryDecls()...)
	return reg, NewCache(reg, append([]Option{WithTypes(types), WithLogger(testLogger())}, opts...)...)
}
