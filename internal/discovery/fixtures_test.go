package discovery

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"entitymeta/internal/metadata"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pk(name, typ string) metadata.PropertyDeclaration {
	return metadata.PropertyDeclaration{Name: name, Type: typ, Primary: true}
}

func scalar(name, typ string) metadata.PropertyDeclaration {
	return metadata.PropertyDeclaration{Name: name, Type: typ}
}

func rel(name, kind, target string) metadata.PropertyDeclaration {
	return metadata.PropertyDeclaration{Name: name, Kind: kind, Target: target}
}

func mappedBy(p metadata.PropertyDeclaration, side string) metadata.PropertyDeclaration {
	p.MappedBy = side
	return p
}

func inversedBy(p metadata.PropertyDeclaration, side string) metadata.PropertyDeclaration {
	p.InversedBy = side
	return p
}

func entity(name string, props ...metadata.PropertyDeclaration) metadata.EntityDeclaration {
	return metadata.EntityDeclaration{Name: name, Properties: props}
}

func embeddable(name string, props ...metadata.PropertyDeclaration) metadata.EntityDeclaration {
	return metadata.EntityDeclaration{Name: name, Embeddable: true, Properties: props}
}

func resolve(t *testing.T, decls ...metadata.EntityDeclaration) (*metadata.Registry, error) {
	t.Helper()
	return Resolve(context.Background(), decls, Options{Logger: testLogger()})
}

func mustResolve(t *testing.T, decls ...metadata.EntityDeclaration) *metadata.Registry {
	t.Helper()
	reg, err := resolve(t, decls...)
	require.NoError(t, err)
	require.True(t, reg.Sealed())
	return reg
}

func mustGet(t *testing.T, reg *metadata.Registry, name string) *metadata.Entity {
	t.Helper()
	e, err := reg.Get(name)
	require.NoError(t, err)
	return e
}

func propNames(e *metadata.Entity) []string {
	props := e.Props()
	out := make([]string, 0, len(props))
	for _, p := range props {
		out = append(out, p.Name)
	}
	return out
}

// bookTagDecls declares Book.tags owning a many-to-many relation with Tag.books as its inverse.
func bookTagDecls() []metadata.EntityDeclaration {
	return []metadata.EntityDeclaration{
		entity("Book",
			pk("id", "integer"),
			scalar("title", "string"),
			rel("author", "m:1", "Author"),
			rel("tags", "m:n", "Tag"),
		),
		entity("Tag",
			pk("id", "integer"),
			scalar("name", "string"),
			mappedBy(rel("books", "m:n", "Book"), "tags"),
		),
		entity("Author",
			pk("id", "integer"),
			scalar("name", "string"),
			mappedBy(rel("books", "1:m", "Book"), "author"),
		),
	}
}

// animalDecls declares an abstract single-table root with two concrete children.
func animalDecls() []metadata.EntityDeclaration {
	animal := entity("Animal", pk("id", "integer"), scalar("name", "string"))
	animal.Inheritance = "sti"
	animal.Abstract = true

	dog := entity("Dog", scalar("goodBoy", "boolean"))
	dog.Extends = "Animal"
	cat := entity("Cat", scalar("lives", "integer"))
	cat.Extends = "Animal"
	return []metadata.EntityDeclaration{animal, dog, cat}
}
