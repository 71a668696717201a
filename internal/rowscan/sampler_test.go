package rowscan

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entitymeta/internal/compiled"
	"entitymeta/internal/discovery"
	"entitymeta/internal/metadata"
	"entitymeta/internal/platform"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func libraryDecls() []metadata.EntityDeclaration {
	animal := metadata.EntityDeclaration{
		Name:        "Animal",
		Abstract:    true,
		Inheritance: "sti",
		Properties:  []metadata.PropertyDeclaration{{Name: "id", Type: "integer", Primary: true}},
	}
	dog := metadata.EntityDeclaration{Name: "Dog", Extends: "Animal",
		Properties: []metadata.PropertyDeclaration{{Name: "goodBoy", Type: "boolean"}}}
	puppy := metadata.EntityDeclaration{Name: "Puppy", Extends: "Dog",
		Properties: []metadata.PropertyDeclaration{{Name: "ageWeeks", Type: "integer"}}}

	return []metadata.EntityDeclaration{
		{Name: "Book", Properties: []metadata.PropertyDeclaration{
			{Name: "id", Type: "integer", Primary: true},
			{Name: "title", Type: "string"},
			{Name: "author", Kind: "m:1", Target: "Author", Nullable: true},
		}},
		{Name: "Author", Properties: []metadata.PropertyDeclaration{
			{Name: "id", Type: "integer", Primary: true},
			{Name: "books", Kind: "1:m", Target: "Book", MappedBy: "author"},
		}},
		{Name: "Address", Embeddable: true, Properties: []metadata.PropertyDeclaration{
			{Name: "street", Type: "string"},
		}},
		animal, dog, puppy,
	}
}

func newSampler(t *testing.T, name string, exec QueryExecutor) *Sampler {
	t.Helper()
	pf, err := platform.New(platform.Config{Name: name})
	require.NoError(t, err)
	reg, err := discovery.Resolve(context.Background(), libraryDecls(), discovery.Options{Platform: pf, Logger: testLogger()})
	require.NoError(t, err)
	cache := compiled.NewCache(reg, compiled.WithPlatform(pf))
	return NewSampler(exec, reg, cache, pf, testLogger())
}

func TestSelectQuery(t *testing.T) {
	s := newSampler(t, "sqlite", nil)

	query, args, err := s.SelectQuery("Book", 5)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id", "title", "author_id" FROM "book" ORDER BY "id" LIMIT 5`, query)
	assert.Empty(t, args)

	query, _, err = s.SelectQuery("Book", 0)
	require.NoError(t, err)
	assert.NotContains(t, query, "LIMIT")
}

func TestSelectQuery_SingleTableMembers(t *testing.T) {
	s := newSampler(t, "mysql", nil)

	query, args, err := s.SelectQuery("Puppy", 1)
	require.NoError(t, err)
	assert.Contains(t, query, "FROM `animal`")
	assert.Contains(t, query, "WHERE `discr` = ?")
	assert.Equal(t, []any{"puppy"}, args)

	query, args, err = s.SelectQuery("Dog", 1)
	require.NoError(t, err)
	assert.Contains(t, query, "WHERE `discr` IN (?,?)")
	assert.Equal(t, []any{"dog", "puppy"}, args)

	query, args, err = s.SelectQuery("Animal", 1)
	require.NoError(t, err)
	assert.NotContains(t, query, "WHERE")
	assert.Empty(t, args)
}

func TestSelectQuery_PostgresPlaceholders(t *testing.T) {
	s := newSampler(t, "postgres", nil)

	query, args, err := s.SelectQuery("Puppy", 1)
	require.NoError(t, err)
	assert.Contains(t, query, `FROM "animal" WHERE "discr" = $1`)
	assert.Equal(t, []any{"puppy"}, args)

	query, args, err = s.SelectQuery("Dog", 1)
	require.NoError(t, err)
	assert.Contains(t, query, `WHERE "discr" IN ($1,$2)`)
	assert.Equal(t, []any{"dog", "puppy"}, args)
}

func TestSelectQuery_Errors(t *testing.T) {
	s := newSampler(t, "sqlite", nil)

	_, _, err := s.SelectQuery("Missing", 1)
	assert.ErrorIs(t, err, metadata.ErrUnknownEntity)

	_, _, err = s.SelectQuery("Address", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no table")
}

func TestSample_MapsRows(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "title", "author_id"}).
		AddRow(int64(1), []byte("Dune"), int64(7)).
		AddRow(int64(2), "Emma", nil)
	mock.ExpectQuery(`SELECT "id", "title", "author_id" FROM "book" ORDER BY "id" LIMIT 2`).WillReturnRows(rows)

	s := newSampler(t, "sqlite", NewStandardExecutor(db))
	records, err := s.Sample(context.Background(), "Book", 2)
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, compiled.Record{"id": int64(1), "title": "Dune", "author": int64(7)}, records[0])
	assert.Equal(t, compiled.Record{"id": int64(2), "title": "Emma", "author": nil}, records[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSample_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection reset"))

	s := newSampler(t, "sqlite", NewStandardExecutor(db))
	_, err = s.Sample(context.Background(), "Book", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query Book")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestStandardExecutor_NilDB(t *testing.T) {
	_, err := NewStandardExecutor(nil).QueryContext(context.Background(), "SELECT 1")
	assert.Error(t, err)
}

func TestOpen_SQLiteEndToEnd(t *testing.T) {
	pf, err := platform.New(platform.Config{Name: "sqlite"})
	require.NoError(t, err)

	db, cleanup, err := Open(context.Background(), OpenConfig{
		Platform:       pf,
		DSN:            ":memory:",
		ConnectTimeout: 5 * time.Second,
		Tracing:        true,
	}, testLogger())
	require.NoError(t, err)
	defer func() { _ = cleanup() }()
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE book (id INTEGER PRIMARY KEY, title TEXT, author_id INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO book (id, title, author_id) VALUES (1, 'Dune', NULL), (2, 'Emma', 3)`)
	require.NoError(t, err)

	s := newSampler(t, "sqlite", NewStandardExecutor(db))
	records, err := s.Sample(context.Background(), "Book", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Dune", records[0]["title"])
	assert.Nil(t, records[0]["author"])
	assert.EqualValues(t, 3, records[1]["author"])
}

func TestOpen_Errors(t *testing.T) {
	generic, err := platform.New(platform.DefaultConfig())
	require.NoError(t, err)
	_, _, err = Open(context.Background(), OpenConfig{Platform: generic, DSN: "x"}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database driver")

	sqlite, err := platform.New(platform.Config{Name: "sqlite"})
	require.NoError(t, err)
	_, _, err = Open(context.Background(), OpenConfig{Platform: sqlite}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DSN is required")

	_, _, err = Open(context.Background(), OpenConfig{}, testLogger())
	assert.Error(t, err)
}
