package compiled

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entitymeta/internal/metadata"
	"entitymeta/internal/pkey"
	"entitymeta/internal/platform"
)

func book() Record {
	return Record{
		"id":         1,
		"title":      "Dune",
		"published":  true,
		"releasedOn": "1965-08-01",
		"updatedAt":  time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC),
		"author":     Record{"id": 7, "name": "Frank"},
		"tags":       []any{Record{"id": 1}, Record{"id": 2}},
	}
}

func TestSnapshot_ComparablePropertiesOnly(t *testing.T) {
	_, cache := newLibrary(t)

	snap, err := cache.Snapshot("Book", book())
	require.NoError(t, err)

	assert.Equal(t, 1, snap["id"])
	assert.Equal(t, 7, snap["author"])
	assert.NotContains(t, snap, "tags")
	updated, ok := snap["updatedAt"].(time.Time)
	require.True(t, ok)
	assert.True(t, updated.Equal(time.Date(2024, 3, 1, 12, 0, 0, 123000000, time.UTC)))
	assert.Zero(t, updated.Nanosecond()%int(time.Millisecond))
}

func TestSnapshot_Idempotence(t *testing.T) {
	_, cache := newLibrary(t)

	for _, entity := range []string{"Book", "Person", "User", "Node"} {
		rec := Record{"id": 1}
		switch entity {
		case "Book":
			rec = book()
		case "Person":
			rec = person()
		case "User":
			rec = Record{"id": 1, "account": Record{"tenantId": 1, "localId": 2}}
		}
		snap, err := cache.Snapshot(entity, rec)
		require.NoError(t, err)
		again, err := cache.Snapshot(entity, rec)
		require.NoError(t, err)

		changes, err := cache.Diff(entity, snap, again)
		require.NoError(t, err)
		assert.Empty(t, changes, entity)
	}
}

func TestSnapshot_IsDetached(t *testing.T) {
	_, cache := newLibrary(t)
	rec := person()

	snap, err := cache.Snapshot("Person", rec)
	require.NoError(t, err)
	rec["meta"].(Record)["street"] = "Elm"

	assert.Equal(t, "Main", snap["meta"].(Record)["street"])
}

func newPosts(t *testing.T) *Cache {
	t.Helper()
	virtual := false
	note := scalar("note", "string")
	note.Persist = &virtual
	lines := rel("lines", "embedded", "Line")
	lines.Array = true
	lines.Nullable = true
	head := rel("head", "embedded", "Line")
	head.Object = true
	head.Nullable = true

	types := platform.NewTypes()
	reg := mustResolve(t, types,
		entity("Post",
			pk("id", "integer"),
			scalar("scores", "array"),
			scalar("attrs", "json"),
			lines,
			head,
		),
		embeddable("Line", scalar("sku", "string"), note),
	)
	return NewCache(reg, WithTypes(types), WithLogger(testLogger()))
}

func TestSnapshot_IsDetachedFromTypedValues(t *testing.T) {
	cache := newPosts(t)

	scores := []int{1, 2, 3}
	attrs := map[string]string{"color": "red"}
	items := []map[string]any{{"sku": "a-1"}}
	rec := Record{"id": 1, "scores": scores, "attrs": attrs, "lines": items}

	last, err := cache.Snapshot("Post", rec)
	require.NoError(t, err)

	scores[0] = 99
	attrs["color"] = "blue"
	items[0]["sku"] = "b-2"

	current, err := cache.Snapshot("Post", rec)
	require.NoError(t, err)
	changes, err := cache.Diff("Post", last, current)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"scores", "attrs", "lines"}, keys(changes))
	assert.Equal(t, []int{1, 2, 3}, last["scores"])
	assert.Equal(t, map[string]string{"color": "red"}, last["attrs"])
	assert.Equal(t, []any{Record{"sku": "a-1"}}, last["lines"])
}

func TestDeepCopy(t *testing.T) {
	type tagged struct {
		Tags  []string
		Score map[string]int
	}
	src := tagged{Tags: []string{"a"}, Score: map[string]int{"x": 1}}
	matrix := [][]float64{{1, 2}, {3}}

	cp := deepCopy(src).(tagged)
	cpMatrix := deepCopy(matrix).([][]float64)
	src.Tags[0] = "b"
	src.Score["x"] = 2
	matrix[0][0] = 9

	assert.Equal(t, tagged{Tags: []string{"a"}, Score: map[string]int{"x": 1}}, cp)
	assert.Equal(t, [][]float64{{1, 2}, {3}}, cpMatrix)
	assert.Nil(t, deepCopy(nil))
	assert.Equal(t, "s", deepCopy("s"))
}

func TestSnapshot_ObjectEmbedSkipsVirtualProperties(t *testing.T) {
	cache := newPosts(t)

	snap, err := cache.Snapshot("Post", Record{
		"id":   1,
		"head": Record{"sku": "a-1", "note": "draft"},
	})
	require.NoError(t, err)

	assert.Equal(t, Record{"sku": "a-1"}, snap["head"])
}

func TestDiff_Minimality(t *testing.T) {
	_, cache := newLibrary(t)

	last, err := cache.Snapshot("Book", book())
	require.NoError(t, err)

	current := book()
	current["title"] = "Dune Messiah"
	current["author"] = NewReference("Author", int64(7))
	current["published"] = 1
	current["updatedAt"] = time.Date(2024, 3, 1, 12, 0, 0, 123999999, time.UTC)
	currentSnap, err := cache.Snapshot("Book", current)
	require.NoError(t, err)

	changes, err := cache.Diff("Book", last, currentSnap)
	require.NoError(t, err)
	assert.Equal(t, Record{"title": "Dune Messiah"}, changes)

	current["author"] = &Reference{Entity: "Author", Record: Record{"id": 8}}
	current["releasedOn"] = "1969-10-15"
	currentSnap, err = cache.Snapshot("Book", current)
	require.NoError(t, err)

	changes, err = cache.Diff("Book", last, currentSnap)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"title", "author", "releasedOn"}, keys(changes))
	assert.Equal(t, 8, changes["author"])
}

func TestDiff_NilHandling(t *testing.T) {
	_, cache := newLibrary(t)

	tests := []struct {
		name    string
		last    Record
		current Record
		changed bool
	}{
		{name: "both nil", last: Record{"title": nil}, current: Record{"title": nil}},
		{name: "missing on both sides", last: Record{}, current: Record{}},
		{name: "missing is nil", last: Record{}, current: Record{"title": nil}},
		{name: "nil to value", last: Record{"title": nil}, current: Record{"title": "x"}, changed: true},
		{name: "value to missing", last: Record{"title": "x"}, current: Record{}, changed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes, err := cache.Diff("Book", tt.last, tt.current)
			require.NoError(t, err)
			if tt.changed {
				assert.Contains(t, changes, "title")
			} else {
				assert.Empty(t, changes)
			}
		})
	}
}

func TestDiff_CategoryEquality(t *testing.T) {
	_, cache := newLibrary(t)

	tests := []struct {
		name     string
		entity   string
		property string
		a, b     any
		equal    bool
	}{
		{name: "widened integers", entity: "Book", property: "id", a: int32(3), b: float64(3), equal: true},
		{name: "numeric strings", entity: "Book", property: "id", a: "3", b: int64(3), equal: true},
		{name: "different numbers", entity: "Book", property: "id", a: 3, b: 4},
		{name: "boolean from int", entity: "Book", property: "published", a: true, b: int64(1), equal: true},
		{name: "boolean from string", entity: "Book", property: "published", a: "false", b: 0, equal: true},
		{name: "boolean change", entity: "Book", property: "published", a: true, b: "0"},
		{name: "date from time", entity: "Book", property: "releasedOn", a: "2024-01-02", b: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), equal: true},
		{name: "datetime across zones", entity: "Book", property: "updatedAt",
			a: time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), b: "2024-01-02T12:00:00+02:00", equal: true},
		{name: "datetime below millisecond", entity: "Book", property: "updatedAt",
			a: time.Date(2024, 1, 2, 10, 0, 0, 1000, time.UTC), b: time.Date(2024, 1, 2, 10, 0, 0, 2000, time.UTC), equal: true},
		{name: "uuid case", entity: "Person", property: "externalId",
			a: "6F9619FF-8B86-D011-B42D-00CF4FC964FF", b: "6f9619ff-8b86-d011-b42d-00cf4fc964ff", equal: true},
		{name: "relation key widths", entity: "Book", property: "author", a: 7, b: int64(7), equal: true},
		{name: "unsigned relation key", entity: "Book", property: "author", a: uint64(5), b: 5, equal: true},
		{name: "composite relation keys", entity: "User", property: "account", a: pkey.Key{1, 2}, b: pkey.Key{int64(1), int64(2)}, equal: true},
		{name: "json formatting", entity: "Person", property: "settings", a: `{"a": 1}`, b: `{"a":1}`, equal: true},
		{name: "json change", entity: "Person", property: "settings", a: `{"a":1}`, b: `{"a":2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes, err := cache.Diff(tt.entity, Record{tt.property: tt.a}, Record{tt.property: tt.b})
			require.NoError(t, err)
			if tt.equal {
				assert.Empty(t, changes)
			} else {
				assert.Equal(t, Record{tt.property: tt.b}, changes)
			}
		})
	}
}

type caseInsensitive struct{}

func (caseInsensitive) ToStorage(v any) (any, error)   { return v, nil }
func (caseInsensitive) FromStorage(v any) (any, error) { return v, nil }
func (caseInsensitive) Compare(a, b any) bool {
	sa, _ := a.(string)
	sb, _ := b.(string)
	return len(sa) == len(sb)
}

func TestDiff_CustomComparerOverridesCategory(t *testing.T) {
	types := platform.NewTypes()
	types.Register("loose", caseInsensitive{})
	reg := mustResolve(t, types,
		entity("Code", pk("id", "integer"), metadata.PropertyDeclaration{Name: "value", Type: "string", CustomType: "loose"}),
	)
	cache := NewCache(reg, WithTypes(types))

	changes, err := cache.Diff("Code", Record{"value": "abc"}, Record{"value": "xyz"})
	require.NoError(t, err)
	assert.Empty(t, changes)

	changes, err = cache.Diff("Code", Record{"value": "abc"}, Record{"value": "abcd"})
	require.NoError(t, err)
	assert.Equal(t, Record{"value": "abcd"}, changes)
}

func TestPrimaryKey(t *testing.T) {
	_, cache := newLibrary(t)

	key, ok, err := cache.PrimaryKey("Book", book())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, key)

	_, ok, err = cache.PrimaryKey("Book", Record{"title": "no id"})
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = cache.PrimaryKey("Account", Record{"tenantId": 1})
	require.NoError(t, err)
	assert.False(t, ok, "partial composite key")
}

func TestSnapshot_RelationThroughReference(t *testing.T) {
	_, cache := newLibrary(t)

	loaded := &Reference{Entity: "Author", Record: Record{"id": 7, "name": "Frank"}}
	assert.True(t, loaded.Loaded())
	assert.False(t, NewReference("Author", 7).Loaded())

	fromLoaded, err := cache.Snapshot("Book", Record{"id": 1, "author": loaded})
	require.NoError(t, err)
	fromKey, err := cache.Snapshot("Book", Record{"id": 1, "author": NewReference("Author", 7)})
	require.NoError(t, err)

	assert.Equal(t, 7, fromLoaded["author"])
	assert.Equal(t, 7, fromKey["author"])

	fromRow, err := cache.Snapshot("Book", Record{"id": 1, "author": uint64(7)})
	require.NoError(t, err)
	changes, err := cache.Diff("Book", fromRow, fromKey)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestPrimaryKey_CompositeSerializesStably(t *testing.T) {
	_, cache := newLibrary(t)
	rec := Record{"tenantId": 1, "localId": 2}

	first, ok, err := cache.PrimaryKey("Account", rec)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pkey.Key{1, 2}, first)

	for i := 0; i < 10; i++ {
		key, _, err := cache.PrimaryKey("Account", Record{"localId": int64(2), "tenantId": int64(1)})
		require.NoError(t, err)
		assert.Equal(t, pkey.Serialize(first), pkey.Serialize(key))
	}
	assert.Equal(t, "[1,2]", pkey.Serialize(first))
}

func TestMapRow_RoundTrip(t *testing.T) {
	_, cache := newLibrary(t)

	rec, err := cache.MapRow("Author", Row{"id": 1, "name": "Ann"})
	require.NoError(t, err)
	assert.Equal(t, Record{"id": 1, "name": "Ann"}, rec)

	snap, err := cache.Snapshot("Author", rec)
	require.NoError(t, err)
	assert.Equal(t, Record{"id": 1, "name": "Ann"}, snap)
}

func TestMapRow_Conversions(t *testing.T) {
	p, err := platform.New(platform.Config{Name: "generic", Timezone: "+02:00"})
	require.NoError(t, err)
	_, cache := newLibrary(t, WithPlatform(p))

	rec, err := cache.MapRow("Book", Row{
		"id":          []byte("5"),
		"title":       []byte("Dune"),
		"published":   int64(1),
		"released_on": "1965-08-01 00:00:00",
		"updated_at":  "2024-01-02 03:04:05",
		"author_id":   int64(7),
		"extra":       "kept",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(5), rec["id"])
	assert.Equal(t, "Dune", rec["title"])
	assert.Equal(t, true, rec["published"])
	assert.Equal(t, "1965-08-01", rec["releasedOn"])
	assert.Equal(t, int64(7), rec["author"])
	assert.Equal(t, "kept", rec["extra"])
	assert.NotContains(t, rec, "author_id")

	updated, ok := rec["updatedAt"].(time.Time)
	require.True(t, ok)
	assert.True(t, updated.Equal(time.Date(2024, 1, 2, 1, 4, 5, 0, time.UTC)))

	rec, err = cache.MapRow("Book", Row{"updated_at": "2024-01-02T03:04:05Z"})
	require.NoError(t, err)
	assert.True(t, rec["updatedAt"].(time.Time).Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)),
		"an explicit offset wins over the platform timezone")
}

func TestMapRow_CompositeRelationColumns(t *testing.T) {
	_, cache := newLibrary(t)

	rec, err := cache.MapRow("User", Row{"id": 1, "account_tenant_id": 1, "account_local_id": 2})
	require.NoError(t, err)
	assert.Equal(t, pkey.Key{1, 2}, rec["account"])

	rec, err = cache.MapRow("User", Row{"id": 1, "account_tenant_id": nil, "account_local_id": nil})
	require.NoError(t, err)
	assert.Contains(t, rec, "account")
	assert.Nil(t, rec["account"])

	rec, err = cache.MapRow("User", Row{"id": 1})
	require.NoError(t, err)
	assert.NotContains(t, rec, "account")
}

func TestMapRow_EmbeddedAndCustomTypes(t *testing.T) {
	_, cache := newLibrary(t)

	rec, err := cache.MapRow("Person", Row{
		"id":              1,
		"address_street":  "Main",
		"address_geo_lat": []byte("1.5"),
		"meta":            `{"street":"Elm","geo":{"lat":1,"lng":2}}`,
		"settings":        `{"theme":"dark"}`,
		"external_id":     "6F9619FF-8B86-D011-B42D-00CF4FC964FF",
	})
	require.NoError(t, err)

	assert.Equal(t, "Main", rec["address_street"])
	assert.Equal(t, 1.5, rec["address_geo_lat"])
	assert.Equal(t, map[string]any{"theme": "dark"}, rec["settings"])
	assert.Equal(t, "6f9619ff-8b86-d011-b42d-00cf4fc964ff", rec["externalId"])

	meta, ok := rec["meta"].(Record)
	require.True(t, ok)
	assert.Equal(t, "Elm", meta["street"])
}

func TestSnapshot_Embedded(t *testing.T) {
	_, cache := newLibrary(t)

	snap, err := cache.Snapshot("Person", person())
	require.NoError(t, err)

	assert.Equal(t, "Main", snap["address_street"])
	assert.Equal(t, 1.5, snap["address_geo_lat"])
	assert.NotContains(t, snap, "address")
	assert.Equal(t, Record{"street": "Main", "geo": Record{"lat": 1.0, "lng": 2.0}}, snap["meta"])
	assert.Equal(t, `{"theme":"dark"}`, snap["settings"])
	assert.Equal(t, "6f9619ff-8b86-d011-b42d-00cf4fc964ff", snap["externalId"])

	snap, err = cache.Snapshot("Person", Record{"id": 2, "address": nil})
	require.NoError(t, err)
	assert.Contains(t, snap, "address_street")
	assert.Nil(t, snap["address_street"])
}

func TestSnapshot_SelfReference(t *testing.T) {
	_, cache := newLibrary(t)

	snap, err := cache.Snapshot("Node", Record{"id": 1, "parent": Record{"id": 2, "parent": Record{"id": 3}}})
	require.NoError(t, err)
	assert.Equal(t, Record{"id": 1, "parent": 2}, snap)
}

func TestCache_UnknownEntity(t *testing.T) {
	_, cache := newLibrary(t)

	_, err := cache.Functions("Missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, metadata.ErrUnknownEntity))

	_, err = cache.Snapshot("Missing", Record{})
	assert.ErrorIs(t, err, metadata.ErrUnknownEntity)
}

func TestCache_ConcurrentFirstUse(t *testing.T) {
	_, cache := newLibrary(t)

	const workers = 32
	results := make([]*Functions, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fn, err := cache.Functions("Book")
			if err != nil {
				return
			}
			fn.Snapshot(book())
			results[i] = fn
		}(i)
	}
	wg.Wait()

	for _, fn := range results {
		require.NotNil(t, fn)
		assert.Same(t, results[0], fn)
	}
}

func TestSnapshot_SingleTableSkipsDiscriminator(t *testing.T) {
	animal := entity("Animal", pk("id", "integer"), scalar("name", "string"))
	animal.Inheritance = "sti"
	animal.Abstract = true
	dog := entity("Dog", scalar("goodBoy", "boolean"))
	dog.Extends = "Animal"

	reg := mustResolve(t, nil, animal, dog)
	cache := NewCache(reg)

	snap, err := cache.Snapshot("Dog", Record{"id": 1, "name": "Rex", "goodBoy": true, "discr": "dog"})
	require.NoError(t, err)
	assert.Equal(t, Record{"id": 1, "name": "Rex", "goodBoy": true}, snap)

	rec, err := cache.MapRow("Dog", Row{"id": 1, "name": "Rex", "good_boy": int64(0), "discr": "dog"})
	require.NoError(t, err)
	assert.Equal(t, false, rec["goodBoy"])
	assert.Equal(t, "dog", rec["discr"])
}

func person() Record {
	return Record{
		"id": 1,
		"address": Record{
			"street": "Main",
			"geo":    Record{"lat": 1.5, "lng": 2.5},
		},
		"meta": Record{
			"street": "Main",
			"geo":    Record{"lat": 1.0, "lng": 2.0},
		},
		"settings":   map[string]any{"theme": "dark"},
		"externalId": "6F9619FF-8B86-D011-B42D-00CF4FC964FF",
	}
}

func keys(r Record) []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	return out
}
