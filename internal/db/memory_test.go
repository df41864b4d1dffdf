package db

import (
	"context"
	"errors"
	"testing"
)

type testDoc struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Owner string `json:"owner,omitempty"`
	Time  int64  `json:"time"`
}

func openMemory(t *testing.T, specs ...CollectionSpec) Conn {
	t.Helper()
	conn, err := NewMemoryDriver().Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, spec := range specs {
		if err := conn.EnsureCollection(context.Background(), spec); err != nil {
			t.Fatalf("ensure %s: %v", spec.Name, err)
		}
	}
	return conn
}

func TestMemoryCollectionInsertAndFind(t *testing.T) {
	ctx := context.Background()
	coll := openMemory(t).Collection("docs")

	docs := []testDoc{
		{ID: "a", Name: "alice", Owner: "x", Time: 30},
		{ID: "b", Name: "bob", Owner: "y", Time: 10},
		{ID: "c", Name: "carol", Owner: "x", Time: 20},
	}
	for _, doc := range docs {
		if err := coll.InsertOne(ctx, doc.ID, doc); err != nil {
			t.Fatalf("insert %s: %v", doc.ID, err)
		}
	}

	if err := coll.InsertOne(ctx, "a", testDoc{ID: "a"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate id rejected got %v", err)
	}

	var found testDoc
	ok, err := coll.FindOne(ctx, ByID("b"), &found)
	if err != nil || !ok {
		t.Fatalf("find by id: ok=%v err=%v", ok, err)
	}
	if found.Name != "bob" {
		t.Fatalf("unexpected document %+v", found)
	}

	ok, err = coll.FindOne(ctx, Where(Eq("name", "nobody")), &found)
	if err != nil || ok {
		t.Fatalf("expected no match: ok=%v err=%v", ok, err)
	}

	var sorted []testDoc
	if err := coll.Find(ctx, Where(Eq("owner", "x"), Gt("time", 0)), &sorted, SortAsc("time")); err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(sorted) != 2 || sorted[0].ID != "c" || sorted[1].ID != "a" {
		t.Fatalf("unexpected sorted result %+v", sorted)
	}

	var after []testDoc
	if err := coll.Find(ctx, Where(Gt("time", 20)), &after); err != nil {
		t.Fatalf("find gt: %v", err)
	}
	if len(after) != 1 || after[0].ID != "a" {
		t.Fatalf("expected strictly greater match got %+v", after)
	}

	var either []testDoc
	if err := coll.Find(ctx, Filter{}.Or(Eq("name", "bob"), Eq("owner", "x")), &either, SortAsc(IDField)); err != nil {
		t.Fatalf("find or: %v", err)
	}
	if len(either) != 3 {
		t.Fatalf("expected 3 matches got %+v", either)
	}

	var some []testDoc
	if err := coll.Find(ctx, Where(In(IDField, []string{"a", "c", "zzz"})), &some); err != nil {
		t.Fatalf("find in: %v", err)
	}
	if len(some) != 2 {
		t.Fatalf("expected 2 matches got %+v", some)
	}

	var substr []testDoc
	if err := coll.Find(ctx, Where(Contains("name", "o")), &substr); err != nil {
		t.Fatalf("find contains: %v", err)
	}
	if len(substr) != 2 {
		t.Fatalf("expected bob and carol got %+v", substr)
	}

	var none []testDoc
	if err := coll.Find(ctx, Where(Contains("name", "O")), &none); err != nil {
		t.Fatalf("find contains: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil result got %#v", none)
	}

	var limited []testDoc
	if err := coll.Find(ctx, Filter{}, &limited, SortAsc("time"), Limit(1)); err != nil {
		t.Fatalf("find limit: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "b" {
		t.Fatalf("unexpected limited result %+v", limited)
	}
}

func TestMemoryCollectionUniqueIndexes(t *testing.T) {
	ctx := context.Background()
	coll := openMemory(t, CollectionSpec{Name: "docs", Unique: [][]string{{"name"}, {"owner", "time"}}}).Collection("docs")

	if err := coll.InsertOne(ctx, "a", testDoc{ID: "a", Name: "alice", Owner: "x", Time: 1}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := coll.InsertOne(ctx, "b", testDoc{ID: "b", Name: "alice", Time: 2}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate name rejected got %v", err)
	}
	if err := coll.InsertOne(ctx, "c", testDoc{ID: "c", Name: "carol", Owner: "x", Time: 1}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate compound key rejected got %v", err)
	}
	if err := coll.InsertOne(ctx, "d", testDoc{ID: "d", Name: "dave", Time: 1}); err != nil {
		t.Fatalf("documents missing an indexed field never collide: %v", err)
	}

	if _, err := coll.UpdateOne(ctx, ByID("d"), map[string]any{"name": "alice"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected update collision rejected got %v", err)
	}
	if n, err := coll.UpdateOne(ctx, ByID("a"), map[string]any{"name": "alice"}); err != nil || n != 1 {
		t.Fatalf("updating a document to its own value should succeed: n=%d err=%v", n, err)
	}
}

func TestMemoryCollectionUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	coll := openMemory(t).Collection("docs")

	if err := coll.InsertOne(ctx, "a", testDoc{ID: "a", Name: "alice", Time: 5}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	n, err := coll.UpdateOne(ctx, ByID("a"), map[string]any{"name": "alicia"})
	if err != nil || n != 1 {
		t.Fatalf("update: n=%d err=%v", n, err)
	}

	var doc testDoc
	if ok, err := coll.FindOne(ctx, ByID("a"), &doc); err != nil || !ok {
		t.Fatalf("find after update: ok=%v err=%v", ok, err)
	}
	if doc.Name != "alicia" || doc.Time != 5 {
		t.Fatalf("expected merged update got %+v", doc)
	}

	if n, err := coll.UpdateOne(ctx, ByID("missing"), map[string]any{"name": "x"}); err != nil || n != 0 {
		t.Fatalf("expected zero matched: n=%d err=%v", n, err)
	}

	if n, err := coll.DeleteOne(ctx, ByID("a")); err != nil || n != 1 {
		t.Fatalf("delete: n=%d err=%v", n, err)
	}
	if n, err := coll.DeleteOne(ctx, ByID("a")); err != nil || n != 0 {
		t.Fatalf("second delete: n=%d err=%v", n, err)
	}
}

func TestMemoryDriverSharesDataAcrossConnections(t *testing.T) {
	ctx := context.Background()
	driver := NewMemoryDriver()

	first, err := driver.Open(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.Collection("docs").InsertOne(ctx, "a", testDoc{ID: "a"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	first.Close()

	if driver.Count("docs") != 1 {
		t.Fatalf("expected document to persist got %d", driver.Count("docs"))
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := driver.Open(cancelled); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancelled open got %v", err)
	}
}
