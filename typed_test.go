package stalecache

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type user struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Tags []string `json:"tags"`
	OK   bool     `json:"ok"`
}

func TestGetAsDirectValue(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, nil, nil)

	in := user{ID: "1", Name: "Ada", Tags: []string{"x"}, OK: true}
	if err := c.Set(ctx, "u", in); err != nil {
		t.Fatal(err)
	}
	got, err := GetAs[user](ctx, c, "u")
	if err != nil || !reflect.DeepEqual(got, in) {
		t.Fatalf("got %+v, %v", got, err)
	}

	missing, err := GetAs[user](ctx, c, "none")
	if err != nil || !reflect.DeepEqual(missing, user{}) {
		t.Fatalf("missing: %+v, %v", missing, err)
	}
}

func TestGetAsFromDecodedShape(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, nil, nil)

	// what a JSON-backed store hands back for a user
	generic := map[string]any{"id": "2", "name": "Grace", "tags": []any{"a", "b"}, "ok": true}
	if err := c.Set(ctx, "u", generic); err != nil {
		t.Fatal(err)
	}
	got, err := GetAs[user](ctx, c, "u")
	if err != nil {
		t.Fatal(err)
	}
	want := user{ID: "2", Name: "Grace", Tags: []string{"a", "b"}, OK: true}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}

	if err := c.Set(ctx, "s", "not a user"); err != nil {
		t.Fatal(err)
	}
	if _, err := GetAs[user](ctx, c, "s"); err == nil {
		t.Fatalf("expected conversion error")
	}
}

func TestGetOrElseAs(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, nil, nil)

	got, err := GetOrElseAs(ctx, c, "u", func(context.Context) (user, error) {
		return user{ID: "3"}, nil
	})
	if err != nil || got.ID != "3" {
		t.Fatalf("got %+v, %v", got, err)
	}

	boom := errors.New("boom")
	_, err = GetOrElseAs(ctx, c, "other", func(context.Context) (user, error) {
		return user{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want producer error, got %v", err)
	}
}

func TestGetOrElseAsNilPointerIsAbsent(t *testing.T) {
	ctx := context.Background()
	fb := newFakeBackend()
	c := newTestCache(t, fb, nil)

	got, err := GetOrElseAs(ctx, c, "p", func(context.Context) (*user, error) { return nil, nil })
	if err != nil || got != nil {
		t.Fatalf("got %+v, %v", got, err)
	}
	env, ok := fb.stored("test:p")
	if !ok || env.Data != nil {
		t.Fatalf("nil pointer must be stored as nil, got %#v", env.Data)
	}
	if v, _ := c.Get(ctx, "p"); v != nil {
		t.Fatalf("Get returned %#v", v)
	}
}
