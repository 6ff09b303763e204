package remote

import "testing"

func TestRecordID(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{"id key", Record{"id": "abc"}, "abc"},
		{"underscore id", Record{"_id": "def"}, "def"},
		{"id preferred over _id", Record{"id": "abc", "_id": "def"}, "abc"},
		{"empty id falls through", Record{"id": "", "_id": "def"}, "def"},
		{"non-string ignored", Record{"id": 42.0}, ""},
		{"missing", Record{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.ID(); got != tt.want {
				t.Errorf("ID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecordInt(t *testing.T) {
	rec := Record{"float": float64(7), "str": "12", "bad": "x"}
	if n, ok := rec.Int("float"); !ok || n != 7 {
		t.Errorf("Int(float) = %d, %v", n, ok)
	}
	if n, ok := rec.Int("str"); !ok || n != 12 {
		t.Errorf("Int(str) = %d, %v", n, ok)
	}
	if _, ok := rec.Int("bad"); ok {
		t.Error("Int(bad) should not parse")
	}
	if _, ok := rec.Int("missing"); ok {
		t.Error("Int(missing) should not be found")
	}
}

func TestRecordTotal(t *testing.T) {
	nested := Record{"meta": map[string]any{"total": float64(33)}}
	if n, ok := nested.Total(); !ok || n != 33 {
		t.Errorf("nested Total() = %d, %v", n, ok)
	}
	flat := Record{"total": float64(5)}
	if n, ok := flat.Total(); !ok || n != 5 {
		t.Errorf("flat Total() = %d, %v", n, ok)
	}
	if _, ok := (Record{}).Total(); ok {
		t.Error("empty record should report no total")
	}
}

func TestRecordCursor(t *testing.T) {
	rec := Record{"meta": map[string]any{"startAfterId": "xyz", "startAfter": float64(1700000000000)}}
	id, after, ok := rec.Cursor()
	if !ok || id != "xyz" || after != 1700000000000 {
		t.Errorf("Cursor() = %q, %d, %v", id, after, ok)
	}
	if _, _, ok := (Record{}).Cursor(); ok {
		t.Error("record without meta should report no cursor")
	}
}

func TestRecordList(t *testing.T) {
	rec := Record{"items": []any{
		map[string]any{"id": "a"},
		"not an object",
		map[string]any{"id": "b"},
	}}
	items := rec.List("items")
	if len(items) != 2 {
		t.Fatalf("expected 2 records, got %d", len(items))
	}
	if items[1].ID() != "b" {
		t.Errorf("expected second record b, got %q", items[1].ID())
	}
}
