package pagination

import "testing"

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{
		0:   DefaultLimit,
		-5:  DefaultLimit,
		10:  10,
		500: MaxLimit,
		100: MaxLimit,
	}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestCursorRoundTrip(t *testing.T) {
	encoded := EncodeCursor(Cursor{AfterID: 42})
	cursor, err := ParseCursor(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cursor == nil || cursor.AfterID != 42 {
		t.Fatalf("unexpected cursor %+v", cursor)
	}
}

func TestParseCursorEmpty(t *testing.T) {
	cursor, err := ParseCursor("  ")
	if err != nil || cursor != nil {
		t.Fatalf("expected nil cursor, got %+v %v", cursor, err)
	}
}

func TestParseCursorInvalid(t *testing.T) {
	for _, value := range []string{"!!!", "aWQ6YWJj", "Zm9vOjE"} {
		if _, err := ParseCursor(value); err == nil {
			t.Fatalf("expected error for %q", value)
		}
	}
}
