package models

import (
	"reflect"
	"testing"
)

func TestPackChange_ApplyTo(t *testing.T) {
	tests := []struct {
		name   string
		pack   []string
		change PackChange
		want   StringList
	}{
		{name: "nil pack", pack: nil, change: PackChange{Added: []string{"a"}}, want: StringList{"a"}},
		{name: "append keeps order", pack: []string{"a", "b"}, change: PackChange{Added: []string{"c"}}, want: StringList{"a", "b", "c"}},
		{name: "remove", pack: []string{"a", "b", "c"}, change: PackChange{Removed: []string{"b"}}, want: StringList{"a", "c"}},
		{name: "no duplicates", pack: []string{"a", "a"}, change: PackChange{Added: []string{"a", "b"}}, want: StringList{"a", "b"}},
		{name: "removed wins", pack: []string{"a"}, change: PackChange{Added: []string{"b"}, Removed: []string{"b"}}, want: StringList{"a"}},
		{name: "empty", pack: nil, change: PackChange{}, want: StringList{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.change.ApplyTo(tt.pack); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ApplyTo = %v, want %v", got, tt.want)
			}
		})
	}
	if !(PackChange{}).Empty() || (PackChange{Removed: []string{"x"}}).Empty() {
		t.Fatalf("Empty is wrong")
	}
}

func TestStringList_ValueScan(t *testing.T) {
	v, err := StringList(nil).Value()
	if err != nil || v != "[]" {
		t.Fatalf("nil value = %v, %v", v, err)
	}

	tests := []struct {
		src  any
		want StringList
	}{
		{src: nil, want: StringList{}},
		{src: []byte(`["a","b"]`), want: StringList{"a", "b"}},
		{src: `["c"]`, want: StringList{"c"}},
		{src: "", want: StringList{}},
	}
	for _, tt := range tests {
		var got StringList
		if err := got.Scan(tt.src); err != nil {
			t.Fatalf("scan %v: %v", tt.src, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("scan %v = %v, want %v", tt.src, got, tt.want)
		}
	}

	var bad StringList
	if err := bad.Scan(42); err == nil {
		t.Fatalf("expected error for int source")
	}
}
