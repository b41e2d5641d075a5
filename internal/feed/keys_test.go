package feed

import (
	"strings"
	"testing"
)

func TestKeyCodec(t *testing.T) {
	k := NewKeyCodec("forum_comment")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"page key", k.PageKey(42, 3), "forum_comment:42:page:3"},
		{"page prefix", k.PagePrefix(42), "forum_comment:42:page:"},
		{"tracker key", k.TrackerKey(42), "forum_comment:42:lastPage"},
		{"item key", k.ItemKey(42), "forum_comment:42"},
		{"zero parent", k.PageKey(0, 1), "forum_comment:0:page:1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, tt.got)
			}
		})
	}
}

func TestKeyCodec_PrefixCoversPagesOnly(t *testing.T) {
	k := NewKeyCodec("video")
	prefix := k.PagePrefix(7)

	if !strings.HasPrefix(k.PageKey(7, 12), prefix) {
		t.Error("page key must share the page prefix")
	}
	if strings.HasPrefix(k.TrackerKey(7), prefix) {
		t.Error("tracker key must not match the page prefix")
	}
	if strings.HasPrefix(k.ItemKey(7), prefix) {
		t.Error("item key must not match the page prefix")
	}
	if strings.HasPrefix(k.PageKey(71, 1), prefix) {
		t.Error("another parent's page key must not match the prefix")
	}
}
