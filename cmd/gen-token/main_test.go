package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/bytedance/sonic"
)

func TestUserIDs(t *testing.T) {
	tests := []struct {
		name  string
		count int
		args  []string
		want  []string
	}{
		{name: "explicit", count: 1, args: []string{"alice"}, want: []string{"alice"}},
		{name: "single", count: 1, want: []string{"u"}},
		{name: "many", count: 3, want: []string{"u-5", "u-6", "u-7"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := userIDs(tt.count, "u", 5, tt.args); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("userIDs = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWriteTokensCreatesDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tokens.json")
	if err := writeTokens(path, []string{"a", "b"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got []string
	if err := sonic.Unmarshal(data, &got); err != nil || !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("unexpected tokens file %q (%v)", data, err)
	}
}
