package scan

import (
	"reflect"
	"testing"
)

func TestExtractReferences(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "single link",
			text: "check this https://www.roblox.com/game-pass/12345/Cool-Pass",
			want: []string{"12345"},
		},
		{
			name: "multiple links preserve order",
			text: "https://www.roblox.com/game-pass/2/b and https://www.roblox.com/game-pass/1/a",
			want: []string{"2", "1"},
		},
		{
			name: "duplicate link collapses to first-seen position",
			text: "https://roblox.com/game-pass/777/x then again https://roblox.com/game-pass/777/x and https://roblox.com/game-pass/888",
			want: []string{"777", "888"},
		},
		{
			name: "case insensitive",
			text: "HTTPS://WWW.ROBLOX.COM/GAME-PASS/42",
			want: []string{"42"},
		},
		{
			name: "no links",
			text: "nothing to see here",
			want: nil,
		},
		{
			name: "empty text",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ExtractReferences(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ExtractReferences(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
