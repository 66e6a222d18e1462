package update

import (
	"testing"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "simple version", input: "0.8.2", want: "0.8.2"},
		{name: "version with v prefix", input: "v0.8.2", want: "0.8.2"},
		{name: "version with prerelease", input: "1.0.0-rc.1", want: "1.0.0-rc.1"},
		{name: "version with beta", input: "0.9.0-beta.2", want: "0.9.0-beta.2"},
		{name: "invalid format", input: "invalid", wantErr: true},
		{name: "empty string", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVersion(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseVersion() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if got.String() != tt.want {
				t.Errorf("ParseVersion() = %s, want %s", got.String(), tt.want)
			}
		})
	}
}

func TestIsNewer(t *testing.T) {
	tests := []struct {
		name    string
		current string
		latest  string
		want    bool
		wantErr bool
	}{
		{name: "patch bump", current: "1.0.0", latest: "1.0.1", want: true},
		{name: "major bump with prefix", current: "v1.9.9", latest: "v2.0.0", want: true},
		{name: "equal", current: "2.0.0", latest: "v2.0.0", want: false},
		{name: "older latest", current: "2.1.0", latest: "2.0.0", want: false},
		{name: "stable beats prerelease", current: "2.0.0-rc.1", latest: "2.0.0", want: true},
		{name: "prerelease is older than stable", current: "2.0.0", latest: "2.0.0-rc.1", want: false},
		{name: "invalid current", current: "dev", latest: "1.0.0", wantErr: true},
		{name: "invalid latest", current: "1.0.0", latest: "nope", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IsNewer(tt.current, tt.latest)
			if (err != nil) != tt.wantErr {
				t.Fatalf("IsNewer() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("IsNewer(%s, %s) = %v, want %v", tt.current, tt.latest, got, tt.want)
			}
		})
	}
}

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"v1.0.0", "1.0.0"},
		{"1.0.0", "1.0.0"},
		{"v0.9.0-rc.1", "0.9.0-rc.1"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeVersion(tt.input); got != tt.want {
				t.Errorf("NormalizeVersion(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
