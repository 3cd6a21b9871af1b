package meta

import "testing"

func TestSanitizeComponent(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Frozen Cloud", "Frozen Cloud"},
		{"AC/DC", "ACDC"},
		{`What? "Now" <live>`, "What Now live"},
		{"a:b|c*d\\e", "abcde"},
		{"  ...Dots...  ", "Dots"},
		{"???", "Unknown"},
		{"", "Unknown"},
		{"Tab\tand  space", "Tab and space"},
	}
	for _, tt := range tests {
		if got := SanitizeComponent(tt.in); got != tt.want {
			t.Errorf("SanitizeComponent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRemoteKey(t *testing.T) {
	rec := &Record{Title: "Horizon: Part 2", Artist: "Frozen Cloud", Album: "Glass/Weather"}

	if got := RemoteKey(rec, ".MP3", ""); got != "Frozen Cloud/GlassWeather/Horizon Part 2.mp3" {
		t.Errorf("RemoteKey = %q", got)
	}
	if got := RemoteKey(rec, ".wav", "20261017"); got != "Frozen Cloud/GlassWeather/Horizon Part 2-20261017.wav" {
		t.Errorf("RemoteKey with suffix = %q", got)
	}
}

func TestContentTypeAndSupport(t *testing.T) {
	tests := []struct {
		path      string
		supported bool
		wav       bool
		ct        string
	}{
		{"/in/a.mp3", true, false, "audio/mpeg"},
		{"/in/a.MP3", true, false, "audio/mpeg"},
		{"/in/a.wav", true, true, "audio/wav"},
		{"/in/a.WAV", true, true, "audio/wav"},
		{"/in/a.flac", false, false, "audio/wav"},
		{"/in/notes.txt", false, false, "audio/wav"},
	}
	for _, tt := range tests {
		if got := IsSupported(tt.path); got != tt.supported {
			t.Errorf("IsSupported(%q) = %v", tt.path, got)
		}
		if got := IsWAV(tt.path); got != tt.wav {
			t.Errorf("IsWAV(%q) = %v", tt.path, got)
		}
		if got := ContentType(tt.path); got != tt.ct {
			t.Errorf("ContentType(%q) = %q", tt.path, got)
		}
	}
}
