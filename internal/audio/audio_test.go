package audio

import "testing"

func TestSupportedExtension(t *testing.T) {
	supported := []string{
		"a.mp3", "a.wav", "a.m4a", "a.flac", "a.ogg", "a.webm", "a.aac", "a.aiff",
		"A.MP3", "recording.WaV", "/path/to/file.flac",
	}
	for _, name := range supported {
		if !SupportedExtension(name) {
			t.Errorf("SupportedExtension(%q) = false, want true", name)
		}
	}

	unsupported := []string{
		"a.txt", "a.pdf", "a.mp4", "noextension", "a.mp3.txt", "",
	}
	for _, name := range unsupported {
		if SupportedExtension(name) {
			t.Errorf("SupportedExtension(%q) = true, want false", name)
		}
	}
}

func TestSupportedExtensions(t *testing.T) {
	exts := SupportedExtensions()
	if len(exts) != 8 {
		t.Fatalf("got %d extensions, want 8: %v", len(exts), exts)
	}
	for i := 1; i < len(exts); i++ {
		if exts[i] < exts[i-1] {
			t.Fatalf("extensions not sorted: %v", exts)
		}
	}
}
