package media

import "testing"

func TestTypeOfVideo(t *testing.T) {
	for _, name := range []string{"test.mp4", "test.MOV", "clip.mxf", "a.braw"} {
		mediaType, ok := TypeOf(name)
		if !ok || mediaType != TypeVideo {
			t.Fatalf("TypeOf(%q) = %v, %v; expected video", name, mediaType, ok)
		}
	}
}

func TestTypeOfAudio(t *testing.T) {
	for _, name := range []string{"test.mp3", "test.WAV", "mix.aiff"} {
		mediaType, ok := TypeOf(name)
		if !ok || mediaType != TypeAudio {
			t.Fatalf("TypeOf(%q) = %v, %v; expected audio", name, mediaType, ok)
		}
	}
}

func TestTypeOfImage(t *testing.T) {
	for _, name := range []string{"test.jpg", "test.PNG", "comp.psd", "frame.exr"} {
		mediaType, ok := TypeOf(name)
		if !ok || mediaType != TypeImage {
			t.Fatalf("TypeOf(%q) = %v, %v; expected image", name, mediaType, ok)
		}
	}
}

func TestTypeOfProject(t *testing.T) {
	for _, name := range []string{"edit.prproj", "title.mogrt", "cut.edl"} {
		mediaType, ok := TypeOf(name)
		if !ok || mediaType != TypeProject {
			t.Fatalf("TypeOf(%q) = %v, %v; expected project", name, mediaType, ok)
		}
	}
}

func TestTypeOfRejectsNonMedia(t *testing.T) {
	for _, name := range []string{"test.txt", "main.go", "test", "trailing.", "noext"} {
		if _, ok := TypeOf(name); ok {
			t.Fatalf("TypeOf(%q) unexpectedly matched", name)
		}
	}
}

func TestTypeOfUsesFinalSuffixOnly(t *testing.T) {
	if !IsMediaFile("archive.tar.mp4") {
		t.Fatal("expected final suffix to decide relevance")
	}
	if IsMediaFile("clip.mp4.part") {
		t.Fatal("expected non-media final suffix to be rejected")
	}
}

func TestTypeOfIgnoresDirectoryComponents(t *testing.T) {
	if !IsMediaFile("/footage/day.1/clip.mov") {
		t.Fatal("expected path with dotted directory to match on base name")
	}
}

func TestIsHidden(t *testing.T) {
	if !IsHidden(".DS_Store") {
		t.Fatal("expected dotfile to be hidden")
	}
	if !IsHidden("/tmp/w/.cache") {
		t.Fatal("expected nested dotfile to be hidden")
	}
	if IsHidden("/tmp/w/visible.mp4") {
		t.Fatal("expected regular file not to be hidden")
	}
}

func TestIgnoreSetMatchesBaseName(t *testing.T) {
	set, err := NewIgnoreSet([]string{"*.tmp", "~$*"})
	if err != nil {
		t.Fatalf("new ignore set: %v", err)
	}

	if !set.Match("/tmp/w/render.tmp") {
		t.Fatal("expected *.tmp to match")
	}
	if !set.Match("~$budget.xlsx") {
		t.Fatal("expected office lock file to match")
	}
	if set.Match("/tmp/w/clip.mp4") {
		t.Fatal("expected media file not to match")
	}
}

func TestIgnoreSetRejectsBadPattern(t *testing.T) {
	if _, err := NewIgnoreSet([]string{"[unclosed"}); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}

func TestIgnoreSetEmpty(t *testing.T) {
	set, err := NewIgnoreSet(nil)
	if err != nil {
		t.Fatalf("new ignore set: %v", err)
	}
	if !set.Empty() {
		t.Fatal("expected empty set")
	}
	if set.Match("anything") {
		t.Fatal("expected empty set to match nothing")
	}
}
