package system

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFindLatestVideo(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.mp4")
	latest := filepath.Join(dir, "latest.MOV")
	for _, p := range []string{old, latest, filepath.Join(dir, "notes.txt")} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-time.Hour)
	os.Chtimes(old, past, past)

	got, err := FindLatestVideo(dir)
	if err != nil {
		t.Fatalf("FindLatestVideo() error = %v", err)
	}
	if got != latest {
		t.Errorf("FindLatestVideo() = %s, want %s", got, latest)
	}

	if _, err := FindLatestVideo(t.TempDir()); err == nil {
		t.Error("expected error for empty dir")
	}
}

func TestMetadataPathFor(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "rec.mp4")
	if _, ok := MetadataPathFor(video); ok {
		t.Error("no sidecar expected yet")
	}
	sidecar := filepath.Join(dir, "rec.json")
	os.WriteFile(sidecar, []byte("{}"), 0644)
	if got, ok := MetadataPathFor(video); !ok || got != sidecar {
		t.Errorf("MetadataPathFor() = %s, %v", got, ok)
	}
}

func TestQualityArgs(t *testing.T) {
	tests := []struct {
		encoder string
		quality int
		want    []string
	}{
		{"h264_videotoolbox", 75, []string{"-b:v", "7500k"}},
		{"h264_nvenc", 23, []string{"-cq", "23"}},
		{"libx264", 20, []string{"-crf", "20", "-preset", "medium"}},
	}
	for _, tt := range tests {
		got := QualityArgs(tt.encoder, tt.quality)
		if len(got) != len(tt.want) {
			t.Errorf("QualityArgs(%s) = %v, want %v", tt.encoder, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("QualityArgs(%s) = %v, want %v", tt.encoder, got, tt.want)
				break
			}
		}
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{"black", color.RGBA{0, 0, 0, 255}, false},
		{"White", color.RGBA{255, 255, 255, 255}, false},
		{"#ff8000", color.RGBA{255, 128, 0, 255}, false},
		{"#0f0", color.RGBA{0, 255, 0, 255}, false},
		{"#11223344", color.RGBA{0x11, 0x22, 0x33, 0x44}, false},
		{"nope", color.RGBA{}, true},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseColor(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestImagePoolReuse(t *testing.T) {
	p := NewImagePool()
	rect := image.Rect(0, 0, 8, 8)
	img := p.Get(rect)
	if img.Bounds() != rect {
		t.Fatalf("bounds = %v, want %v", img.Bounds(), rect)
	}
	p.Put(img)
	p.Put(nil)

	src := image.NewRGBA(rect)
	src.Pix[0] = 42
	if c := Clone(src); c.Pix[0] != 42 || c == src {
		t.Error("Clone() should copy pixels into a distinct frame")
	}
}
