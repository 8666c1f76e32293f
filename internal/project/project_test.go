package project

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ivlev/vividcut/internal/editor"
	"github.com/ivlev/vividcut/internal/effects"
	"github.com/ivlev/vividcut/internal/metadata"
	"github.com/ivlev/vividcut/internal/source"
	"github.com/ivlev/vividcut/internal/textcard"
)

// writeFrames creates a directory of n small PNG frames.
func writeFrames(t *testing.T, dir string, n int) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 8, 6))
		for p := 0; p < len(img.Pix); p += 4 {
			img.Pix[p], img.Pix[p+3] = uint8(i), 255
		}
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("frame_%03d.png", i)))
		if err != nil {
			t.Fatal(err)
		}
		if err := png.Encode(f, img); err != nil {
			t.Fatal(err)
		}
		f.Close()
	}
}

func newEditor(t *testing.T) *editor.Editor {
	t.Helper()
	cards, err := textcard.New(textcard.DefaultOptions(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	e := editor.New(editor.Options{Source: source.Options{SequenceFPS: 10}}, nil, cards, nil, zerolog.Nop())
	t.Cleanup(func() { e.Close() })
	return e
}

func TestSaveOpen(t *testing.T) {
	dir := t.TempDir()
	frames := filepath.Join(dir, "frames")
	writeFrames(t, frames, 40)

	meta := &metadata.Metadata{Region: []int{0, 0, 8, 6}}
	e := newEditor(t)
	if err := e.Load(context.Background(), frames, meta); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	e.RecordCutPoint(0, 150)
	e.CutClip()
	e.TrimRight(35)
	e.AddTextCard(30, 50, effects.CardParams{Text: "Итоги"})
	e.AddZoom(2, 12, effects.ZoomParams{X: 0.3, Y: 0.4, Scale: 1.5, EaseInFrames: 2, EaseOutFrames: 2})
	e.Undo()

	path := filepath.Join(dir, "demo"+Extension)
	saved, err := Save(e, path)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	e2 := newEditor(t)
	p, err := Open(context.Background(), e2, path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if p.ID != saved.ID {
		t.Errorf("ID = %s, want %s", p.ID, saved.ID)
	}

	if got, want := len(e2.Segments()), 2; got != want {
		t.Errorf("segments = %d, want %d", got, want)
	}
	if got, want := e2.TotalFrames(), e.TotalFrames(); got != want {
		t.Errorf("TotalFrames() = %d, want %d", got, want)
	}
	cards := e2.Cards()
	if len(cards) != 1 || cards[0].Params.Text != "Итоги" {
		t.Errorf("Cards() = %+v", cards)
	}
	if !e2.CanRedo() {
		t.Error("undone zoom should be redoable after reopening")
	}

	if !e2.Redo() || len(e2.Zooms()) != 1 {
		t.Error("Redo() did not bring back the zoom")
	}
	for e2.Undo() {
	}
	if len(e2.Segments()) != 1 || len(e2.Cards()) != 0 || e2.EndFrame() != 40 {
		t.Errorf("full undo after reopen: %d segments, %d cards, end %d", len(e2.Segments()), len(e2.Cards()), e2.EndFrame())
	}
}

func TestSaveKeepsIdentity(t *testing.T) {
	dir := t.TempDir()
	frames := filepath.Join(dir, "frames")
	writeFrames(t, frames, 3)

	e := newEditor(t)
	if err := e.Load(context.Background(), frames, nil); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "p"+Extension)
	first, err := Save(e, path)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Save(e, path)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID || !first.Created.Equal(second.Created) {
		t.Errorf("resave changed identity: %s/%v vs %s/%v", first.ID, first.Created, second.ID, second.Created)
	}
}

func TestReadRejects(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad yaml", "version: [", "parse"},
		{"old version", "version: \"0.1\"\nid: " + New("x").ID + "\nsource: x\n", "unsupported project version"},
		{"no source", "version: \"1.0\"\nid: " + New("x").ID + "\n", "no source"},
		{"bad id", "version: \"1.0\"\nid: nope\nsource: x\n", "project id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+Extension)
			if err := os.WriteFile(path, []byte(tt.body), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Read(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Read() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestGeneratePath(t *testing.T) {
	path := GeneratePath("projects", "/media/demo.mp4")
	if filepath.Dir(path) != "projects" {
		t.Errorf("dir = %s", filepath.Dir(path))
	}
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "demo_") || !strings.HasSuffix(base, Extension) {
		t.Errorf("unexpected name %s", base)
	}
}
