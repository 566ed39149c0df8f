package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStore_SaveRead(t *testing.T) {
	s := NewStore(t.TempDir())
	path := s.Path(SegmentsDir, "nested", "a.bin")

	if err := s.Save(path, []byte("payload")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !s.Exists(path) {
		t.Fatal("saved file does not exist")
	}

	data, err := s.Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("Read() = %q", data)
	}

	if err := s.Save(path, []byte("v2")); err != nil {
		t.Fatalf("Save() overwrite error = %v", err)
	}
	data, _ = s.Read(path)
	if string(data) != "v2" {
		t.Errorf("Read() after overwrite = %q", data)
	}
}

func TestStore_Reset(t *testing.T) {
	s := NewStore(t.TempDir())
	dir := s.Path(SegmentsDir)

	t.Run("creates_missing", func(t *testing.T) {
		if err := s.Reset(dir); err != nil {
			t.Fatalf("Reset() error = %v", err)
		}
		if !s.Exists(dir) {
			t.Fatal("Reset() did not create the directory")
		}
	})

	t.Run("empties_existing", func(t *testing.T) {
		for _, name := range []string{"a", "b"} {
			if err := s.Save(filepath.Join(dir, name), []byte(name)); err != nil {
				t.Fatal(err)
			}
		}
		if err := os.Mkdir(filepath.Join(dir, "keep"), 0o755); err != nil {
			t.Fatal(err)
		}

		if err := s.Reset(dir); err != nil {
			t.Fatalf("Reset() error = %v", err)
		}
		files, err := s.List(dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(files) != 0 {
			t.Errorf("files after Reset() = %v", files)
		}
		if !s.Exists(filepath.Join(dir, "keep")) {
			t.Error("Reset() removed a sub-directory")
		}
	})
}

func TestStore_List(t *testing.T) {
	s := NewStore(t.TempDir())
	dir := s.Path(DownloadsDir)

	files, err := s.List(dir)
	if err != nil || files != nil {
		t.Fatalf("List(missing) = (%v, %v)", files, err)
	}

	for _, name := range []string{"b.m3u8", "a.mpd", "c.m3u8"} {
		if err := s.Save(filepath.Join(dir, name), nil); err != nil {
			t.Fatal(err)
		}
	}
	files, err = s.List(dir)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a.mpd", "b.m3u8", "c.m3u8"}, files); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_Remove(t *testing.T) {
	s := NewStore(t.TempDir())
	path := s.Path(Thumbnail)

	if err := s.Remove(path); err != nil {
		t.Errorf("Remove(missing) error = %v", err)
	}
	if err := s.Save(path, []byte("png")); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(path); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if s.Exists(path) {
		t.Error("file still exists after Remove()")
	}

	dir := s.Path(SegmentsDir)
	if err := s.Save(filepath.Join(dir, "x"), nil); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveAll(dir); err != nil {
		t.Fatalf("RemoveAll() error = %v", err)
	}
	if s.Exists(dir) {
		t.Error("directory still exists after RemoveAll()")
	}
}
