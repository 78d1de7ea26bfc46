package attachment

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseDataURL(t *testing.T) {
	mime, data, err := ParseDataURL("data:image/png;base64,AAAA")
	if err != nil {
		t.Fatal(err)
	}
	if mime != "image/png" || len(data) != 3 {
		t.Fatalf("got %q with %d bytes", mime, len(data))
	}

	for _, bad := range []string{
		"",
		"not a data url",
		"data:text/plain;base64,AAAA",
		"data:image/png;base64,!!!",
	} {
		if _, _, err := ParseDataURL(bad); !errors.Is(err, ErrInvalidAttachment) {
			t.Fatalf("%q: expected ErrInvalidAttachment, got %v", bad, err)
		}
	}
}

func TestExtension(t *testing.T) {
	cases := map[string]string{
		"image/png":                 "png",
		"image/svg+xml":             "svg",
		"application/pdf":           "pdf",
		"text/plain; charset=utf-8": "plain",
		"IMAGE/JPEG":                "jpeg",
		"garbage":                   "bin",
		"image/":                    "bin",
	}
	for mime, want := range cases {
		if got := Extension(mime); got != want {
			t.Errorf("Extension(%q) = %q, want %q", mime, got, want)
		}
	}
}

func TestStorageNameShape(t *testing.T) {
	name := StorageName("image/png")
	if !strings.HasPrefix(name, "msg_") || !strings.HasSuffix(name, ".png") {
		t.Fatalf("unexpected name %q", name)
	}
	if name == StorageName("image/png") {
		t.Fatal("names must not repeat")
	}
}

func TestResolve(t *testing.T) {
	blob, err := Resolve(Multipart{Data: []byte("hello"), Filename: "a.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if blob.MimeType != "application/octet-stream" || blob.Size != 5 || blob.Filename != "a.txt" {
		t.Fatalf("unexpected blob %+v", blob)
	}

	blob, err = Resolve(DataURL("data:image/gif;base64,R0lG"))
	if err != nil {
		t.Fatal(err)
	}
	if blob.MimeType != "image/gif" || blob.Filename != "" {
		t.Fatalf("unexpected blob %+v", blob)
	}

	if _, err := Resolve(DataURL("data:image/png;base64,")); !errors.Is(err, ErrInvalidAttachment) {
		t.Fatalf("expected ErrInvalidAttachment, got %v", err)
	}
}

func TestResolveMode(t *testing.T) {
	if _, ok := ResolveMode("c", "k", "s", "dir", "").(RemoteMode); !ok {
		t.Fatal("full credentials should select remote mode")
	}
	m, ok := ResolveMode("c", "", "s", "dir", "http://x/").(LocalMode)
	if !ok {
		t.Fatal("partial credentials should select local mode")
	}
	if m.Dir != "dir" || m.BaseURL != "http://x" {
		t.Fatalf("unexpected local mode %+v", m)
	}
}

func TestLocalStorePutAndRelease(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "uploads")
	s := NewLocalStore(dir, "", zerolog.Nop())

	att, err := s.Put(ctx, "http://localhost:5001", Blob{Data: []byte{1, 2, 3}, MimeType: "image/png", Size: 3})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(att.URL, "http://localhost:5001/uploads/msg_") || !strings.HasSuffix(att.URL, ".png") {
		t.Fatalf("unexpected url %q", att.URL)
	}
	if att.Filename == "" || att.Size != 3 || att.MimeType != "image/png" {
		t.Fatalf("unexpected attachment %+v", att)
	}

	name, ok := LocalFileName(att.URL)
	if !ok {
		t.Fatalf("url %q should map to a local file", att.URL)
	}
	path := filepath.Join(dir, name)
	if b, err := os.ReadFile(path); err != nil || len(b) != 3 {
		t.Fatalf("file not written: %v", err)
	}

	if err := s.Release(ctx, att.URL); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("file should be removed")
	}

	// Missing files and foreign URLs are ignored.
	if err := s.Release(ctx, att.URL); err != nil {
		t.Fatal(err)
	}
	if err := s.Release(ctx, "https://cdn.example.com/x.png"); err != nil {
		t.Fatal(err)
	}
}

func TestLocalStoreBaseURLAndFilename(t *testing.T) {
	s := NewLocalStore(t.TempDir(), "https://chat.example.com/", zerolog.Nop())
	att, err := s.Put(context.Background(), "http://ignored", Blob{Data: []byte("x"), MimeType: "text/plain", Filename: "notes.txt", Size: 1})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(att.URL, "https://chat.example.com/uploads/") || !strings.HasSuffix(att.URL, ".plain") {
		t.Fatalf("unexpected url %q", att.URL)
	}
	if att.Filename != "notes.txt" {
		t.Fatalf("original filename lost: %q", att.Filename)
	}
}

func TestLocalStoreConcurrentPut(t *testing.T) {
	s := NewLocalStore(t.TempDir(), "", zerolog.Nop())

	const n = 32
	urls := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			att, err := s.Put(context.Background(), "http://h", Blob{Data: []byte{byte(i)}, MimeType: "image/jpeg", Size: 1})
			if err != nil {
				t.Error(err)
				return
			}
			urls[i] = att.URL
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, u := range urls {
		if seen[u] {
			t.Fatalf("duplicate url %q", u)
		}
		seen[u] = true
	}
}

func TestLocalFileNameRejectsTraversal(t *testing.T) {
	for _, u := range []string{
		"http://h/uploads/",
		"http://h/uploads/..",
		"http://h/other/a.png",
		"::bad",
	} {
		if name, ok := LocalFileName(u); ok {
			t.Errorf("%q should be rejected, got %q", u, name)
		}
	}
}

type fakeUploader struct {
	folder string
	data   []byte
	err    error
}

func (f *fakeUploader) Upload(ctx context.Context, r io.Reader, folder string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.folder = folder
	f.data, _ = io.ReadAll(r)
	return "https://res.cloudinary.com/demo/" + folder + "/obj", nil
}

func TestRemoteStoreFolders(t *testing.T) {
	ctx := context.Background()
	up := &fakeUploader{}
	s := NewRemoteStore(up, zerolog.Nop())

	att, err := s.Put(ctx, "", Blob{Data: []byte("img"), MimeType: "image/webp", Size: 3})
	if err != nil {
		t.Fatal(err)
	}
	if up.folder != ImagesFolder || string(up.data) != "img" {
		t.Fatalf("image went to %q", up.folder)
	}
	if !strings.HasSuffix(att.Filename, ".webp") {
		t.Fatalf("generated filename %q", att.Filename)
	}

	if _, err := s.Put(ctx, "", Blob{Data: []byte("pdf"), MimeType: "application/pdf", Filename: "a.pdf", Size: 3}); err != nil {
		t.Fatal(err)
	}
	if up.folder != FilesFolder {
		t.Fatalf("file went to %q", up.folder)
	}

	if err := s.Release(ctx, att.URL); err != nil {
		t.Fatalf("remote release should be a no-op, got %v", err)
	}
}

func TestRemoteStoreFailure(t *testing.T) {
	s := NewRemoteStore(&fakeUploader{err: errors.New("boom")}, zerolog.Nop())
	_, err := s.Put(context.Background(), "", Blob{Data: []byte("x"), MimeType: "image/png", Size: 1})
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}
