package assets

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() func() time.Time {
	return func() time.Time { return epoch }
}

func pngData(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(1, 1, color.RGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCustomName(t *testing.T) {
	assert.Equal(t, "custom-1709294400000-eye.png", CustomName(epoch, "eye.png"))
	assert.Equal(t, "custom-1709294400000-evil.png", CustomName(epoch, "../../etc/evil.png"))
	assert.Equal(t, "custom-1709294400000-x.png", CustomName(epoch, `C:\Users\me\x.png`))

	got, ok := UploadTime("custom-1709294400000-eye.png")
	require.True(t, ok)
	assert.True(t, got.Equal(epoch))
	_, ok = UploadTime("sigil1.png")
	assert.False(t, ok)
}

func TestIsImageName(t *testing.T) {
	assert.True(t, IsImageName("a.PNG"))
	assert.True(t, IsImageName("b.jpeg"))
	assert.True(t, IsImageName("c.gif"))
	assert.False(t, IsImageName("notes.txt"))
	assert.False(t, IsImageName("noext"))
}

func TestDecode(t *testing.T) {
	img, err := Decode(pngData(t))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())

	_, err = Decode(nil)
	assert.ErrorIs(t, err, ErrEmpty)
	_, err = Decode([]byte("not an image"))
	assert.Error(t, err)
}

func newDirStore(t *testing.T) (*DirStore, string, string) {
	t.Helper()
	root := t.TempDir()
	def := filepath.Join(root, "sigils")
	custom := filepath.Join(root, "tmp")
	require.NoError(t, os.MkdirAll(def, 0o755))
	s := NewDirStore(def, custom, Options{MaxBytes: 1024, Now: fixedClock()}, nil)
	return s, def, custom
}

func TestDirStore_ListFiltersImages(t *testing.T) {
	s, def, _ := newDirStore(t)
	for _, name := range []string{"sigil1.png", "sigil2.PNG", "readme.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(def, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(def, "nested.png"), 0o755))

	names, err := s.ListNames(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"sigil1.png", "sigil2.PNG"}, names)
}

func TestDirStore_PutThenFetch(t *testing.T) {
	s, _, custom := newDirStore(t)
	ctx := context.Background()
	data := pngData(t)

	name, err := s.Put(ctx, "mine.png", data)
	require.NoError(t, err)
	assert.Equal(t, "custom-1709294400000-mine.png", name)
	assert.FileExists(t, filepath.Join(custom, name))

	got, err := s.Fetch(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	names, err := s.ListNames(ctx)
	require.NoError(t, err)
	assert.NotContains(t, names, name, "uploads are not listed as built-ins")
}

func TestDirStore_FetchPrefersCustom(t *testing.T) {
	s, def, custom := newDirStore(t)
	require.NoError(t, os.MkdirAll(custom, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(def, "same.png"), []byte("default"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(custom, "same.png"), []byte("custom"), 0o644))

	got, err := s.Fetch(context.Background(), "same.png")
	require.NoError(t, err)
	assert.Equal(t, "custom", string(got))
}

func TestDirStore_FetchErrors(t *testing.T) {
	s, _, _ := newDirStore(t)
	ctx := context.Background()

	_, err := s.Fetch(ctx, "missing.png")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Fetch(ctx, "../secret.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDirStore_PutLimits(t *testing.T) {
	s, _, _ := newDirStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "big.png", make([]byte, 1025))
	assert.ErrorIs(t, err, ErrTooLarge)
	_, err = s.Put(ctx, "empty.png", nil)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestDirStore_Sweep(t *testing.T) {
	s, def, custom := newDirStore(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(def, "sigil1.png"), []byte("x"), 0o644))

	name, err := s.Put(ctx, "mine.png", []byte("data"))
	require.NoError(t, err)

	n, err := s.Sweep(ctx, epoch.Add(59*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.FileExists(t, filepath.Join(custom, name))

	n, err = s.Sweep(ctx, epoch.Add(61*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoFileExists(t, filepath.Join(custom, name))
	assert.FileExists(t, filepath.Join(def, "sigil1.png"), "built-ins are never swept")
}

func TestDirStore_SweepWithoutCustomDir(t *testing.T) {
	s, _, _ := newDirStore(t)
	n, err := s.Sweep(context.Background(), epoch)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func newSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQLStore(filepath.Join(t.TempDir(), "sigils.db"), Options{MaxBytes: 1024, Now: fixedClock()}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLStore_SeedListFetch(t *testing.T) {
	s := newSQLStore(t)
	ctx := context.Background()

	require.NoError(t, s.Seed(ctx, "sigil2.png", []byte("two")))
	require.NoError(t, s.Seed(ctx, "sigil1.png", []byte("one")))
	require.NoError(t, s.Seed(ctx, "sigil1.png", []byte("uno")), "seeding twice replaces")
	_, err := s.Put(ctx, "up.png", []byte("custom"))
	require.NoError(t, err)

	names, err := s.ListNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sigil1.png", "sigil2.png"}, names)

	got, err := s.Fetch(ctx, "sigil1.png")
	require.NoError(t, err)
	assert.Equal(t, "uno", string(got))

	_, err = s.Fetch(ctx, "nope.png")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, s.Seed(ctx, "custom-1-x.png", []byte("x")))
}

func TestSQLStore_SeedDir(t *testing.T) {
	s := newSQLStore(t)
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sigil1.png"), []byte("one"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.gif"), nil, 0o644))

	n, err := s.SeedDir(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	names, err := s.ListNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sigil1.png"}, names)

	n, err = s.SeedDir(ctx, filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLStore_PutAndSweep(t *testing.T) {
	s := newSQLStore(t)
	ctx := context.Background()

	name, err := s.Put(ctx, "mine.png", []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, "custom-1709294400000-mine.png", name)

	got, err := s.Fetch(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))

	_, err = s.Put(ctx, "big.png", make([]byte, 2048))
	assert.ErrorIs(t, err, ErrTooLarge)

	n, err := s.Sweep(ctx, epoch.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.Sweep(ctx, epoch.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = s.Fetch(ctx, name)
	assert.ErrorIs(t, err, ErrNotFound)
}

type countingSweeper struct{ calls chan time.Time }

func (c countingSweeper) Sweep(_ context.Context, now time.Time) (int, error) {
	c.calls <- now
	return 0, nil
}

func TestRunSweeper_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sw := countingSweeper{calls: make(chan time.Time, 16)}
	done := make(chan struct{})
	go func() {
		RunSweeper(ctx, sw, time.Millisecond, nil)
		close(done)
	}()

	select {
	case <-sw.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper never ran")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
