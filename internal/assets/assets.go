// Package assets stores and retrieves the sigil images that marks are drawn
// with. Names are opaque to callers; uploads are given a generated name.
package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Limits and defaults shared by every store.
const (
	DefaultMaxBytes = 5 << 20
	DefaultTTL      = time.Hour
	CustomPrefix    = "custom-"
)

var (
	// ErrNotFound is returned when no asset has the requested name.
	ErrNotFound = errors.New("sigil not found")
	// ErrTooLarge is returned when an upload exceeds the size limit.
	ErrTooLarge = errors.New("sigil too large")
	// ErrEmpty is returned when an upload or image has no data.
	ErrEmpty = errors.New("no sigil provided")
)

// Store is a named collection of sigil images.
type Store interface {
	// ListNames returns the built-in sigils in no particular order.
	ListNames(ctx context.Context) ([]string, error)
	// Fetch returns the encoded image stored under name.
	Fetch(ctx context.Context, name string) ([]byte, error)
	// Put saves an uploaded image and returns the name it was given.
	Put(ctx context.Context, originalName string, data []byte) (string, error)
}

// Sweeper removes uploaded sigils that have outlived their TTL.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Options configures limits common to all stores.
type Options struct {
	MaxBytes int64
	TTL      time.Duration
	Now      func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func (o Options) check(data []byte) error {
	if len(data) == 0 {
		return ErrEmpty
	}
	if int64(len(data)) > o.MaxBytes {
		return fmt.Errorf("%d bytes exceeds %d: %w", len(data), o.MaxBytes, ErrTooLarge)
	}
	return nil
}

// CustomName returns the name an upload is stored under.
func CustomName(now time.Time, originalName string) string {
	base := filepath.Base(strings.ReplaceAll(originalName, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "sigil.png"
	}
	return CustomPrefix + strconv.FormatInt(now.UnixMilli(), 10) + "-" + base
}

// UploadTime extracts the upload timestamp from a custom name.
func UploadTime(name string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(name, CustomPrefix)
	if !ok {
		return time.Time{}, false
	}
	stamp, _, ok := strings.Cut(rest, "-")
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// IsImageName reports whether name has an extension the sigil list accepts.
func IsImageName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif":
		return true
	}
	return false
}

// validName rejects names that could escape a store directory.
func validName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

// Decode decodes an encoded sigil or base image.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// LoadImageFile reads and decodes an image file from disk.
func LoadImageFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	img, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return img, nil
}
