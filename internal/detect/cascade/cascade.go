// Package cascade finds eye centres with OpenCV Haar cascades.
package cascade

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"sigil-overlay/internal/detect"
	"sigil-overlay/pkg/geometry"

	"gocv.io/x/gocv"
)

// Detector locates the largest face, then the eyes inside it. Classifiers are
// not safe for concurrent use, so calls are serialized.
type Detector struct {
	mu   sync.Mutex
	face gocv.CascadeClassifier
	eye  gocv.CascadeClassifier
	log  *slog.Logger
}

var _ detect.Detector = (*Detector)(nil)

// New loads the face and eye cascade XML files.
func New(faceModel, eyeModel string, log *slog.Logger) (*Detector, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	face := gocv.NewCascadeClassifier()
	if !face.Load(faceModel) {
		face.Close()
		return nil, fmt.Errorf("face model %q: %w", faceModel, detect.ErrNoCascade)
	}
	eye := gocv.NewCascadeClassifier()
	if !eye.Load(eyeModel) {
		face.Close()
		eye.Close()
		return nil, fmt.Errorf("eye model %q: %w", eyeModel, detect.ErrNoCascade)
	}
	return &Detector{face: face, eye: eye, log: log}, nil
}

// Close releases the classifiers.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.face.Close(); err != nil {
		return err
	}
	return d.eye.Close()
}

// Detect returns up to two normalized eye centres sorted left to right.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]geometry.Point2D, error) {
	if img == nil {
		return nil, fmt.Errorf("detect: no image")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := ImageToMat(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)
	gocv.EqualizeHist(gray, &gray)

	d.mu.Lock()
	defer d.mu.Unlock()

	faces := d.face.DetectMultiScale(gray)
	face, ok := detect.LargestRect(faces)
	if !ok {
		d.log.Debug("no face found")
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	roi := gray.Region(face)
	defer roi.Close()
	eyes := d.eye.DetectMultiScale(roi)
	d.log.Debug("cascade results", "faces", len(faces), "eyes", len(eyes))

	pts := detect.PickEyes(face, eyes)
	return detect.Arrange(detect.Normalize(pts, image.Rect(0, 0, mat.Cols(), mat.Rows()))), nil
}

// ImageToMat converts a Go image to a BGR gocv.Mat. On error the returned Mat
// holds nothing and need not be closed.
func ImageToMat(img image.Image) (gocv.Mat, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return gocv.Mat{}, fmt.Errorf("empty image")
	}

	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			mat.SetUCharAt(y, x*3+0, uint8(b>>8))
			mat.SetUCharAt(y, x*3+1, uint8(g>>8))
			mat.SetUCharAt(y, x*3+2, uint8(r>>8))
		}
	}
	return mat, nil
}
