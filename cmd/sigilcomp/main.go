// Command sigilcomp composites a sigil over the eyes in an image without
// opening the editor.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sigil-overlay/internal/assets"
	"sigil-overlay/internal/detect"
	"sigil-overlay/internal/detect/cascade"
	"sigil-overlay/internal/logging"
	"sigil-overlay/internal/placement"
	"sigil-overlay/internal/render"
	"sigil-overlay/internal/transform"
	"sigil-overlay/pkg/geometry"
)

func main() {
	imagePath := flag.String("image", "", "Path to the base image")
	sigilPath := flag.String("sigil", "sigils/sigil1.png", "Path to the sigil image")
	outPath := flag.String("out", render.ExportFileName, "Output PNG path")
	size := flag.Float64("size", 25, "Sigil size, percent of a quarter of the shorter image side (0-300)")
	opacity := flag.Float64("opacity", 35, "Sigil opacity, percent (0-100)")
	rotation := flag.Float64("rotation", 0, "Sigil rotation in degrees")
	at := flag.String("at", "", "Normalized points \"x,y;x,y\" to use instead of detection")
	faceModel := flag.String("face", "haarcascade_frontalface_default.xml", "Face cascade model")
	eyeModel := flag.String("eye", "haarcascade_eye.xml", "Eye cascade model")
	interp := flag.String("interp", "catmullrom", "Resampling: catmullrom, bilinear or nearest")
	timeout := flag.Duration("timeout", 30*time.Second, "Detection timeout")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: sigilcomp -image <path> [-sigil sigil.png] [-out out.png] [-size 25] [-opacity 35] [-rotation 0] [-at x,y;x,y]")
		os.Exit(1)
	}
	log := logging.New(*logLevel, nil)

	base, err := assets.LoadImageFile(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load image: %v\n", err)
		os.Exit(1)
	}
	bounds := base.Bounds()
	fmt.Printf("Loaded image: %dx%d pixels\n", bounds.Dx(), bounds.Dy())

	sigil, err := assets.LoadImageFile(*sigilPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load sigil: %v\n", err)
		os.Exit(1)
	}

	var points []geometry.Point2D
	if *at != "" {
		points, err = parsePoints(*at)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -at: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Using %d manual point(s)\n", len(points))
	} else {
		fmt.Printf("\nDetecting eyes...\n")
		det, err := cascade.New(*faceModel, *eyeModel, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Detection unavailable: %v\n", err)
			os.Exit(1)
		}
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		points, err = det.Detect(ctx, base)
		cancel()
		det.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Detection failed: %v\n", err)
			os.Exit(1)
		}
		points = detect.Arrange(points)
		if len(points) == 0 {
			fmt.Fprintln(os.Stderr, "No faces detected; try -at for manual placement")
			os.Exit(1)
		}
	}

	marks := marksAt(points, bounds.Dx(), bounds.Dy(), *rotation)
	fmt.Printf("\n%-6s %10s %10s %10s\n", "Mark", "X", "Y", "Rotation")
	for i, m := range marks {
		fmt.Printf("%-6d %10.1f %10.1f %10.1f\n", i, m.X, m.Y, m.Rotation)
	}

	r := render.NewRenderer(render.ParseInterpolation(*interp), log)
	out, err := r.Render(base, marks, sigil, render.Params{SizePercent: *size, OpacityPercent: *opacity}, 1)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Render failed: %v\n", err)
		os.Exit(1)
	}
	if err := render.SavePNG(*outPath, out); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nWrote %s\n", *outPath)
}

// parsePoints reads "x,y;x,y" pairs of normalized coordinates.
func parsePoints(s string) ([]geometry.Point2D, error) {
	var points []geometry.Point2D
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		xs, ys, ok := strings.Cut(pair, ",")
		if !ok {
			return nil, fmt.Errorf("%q: want x,y", pair)
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(xs), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(ys), 64)
		if err := errors.Join(errX, errY); err != nil {
			return nil, fmt.Errorf("%q: %w", pair, err)
		}
		if x < 0 || x > 1 || y < 0 || y > 1 {
			return nil, fmt.Errorf("%q: coordinates must be within [0,1]", pair)
		}
		points = append(points, geometry.NewPoint2D(x, y))
	}
	if len(points) == 0 {
		return nil, errors.New("no points given")
	}
	return points, nil
}

// marksAt places one mark per normalized point at source scale.
func marksAt(points []geometry.Point2D, width, height int, rotation float64) []placement.Mark {
	marks := make([]placement.Mark, 0, len(points))
	for _, p := range points {
		m := placement.NewMark(transform.NormalizedToDisplay(p, float64(width), float64(height), 1))
		m.Rotation = rotation
		marks = append(marks, m)
	}
	return marks
}
