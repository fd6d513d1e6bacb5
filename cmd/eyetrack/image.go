package main

import (
	"flag"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/disintegration/imaging"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/term"

	"github.com/ayusman/eyetrack/internal/engine"
)

// MaxImageSide bounds still images before tracking.
const MaxImageSide = 1280

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type imageResult struct {
	Path  string `json:"path"`
	Error string `json:"error,omitempty"`
	*engine.TrackingResult
}

func imageCmd(args []string) error {
	fs := flag.NewFlagSet("image", flag.ExitOnError)
	envFile := fs.String("env", "", "Environment file (default .env when present)")
	fs.Parse(args)

	if fs.NArg() == 0 {
		return fmt.Errorf("image: no files given")
	}

	cfg, log, logCloser, err := setup(*envFile)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	eng := engine.New(cfg.Engine(), engine.WithLogger(log))
	defer eng.Close()
	eng.Initialize()
	active, ok := eng.ActiveBackend()
	if !ok {
		return fmt.Errorf("no face detector backend could be loaded for %q", cfg.Backend)
	}
	log.WithField("backend", active.String()).Debug("tracking still images")

	pretty := term.IsTerminal(int(os.Stdout.Fd()))
	failed := 0
	for _, path := range fs.Args() {
		out := imageResult{Path: path}
		frame, err := loadFrame(path)
		if err != nil {
			failed++
			out.Error = err.Error()
			log.WithError(err).WithField("path", path).Warn("skipping image")
		} else {
			res := eng.ProcessFrame(frame)
			out.TrackingResult = &res
		}
		if err := writeResult(os.Stdout, out, pretty); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images could not be read", failed, fs.NArg())
	}
	return nil
}

// loadFrame decodes path honouring EXIF orientation and shrinks it to fit
// MaxImageSide.
func loadFrame(path string) (engine.Frame, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return engine.Frame{}, err
	}
	return bgrFrame(imaging.Fit(img, MaxImageSide, MaxImageSide, imaging.Lanczos)), nil
}

// bgrFrame packs img into a 3 channel BGR frame.
func bgrFrame(img *image.NRGBA) engine.Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]byte, 0, w*h*3)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < len(row); x += 4 {
			data = append(data, row[x+2], row[x+1], row[x])
		}
	}
	return engine.Frame{Data: data, Width: w, Height: h, Channels: 3}
}

func writeResult(w io.Writer, r imageResult, pretty bool) error {
	var (
		b   []byte
		err error
	)
	if pretty {
		b, err = json.MarshalIndent(r, "", "  ")
	} else {
		b, err = json.Marshal(r)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}
