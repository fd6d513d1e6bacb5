// Package config loads process configuration from an optional .env file and
// EYETRACK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/ayusman/eyetrack/internal/capture"
	"github.com/ayusman/eyetrack/internal/detector"
	"github.com/ayusman/eyetrack/internal/engine"
	"github.com/ayusman/eyetrack/internal/geom"
)

// Prefix is prepended to every environment key.
const Prefix = "EYETRACK_"

// DefaultEnvFile is read when present; its absence is not an error.
const DefaultEnvFile = ".env"

// Config is the validated process configuration.
type Config struct {
	Backend        string  `validate:"backend"`
	ModelVariant   string  `validate:"omitempty,oneof=n s m l x"`
	ModelDir       string  `validate:"omitempty,dir"`
	FocalLength    float64 `validate:"gt=0"`
	PrincipalX     float64 `validate:"gte=0"`
	PrincipalY     float64 `validate:"gte=0"`
	ScoreThreshold float64 `validate:"gt=0,lte=1"`

	CameraID        int     `validate:"min=0"`
	CameraWidth     int     `validate:"min=1,max=7680"`
	CameraHeight    int     `validate:"min=1,max=4320"`
	CameraFPS       int     `validate:"min=1,max=120"`
	MotionThreshold float64 `validate:"gt=0,max=100"`

	DBPath     string `validate:"required"`
	Record     bool
	ListenAddr string `validate:"hostname_port"`
	StaticDir  string `validate:"omitempty,dir"`

	LogLevel string `validate:"oneof=trace debug info warn warning error"`
	LogFile  string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Backend:         detector.Auto.String(),
		FocalLength:     engine.DefaultFocalLength,
		ScoreThreshold:  0.6,
		CameraWidth:     capture.DefaultWidth,
		CameraHeight:    capture.DefaultHeight,
		CameraFPS:       capture.DefaultFPS,
		MotionThreshold: capture.DefaultMotionThreshold,
		DBPath:          "eyetrack.db",
		ListenAddr:      "127.0.0.1:8765",
		LogLevel:        "info",
	}
}

// Load reads envFile into the environment without overriding variables that
// are already set, then builds and validates the configuration. An empty
// envFile means DefaultEnvFile, which may be missing; an explicit file must exist.
func Load(envFile string) (Config, error) {
	explicit := envFile != ""
	if !explicit {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment.
func FromEnv() (Config, error) {
	cfg := Default()
	r := reader{}

	r.str("BACKEND", &cfg.Backend)
	r.str("MODEL_VARIANT", &cfg.ModelVariant)
	r.str("MODEL_DIR", &cfg.ModelDir)
	r.float("FOCAL_LENGTH", &cfg.FocalLength)
	r.float("PRINCIPAL_X", &cfg.PrincipalX)
	r.float("PRINCIPAL_Y", &cfg.PrincipalY)
	r.float("SCORE_THRESHOLD", &cfg.ScoreThreshold)
	r.int("CAMERA_ID", &cfg.CameraID)
	r.int("CAMERA_WIDTH", &cfg.CameraWidth)
	r.int("CAMERA_HEIGHT", &cfg.CameraHeight)
	r.int("CAMERA_FPS", &cfg.CameraFPS)
	r.float("MOTION_THRESHOLD", &cfg.MotionThreshold)
	r.str("DB_PATH", &cfg.DBPath)
	r.bool("RECORD", &cfg.Record)
	r.str("LISTEN_ADDR", &cfg.ListenAddr)
	r.str("STATIC_DIR", &cfg.StaticDir)
	r.str("LOG_LEVEL", &cfg.LogLevel)
	r.str("LOG_FILE", &cfg.LogFile)

	if err := errors.Join(r.errs...); err != nil {
		return Config{}, err
	}

	if b, err := detector.ParseBackend(cfg.Backend); err == nil {
		cfg.Backend = b.String()
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = newValidator()

// newValidator adds the "backend" tag, which accepts every name and code
// detector.ParseBackend does.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.RegisterValidation("backend", func(fl validator.FieldLevel) bool {
		_, err := detector.ParseBackend(fl.Field().String())
		return err == nil
	})
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks every field against its constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// Engine returns the engine configuration.
func (c Config) Engine() engine.Config {
	ec := engine.DefaultConfig()
	ec.FocalLength = c.FocalLength
	ec.PrincipalPoint = geom.Pt(c.PrincipalX, c.PrincipalY)
	ec.ModelVariant = c.ModelVariant
	if b, err := detector.ParseBackend(c.Backend); err == nil {
		ec.Backend = b
	}
	ec.Detector.ScoreThreshold = float32(c.ScoreThreshold)
	if c.ModelDir != "" {
		ec.Detector.ModelDirs = append([]string{c.ModelDir}, ec.Detector.ModelDirs...)
	}
	return ec
}

// Camera returns the capture configuration.
func (c Config) Camera() capture.CameraConfig {
	return capture.CameraConfig{
		DeviceID: c.CameraID,
		Width:    c.CameraWidth,
		Height:   c.CameraHeight,
		FPS:      c.CameraFPS,
	}
}

// reader collects parse errors so every bad key is reported at once.
type reader struct {
	errs []error
}

func (r *reader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(Prefix + key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (r *reader) str(key string, dst *string) {
	if v, ok := r.lookup(key); ok {
		*dst = v
	}
}

func (r *reader) int(key string, dst *int) {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s%s: %w", Prefix, key, err))
		return
	}
	*dst = n
}

func (r *reader) float(key string, dst *float64) {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s%s: %w", Prefix, key, err))
		return
	}
	*dst = f
}

func (r *reader) bool(key string, dst *bool) {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s%s: %w", Prefix, key, err))
		return
	}
	*dst = b
}
