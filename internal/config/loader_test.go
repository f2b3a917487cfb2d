package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/example/winner-card/internal/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars(t)

			cfg, err := config.Load()

			convey.Convey("Then the documented defaults are used", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8000")
				convey.So(cfg.TemplateCount, convey.ShouldEqual, 5)
				convey.So(cfg.FaceScaleFactor, convey.ShouldEqual, 1.1)
				convey.So(cfg.FaceMinNeighbors, convey.ShouldEqual, 4)
				convey.So(cfg.FeatherRadius, convey.ShouldEqual, 10)
				convey.So(cfg.GlowRadius, convey.ShouldEqual, 35)
				convey.So(cfg.CardReference, convey.ShouldEqual, config.ReferenceURL)
				convey.So(cfg.ScoreConcurrency, convey.ShouldEqual, 1)
				convey.So(cfg.FaceMaxSize, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			clearConfigEnvVars(t)
			t.Setenv("WINNERCARD_ADDR", ":9090")
			t.Setenv("WINNERCARD_GLOW_RADIUS", "5")
			t.Setenv("WINNERCARD_CARD_REFERENCE", "path")
			t.Setenv("WINNERCARD_EMOTION_TIMEOUT", "3s")
			t.Setenv("WINNERCARD_FACE_MIN_NEIGHBORS", "2")

			cfg, err := config.Load()

			convey.Convey("Then env vars override defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.GlowRadius, convey.ShouldEqual, 5)
				convey.So(cfg.CardReference, convey.ShouldEqual, config.ReferencePath)
				convey.So(cfg.EmotionTimeout, convey.ShouldEqual, 3*time.Second)
				convey.So(cfg.FaceMinNeighbors, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			clearConfigEnvVars(t)
			path := filepath.Join(t.TempDir(), "config.yaml")
			content := "templates_dir: /srv/templates\nglow_color: \"#00ff00\"\nupward_shift: 0.25\n"
			convey.So(os.WriteFile(path, []byte(content), 0o600), convey.ShouldBeNil)
			t.Setenv("WINNERCARD_CONFIG", path)

			cfg, err := config.Load()

			convey.Convey("Then file values are applied", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.TemplatesDir, convey.ShouldEqual, "/srv/templates")
				convey.So(cfg.UpwardShift, convey.ShouldEqual, 0.25)
				glow, err := cfg.GlowRGBA()
				convey.So(err, convey.ShouldBeNil)
				convey.So(glow.G, convey.ShouldEqual, 0xff)
				convey.So(glow.R, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the YAML file does not exist", func() {
			clearConfigEnvVars(t)
			t.Setenv("WINNERCARD_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

			_, err := config.Load()

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the s3 reference mode has no bucket", func() {
			clearConfigEnvVars(t)
			t.Setenv("WINNERCARD_CARD_REFERENCE", "s3")

			_, err := config.Load()

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a blur radius is zero", func() {
			clearConfigEnvVars(t)
			t.Setenv("WINNERCARD_FEATHER_RADIUS", "0")

			_, err := config.Load()

			convey.Convey("Then validation fails instead of falling back to the default", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the face max size is below the min size", func() {
			clearConfigEnvVars(t)
			t.Setenv("WINNERCARD_FACE_MAX_SIZE", "10")

			_, err := config.Load()

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the emotion backend is unknown", func() {
			clearConfigEnvVars(t)
			t.Setenv("WINNERCARD_EMOTION_BACKEND", "tarot")

			_, err := config.Load()

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func TestParseHexColor(t *testing.T) {
	convey.Convey("Given hex colours", t, func() {
		c, err := config.ParseHexColor("#ff0")
		convey.So(err, convey.ShouldBeNil)
		convey.So([]uint8{c.R, c.G, c.B, c.A}, convey.ShouldResemble, []uint8{255, 255, 0, 255})

		_, err = config.ParseHexColor("#12345")
		convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)

		_, err = config.ParseHexColor("zzzzzz")
		convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
	})
}

func clearConfigEnvVars(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] != '=' {
				continue
			}
			key := kv[:i]
			if len(key) > len("WINNERCARD_") && key[:len("WINNERCARD_")] == "WINNERCARD_" {
				t.Setenv(key, "")
				_ = os.Unsetenv(key)
			}
			break
		}
	}
	_ = os.Unsetenv("WINNERCARD_CONFIG")
}
