// Package config defines the service configuration and how it is loaded.
package config

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"time"
)

// Card reference modes.
const (
	ReferencePath = "path"
	ReferenceURL  = "url"
	ReferenceS3   = "s3"
)

// Emotion classifier backends.
const (
	EmotionDeepFace = "deepface"
	EmotionGRPC     = "grpc"
)

// Config contains process configuration. Keys are flat and map 1:1 to
// WINNERCARD_<KEY> environment variables.
type Config struct {
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`
	LogFile  string `koanf:"log_file"`

	Addr           string        `koanf:"addr" validate:"required"`
	PublicBaseURL  string        `koanf:"public_base_url" validate:"omitempty,url"`
	StaticPrefix   string        `koanf:"static_prefix" validate:"required,startswith=/"`
	MaxUploadBytes int64         `koanf:"max_upload_bytes" validate:"gt=0"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gt=0"`

	// JWT auth is enabled only when JWTSecret is set.
	JWTSecret   string `koanf:"jwt_secret"`
	JWTAudience string `koanf:"jwt_audience"`

	RateLimitRPS   float64 `koanf:"rate_limit_rps" validate:"gte=0"`
	RateLimitBurst int     `koanf:"rate_limit_burst" validate:"gte=0"`

	TempDir   string `koanf:"temp_dir" validate:"required"`
	OutputDir string `koanf:"output_dir" validate:"required"`

	TemplatesDir    string `koanf:"templates_dir" validate:"required"`
	TemplatePattern string `koanf:"template_pattern" validate:"required,contains=%d"`
	TemplateCount   int    `koanf:"template_count" validate:"gt=0"`

	FaceCascadePath      string  `koanf:"face_cascade_path" validate:"required"`
	FaceScaleFactor      float64 `koanf:"face_scale_factor" validate:"gt=1"`
	FaceMinNeighbors     int     `koanf:"face_min_neighbors" validate:"gte=0"`
	FaceMinSize          int     `koanf:"face_min_size" validate:"gt=0"`
	FaceMaxSize          int     `koanf:"face_max_size" validate:"omitempty,gtfield=FaceMinSize"`
	FaceShiftFactor      float64 `koanf:"face_shift_factor" validate:"gt=0,lte=1"`
	FaceIoUThreshold     float64 `koanf:"face_iou_threshold" validate:"gte=0,lte=1"`
	FaceQualityThreshold float64 `koanf:"face_quality_threshold" validate:"gte=0"`
	FacePadding          float64 `koanf:"face_padding" validate:"gte=1"`

	EmotionBackend  string        `koanf:"emotion_backend" validate:"oneof=deepface grpc"`
	DeepFaceURL     string        `koanf:"deepface_url" validate:"omitempty,url"`
	EmotionGRPCAddr string        `koanf:"emotion_grpc_addr" validate:"required_if=EmotionBackend grpc"`
	EmotionTimeout  time.Duration `koanf:"emotion_timeout" validate:"gt=0"`

	RembgURL     string        `koanf:"rembg_url" validate:"required,url"`
	RembgTimeout time.Duration `koanf:"rembg_timeout" validate:"gt=0"`

	FeatherRadius float64 `koanf:"feather_radius" validate:"gt=0"`
	GlowRadius    float64 `koanf:"glow_radius" validate:"gt=0"`
	GlowColor     string  `koanf:"glow_color" validate:"hexcolor"`
	HeightRatio   float64 `koanf:"height_ratio" validate:"gt=0,lte=1"`
	UpwardShift   float64 `koanf:"upward_shift"`

	CardReference string `koanf:"card_reference" validate:"oneof=path url s3"`
	S3Bucket      string `koanf:"s3_bucket" validate:"required_if=CardReference s3"`
	S3Region      string `koanf:"s3_region" validate:"required_if=CardReference s3"`
	S3Prefix      string `koanf:"s3_prefix"`

	// DatabaseDSN and RedisAddr are optional; empty disables the layer.
	DatabaseDSN   string        `koanf:"database_dsn"`
	RedisAddr     string        `koanf:"redis_addr"`
	ScoreCacheTTL time.Duration `koanf:"score_cache_ttl" validate:"gt=0"`

	ScoreConcurrency int `koanf:"score_concurrency" validate:"gte=1"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		Addr:           ":8000",
		PublicBaseURL:  "http://localhost:8000",
		StaticPrefix:   "/static",
		MaxUploadBytes: 10 << 20,
		RequestTimeout: 2 * time.Minute,

		RateLimitRPS:   2,
		RateLimitBurst: 5,

		TempDir:   "temp_uploads",
		OutputDir: "static/generated_cards",

		TemplatesDir:    "templates",
		TemplatePattern: "canvas%d.jpg",
		TemplateCount:   5,

		FaceCascadePath:      "models/facefinder",
		FaceScaleFactor:      1.1,
		FaceMinNeighbors:     4,
		FaceMinSize:          20,
		FaceMaxSize:          0,
		FaceShiftFactor:      0.1,
		FaceIoUThreshold:     0.2,
		FaceQualityThreshold: 5,
		FacePadding:          1.2,

		EmotionBackend: EmotionDeepFace,
		DeepFaceURL:    "http://deepface:5005",
		EmotionTimeout: 30 * time.Second,

		RembgURL:     "http://rembg:7000",
		RembgTimeout: time.Minute,

		FeatherRadius: 10,
		GlowRadius:    35,
		GlowColor:     "#ffff00",
		HeightRatio:   0.8,
		UpwardShift:   0.1,

		CardReference: ReferenceURL,

		ScoreCacheTTL:    24 * time.Hour,
		ScoreConcurrency: 1,
	}
}

// GlowRGBA parses GlowColor ("#rrggbb" or "#rgb") into an opaque colour.
func (c *Config) GlowRGBA() (color.NRGBA, error) {
	return ParseHexColor(c.GlowColor)
}

// ParseHexColor parses "#rrggbb" or "#rgb".
func ParseHexColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("%w: glow color %q", ErrInvalidConfig, s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: glow color %q: %v", ErrInvalidConfig, s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
