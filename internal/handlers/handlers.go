package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/winner-card/internal/cardstore"
	"github.com/example/winner-card/internal/metrics"
	"github.com/example/winner-card/internal/repository"
	"github.com/example/winner-card/internal/usecase"
)

// MaxUploadSize is the default per-image limit in bytes.
const MaxUploadSize = 10 << 20

const imagesField = "images"

var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// ContestService is the use case surface the handlers need.
type ContestService interface {
	PredictWinners(ctx context.Context, submissions []usecase.Submission) (*usecase.ContestResult, error)
	GetResult(ctx context.Context, requestID string) (*usecase.ContestResult, error)
}

// Options configures RegisterRoutes. Zero values disable the optional parts.
type Options struct {
	MaxUploadSize int64
	// StaticPrefix and OutputDir serve locally stored cards.
	StaticPrefix string
	OutputDir    string
	Metrics      *metrics.Manager
	RateLimiter  *RateLimiter
	Logger       *zap.Logger
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, svc ContestService, authMiddleware gin.HandlerFunc, opts Options) {
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = MaxUploadSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if authMiddleware == nil {
		authMiddleware = func(c *gin.Context) { c.Next() }
	}

	router.Use(CORS())
	if opts.Metrics != nil {
		router.Use(RequestMetrics(opts.Metrics))
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if opts.OutputDir != "" {
		router.Static(strings.TrimRight(opts.StaticPrefix, "/")+cardstore.CardsPath, opts.OutputDir)
	}

	protected := router.Group("/", authMiddleware)
	if opts.RateLimiter != nil {
		protected.Use(opts.RateLimiter.Middleware(opts.Logger))
	}

	protected.POST("/predict-winners", func(c *gin.Context) {
		// four images plus multipart framing
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 4*opts.MaxUploadSize+1<<20)
		form, err := c.MultipartForm()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form with images is required"})
			return
		}

		files := form.File[imagesField]
		if usecase.WinnerCount(len(files)) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Expected 2 or 4 images, but received %d", len(files))})
			return
		}

		submissions := make([]usecase.Submission, 0, len(files))
		for _, file := range files {
			if file.Size > opts.MaxUploadSize {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("%s exceeds %d bytes", file.Filename, opts.MaxUploadSize)})
				return
			}
			contentType := strings.ToLower(file.Header.Get("Content-Type"))
			if !allowedContentTypes[contentType] {
				c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": fmt.Sprintf("Invalid file type: %s. Only images are allowed.", contentType)})
				return
			}
			data, err := readFile(file)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read image"})
				return
			}
			submissions = append(submissions, usecase.Submission{Data: data, ContentType: contentType, Filename: file.Filename})
		}

		result, err := svc.PredictWinners(c.Request.Context(), submissions)
		if err != nil {
			if errors.Is(err, usecase.ErrInvalidSubmissionCount) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			opts.Logger.Error("predict winners failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, contestResponse(result))
	})

	protected.GET("/results/:id", func(c *gin.Context) {
		requestID := c.Param("id")
		if requestID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
			return
		}

		result, err := svc.GetResult(c.Request.Context(), requestID)
		switch {
		case errors.Is(err, usecase.ErrResultPending):
			c.JSON(http.StatusAccepted, gin.H{"request_id": requestID, "status": "processing"})
			return
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
			return
		case err != nil:
			opts.Logger.Error("get result failed", zap.String("request_id", requestID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load result"})
			return
		}

		body := contestResponse(result)
		body["scores"] = result.Scores
		body["created_at"] = result.CreatedAt
		c.JSON(http.StatusOK, body)
	})
}

// contestResponse flattens the winners into the fixed two-slot shape; an
// unused slot is null.
func contestResponse(result *usecase.ContestResult) gin.H {
	body := gin.H{
		"request_id":       result.RequestID,
		"count":            result.Count,
		"winner1_card_url": nil,
		"winner2_card_url": nil,
		"winner1_score":    nil,
		"winner2_score":    nil,
	}
	for i, w := range result.Winners {
		if i > 1 {
			break
		}
		body[fmt.Sprintf("winner%d_card_url", i+1)] = w.Card
		body[fmt.Sprintf("winner%d_score", i+1)] = w.Score
	}
	return body
}

func readFile(file *multipart.FileHeader) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}
