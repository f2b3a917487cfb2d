package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/winner-card/internal/auth"
	"github.com/example/winner-card/internal/bgremoval"
	"github.com/example/winner-card/internal/compositor"
	"github.com/example/winner-card/internal/imageio"
	"github.com/example/winner-card/internal/logging"
	"github.com/example/winner-card/internal/metrics"
	"github.com/example/winner-card/internal/repository"
	"github.com/example/winner-card/internal/scoring"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrInvalidSubmissionCount is returned unless exactly 2 or 4 images are submitted.
	ErrInvalidSubmissionCount = errors.New("expected 2 or 4 images")
	// ErrResultPending is returned by GetResult while a contest is still running.
	ErrResultPending = errors.New("result is still processing")
)

const processingMarker = "processing"

// ContestRepository defines the persistence operations needed by the use case.
type ContestRepository interface {
	SaveLog(ctx context.Context, log *repository.ContestLog) error
	FindByRequestID(ctx context.Context, requestID string) (*repository.ContestLog, error)
}

// ImageScorer scores one image file.
type ImageScorer interface {
	ScoreImage(ctx context.Context, path string) (scoring.Result, error)
}

// CardMaker renders a winner card and returns its reference. RemoveCard
// discards a card when the contest that produced it fails.
type CardMaker interface {
	MakeCard(ctx context.Context, path string, opts ...compositor.CardOption) (string, error)
	RemoveCard(ctx context.Context, ref string) error
}

// Submission is one uploaded image.
type Submission struct {
	Data        []byte
	ContentType string
	Filename    string
}

// ScoreEntry is the score of a submission, in submission order.
type ScoreEntry struct {
	Index    int     `json:"index"`
	Filename string  `json:"filename,omitempty"`
	Score    float64 `json:"score"`
	Outcome  string  `json:"outcome"`
	Cached   bool    `json:"cached,omitempty"`
}

// Winner is a ranked submission with its card.
type Winner struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
	Card  string  `json:"card"`
}

// ContestResult is the outcome of one PredictWinners call.
type ContestResult struct {
	RequestID string       `json:"request_id"`
	Judge     string       `json:"judge,omitempty"`
	Count     int          `json:"count"`
	Scores    []ScoreEntry `json:"scores"`
	Winners   []Winner     `json:"winners"`
	CreatedAt time.Time    `json:"created_at"`
}

// Options tunes the contest flow.
type Options struct {
	TempDir          string
	ScoreCacheTTL    time.Duration
	ResultTTL        time.Duration
	ScoreConcurrency int
}

// ContestUseCase encapsulates business logic for the contest flow.
type ContestUseCase struct {
	repo       ContestRepository
	cache      Cache
	scorer     ImageScorer
	cards      CardMaker
	metrics    *metrics.Manager
	opts       Options
	logger     *zap.Logger
	cacheRetry cacheRetry
}

// NewContestUseCase constructs a new use case instance. metrics may be nil.
func NewContestUseCase(repo ContestRepository, cache Cache, scorer ImageScorer, cards CardMaker, m *metrics.Manager, opts Options, logger *zap.Logger) *ContestUseCase {
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = 5 * time.Minute
	}
	if opts.ScoreConcurrency < 1 {
		opts.ScoreConcurrency = 1
	}
	return &ContestUseCase{
		repo:       repo,
		cache:      cache,
		scorer:     scorer,
		cards:      cards,
		metrics:    m,
		opts:       opts,
		logger:     logger.Named("contest_usecase"),
		cacheRetry: defaultCacheRetry(),
	}
}

// WinnerCount returns how many cards a contest of n submissions produces.
func WinnerCount(n int) int {
	switch n {
	case 2:
		return 1
	case 4:
		return 2
	default:
		return 0
	}
}

// PredictWinners scores every submission, ranks them and renders cards for
// the winners. Ties keep submission order. On failure no card outlives the
// call and the processing marker is cleared.
func (uc *ContestUseCase) PredictWinners(ctx context.Context, submissions []Submission) (*ContestResult, error) {
	started := time.Now()
	n := len(submissions)
	if WinnerCount(n) == 0 {
		uc.metrics.RecordContest(n, "rejected")
		return nil, fmt.Errorf("%w, but received %d", ErrInvalidSubmissionCount, n)
	}

	requestID := uuid.NewString()
	judge, _ := auth.JudgeFrom(ctx)
	opLogger := logging.WithOperation(uc.logger, "usecase.predict_winners", requestID)
	if judge != "" {
		opLogger = opLogger.With(zap.String("judge", judge))
	}

	cacheKey := resultKey(requestID)
	if err := uc.cacheSet(ctx, requestID, "cache.set.processing", cacheKey, processingMarker, time.Minute); err != nil {
		opLogger.Error("failed to set processing flag", zap.Error(err))
		uc.metrics.RecordContest(n, "failed")
		return nil, err
	}

	var result *ContestResult
	fail := func(err error) (*ContestResult, error) {
		opLogger.Error("contest failed", zap.Error(err))
		cleanup := context.WithoutCancel(ctx)
		if result != nil {
			uc.discardCards(cleanup, requestID, result.Winners)
		}
		if err := uc.cache.Del(cleanup, cacheKey); err != nil {
			opLogger.Warn("failed to clear processing flag", zap.Error(err))
		}
		uc.metrics.RecordContest(n, "failed")
		return nil, err
	}

	result, err := uc.runContest(ctx, requestID, submissions)
	if err != nil {
		return fail(err)
	}
	result.Judge = judge

	scores, err := json.Marshal(result.Scores)
	if err != nil {
		return fail(logging.NewOperationError("usecase.encode_scores", requestID, err))
	}
	winners, err := json.Marshal(result.Winners)
	if err != nil {
		return fail(logging.NewOperationError("usecase.encode_winners", requestID, err))
	}
	serialized, err := json.Marshal(result)
	if err != nil {
		return fail(logging.NewOperationError("usecase.encode_result", requestID, err))
	}

	log := &repository.ContestLog{
		RequestID:       requestID,
		Judge:           judge,
		SubmissionCount: n,
		Scores:          string(scores),
		Winners:         string(winners),
		ProcessingMs:    time.Since(started).Milliseconds(),
		CreatedAt:       result.CreatedAt,
	}
	if err := uc.repo.SaveLog(ctx, log); err != nil {
		return fail(logging.NewOperationError("usecase.save_log", requestID, err))
	}

	if err := uc.cacheSet(ctx, requestID, "cache.set.result", cacheKey, string(serialized), uc.opts.ResultTTL); err != nil {
		// the log is persisted, GetResult falls back to it
		opLogger.Warn("failed to cache contest result", zap.Error(err))
	}

	uc.metrics.RecordContest(n, "ok")
	opLogger.Info("contest finished",
		zap.Int("count", n),
		zap.Int("winners", len(result.Winners)),
		zap.Duration("took", time.Since(started)),
	)
	return result, nil
}

// discardCards removes cards rendered for a contest that did not complete.
func (uc *ContestUseCase) discardCards(ctx context.Context, requestID string, winners []Winner) {
	for _, w := range winners {
		if err := uc.cards.RemoveCard(ctx, w.Card); err != nil {
			logging.WithOperation(uc.logger, "usecase.discard_card", requestID).Warn("failed to remove card",
				zap.String("card", w.Card), zap.Error(err))
		}
	}
}

func (uc *ContestUseCase) runContest(ctx context.Context, requestID string, submissions []Submission) (*ContestResult, error) {
	if err := os.MkdirAll(uc.opts.TempDir, 0o755); err != nil {
		return nil, logging.NewOperationError("usecase.create_temp_dir", requestID, err)
	}

	paths := make([]string, 0, len(submissions))
	defer func() {
		for _, p := range paths {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				uc.logger.Warn("failed to remove temp upload", zap.String("path", p), zap.Error(err))
			}
		}
	}()
	for _, sub := range submissions {
		path := filepath.Join(uc.opts.TempDir, uuid.NewString()+extensionFor(sub))
		if err := os.WriteFile(path, sub.Data, 0o600); err != nil {
			return nil, logging.NewOperationError("usecase.write_upload", requestID, err)
		}
		paths = append(paths, path)
	}

	scores := make([]ScoreEntry, len(submissions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.opts.ScoreConcurrency)
	for i := range submissions {
		g.Go(func() error {
			entry, err := uc.scoreSubmission(gctx, requestID, submissions[i].Data, paths[i])
			if err != nil {
				return err
			}
			entry.Index = i
			entry.Filename = submissions[i].Filename
			scores[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]].Score > scores[order[b]].Score
	})

	k := WinnerCount(len(submissions))
	winners := make([]Winner, 0, k)
	for _, idx := range order[:k] {
		cardStarted := time.Now()
		card, err := uc.cards.MakeCard(ctx, paths[idx])
		if err != nil {
			uc.metrics.RecordCardFailure(failureReason(err))
			uc.discardCards(context.WithoutCancel(ctx), requestID, winners)
			return nil, logging.NewOperationError("usecase.make_card", requestID, err)
		}
		uc.metrics.RecordCard(time.Since(cardStarted))
		winners = append(winners, Winner{Index: idx, Score: scores[idx].Score, Card: card})
	}

	return &ContestResult{
		RequestID: requestID,
		Count:     len(submissions),
		Scores:    scores,
		Winners:   winners,
		CreatedAt: time.Now().UTC(),
	}, nil
}

type cachedScore struct {
	Score   float64 `json:"score"`
	Outcome string  `json:"outcome"`
}

func (uc *ContestUseCase) scoreSubmission(ctx context.Context, requestID string, data []byte, path string) (ScoreEntry, error) {
	hash := sha1.Sum(data)
	key := "score:" + hex.EncodeToString(hash[:])

	if cached, err := uc.cacheGet(ctx, requestID, "cache.get.score", key); err == nil {
		var payload cachedScore
		if err := json.Unmarshal([]byte(cached), &payload); err == nil {
			uc.metrics.RecordScoreCacheHit()
			return ScoreEntry{Score: payload.Score, Outcome: payload.Outcome, Cached: true}, nil
		}
		logging.WithOperation(uc.logger, "usecase.score", requestID).Warn("ignoring malformed cached score", zap.String("key", key))
	} else if !errors.Is(err, redis.Nil) {
		logging.WithOperation(uc.logger, "usecase.score", requestID).Warn("failed to read score cache", zap.Error(err))
	}

	started := time.Now()
	res, err := uc.scorer.ScoreImage(ctx, path)
	if err != nil {
		return ScoreEntry{}, logging.NewOperationError("usecase.score_image", requestID, err)
	}
	uc.metrics.RecordScore(res.Outcome.String(), res.Score, time.Since(started))
	entry := ScoreEntry{Score: res.Score, Outcome: res.Outcome.String()}

	// a classifier failure may be transient, so its fallback score is not cached
	if res.Outcome == scoring.OutcomeClassifierFailed || uc.opts.ScoreCacheTTL <= 0 {
		return entry, nil
	}
	payload, err := json.Marshal(cachedScore{Score: res.Score, Outcome: entry.Outcome})
	if err != nil {
		return entry, nil
	}
	if err := uc.cacheSet(ctx, requestID, "cache.set.score", key, string(payload), uc.opts.ScoreCacheTTL); err != nil {
		logging.WithOperation(uc.logger, "usecase.score", requestID).Warn("failed to cache score", zap.Error(err))
	}
	return entry, nil
}

// GetResult retrieves a cached contest outcome or loads it from persistence.
// A judge only sees their own contests; anonymous contests are visible to all.
func (uc *ContestUseCase) GetResult(ctx context.Context, requestID string) (*ContestResult, error) {
	result, err := uc.lookupResult(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if judge, ok := auth.JudgeFrom(ctx); ok && result.Judge != "" && result.Judge != judge {
		return nil, repository.ErrNotFound
	}
	return result, nil
}

func (uc *ContestUseCase) lookupResult(ctx context.Context, requestID string) (*ContestResult, error) {
	if cached, err := uc.cacheGet(ctx, requestID, "cache.get.result", resultKey(requestID)); err == nil {
		if cached == processingMarker {
			return nil, ErrResultPending
		}
		var result ContestResult
		if err := json.Unmarshal([]byte(cached), &result); err != nil {
			logging.WithOperation(uc.logger, "usecase.get_result", requestID).Warn("failed to decode cached result", zap.Error(err))
		} else {
			return &result, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logging.WithOperation(uc.logger, "usecase.get_result", requestID).Warn("failed to read cache", zap.Error(err))
	}

	log, err := uc.repo.FindByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return resultFromLog(log)
}

func resultFromLog(log *repository.ContestLog) (*ContestResult, error) {
	result := &ContestResult{
		RequestID: log.RequestID,
		Judge:     log.Judge,
		Count:     log.SubmissionCount,
		CreatedAt: log.CreatedAt,
	}
	if err := json.Unmarshal([]byte(log.Scores), &result.Scores); err != nil {
		return nil, fmt.Errorf("decode scores for %s: %w", log.RequestID, err)
	}
	if err := json.Unmarshal([]byte(log.Winners), &result.Winners); err != nil {
		return nil, fmt.Errorf("decode winners for %s: %w", log.RequestID, err)
	}
	return result, nil
}

func resultKey(requestID string) string {
	return fmt.Sprintf("contest:%s", requestID)
}

func extensionFor(sub Submission) string {
	if ext := strings.ToLower(filepath.Ext(sub.Filename)); ext != "" {
		return ext
	}
	switch sub.ContentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, bgremoval.ErrBackgroundRemoval):
		return "background_removal"
	case errors.Is(err, imageio.ErrInputNotFound):
		return "input_not_found"
	case errors.Is(err, compositor.ErrComposition):
		return "composition"
	default:
		return "other"
	}
}
