package grpcclient

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/example/winner-card/internal/emotion"
	"github.com/example/winner-card/internal/imageio"
	"github.com/example/winner-card/internal/logging"
)

// AnalyzeMethod is the unary RPC served by the emotion sidecar. It takes the
// PNG crop as a BytesValue and answers with a Struct whose "emotion" field
// holds the distribution.
const AnalyzeMethod = "/emotion.v1.EmotionAnalyzer/Analyze"

var errMissingEmotion = errors.New("response has no emotion field")

// Invoker is the subset of *grpc.ClientConn used by EmotionClient.
type Invoker interface {
	Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error
}

// DialEmotionService returns a ready-to-use gRPC emotion classifier.
func DialEmotionService(ctx context.Context, addr string, timeout time.Duration, logger *zap.Logger) (*EmotionClient, *grpc.ClientConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(
		dialCtx,
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		wrapped := logging.NewOperationError("grpcclient.dial_emotion_service", "", err)
		logger.Error("failed to dial emotion service", zap.Error(wrapped), zap.String("addr", addr))
		return nil, nil, wrapped
	}
	return NewEmotionClient(conn, timeout, logger), conn, nil
}

// EmotionClient implements emotion.Classifier over gRPC.
type EmotionClient struct {
	conn    Invoker
	timeout time.Duration
	logger  *zap.Logger
}

// NewEmotionClient wraps an existing connection.
func NewEmotionClient(conn Invoker, timeout time.Duration, logger *zap.Logger) *EmotionClient {
	return &EmotionClient{conn: conn, timeout: timeout, logger: logger}
}

func (g *EmotionClient) Analyze(ctx context.Context, face image.Image) (emotion.Distribution, error) {
	encoded, err := imageio.EncodePNG(face)
	if err != nil {
		return nil, logging.NewOperationError("grpcclient.encode_face", "", err)
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, AnalyzeMethod, wrapperspb.Bytes(encoded), resp); err != nil {
		wrapped := logging.NewOperationError("grpcclient.analyze_emotion", "", err)
		g.logger.Error("emotion service call failed", zap.Error(wrapped))
		return nil, wrapped
	}
	return distributionFromStruct(resp)
}

func distributionFromStruct(resp *structpb.Struct) (emotion.Distribution, error) {
	field, ok := resp.GetFields()["emotion"]
	if !ok || field.GetStructValue() == nil {
		return nil, logging.NewOperationError("grpcclient.decode_emotion", "", errMissingEmotion)
	}
	dist := emotion.Distribution{}
	for name, value := range field.GetStructValue().GetFields() {
		n, ok := value.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, logging.NewOperationError("grpcclient.decode_emotion", "", fmt.Errorf("emotion %q is not a number", name))
		}
		dist[name] = n.NumberValue
	}
	return dist, nil
}
