package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/seu-repo/hiya-assistant/internal/adapter/grpc/interceptors"
	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/ports"
	"github.com/seu-repo/hiya-assistant/internal/service/orchestrator"
)

const (
	VoiceServiceName = "hiya.voice.v1.VoiceService"
	SubmitTextMethod = "/" + VoiceServiceName + "/SubmitText"
	HistoryMethod    = "/" + VoiceServiceName + "/History"
)

type GRPCServer struct {
	server *grpc.Server
	health *health.Server
	log    *zap.Logger
}

// VoiceServer is the VoiceService implementation. Messages are
// structpb.Struct so no generated stubs are needed.
type VoiceServer interface {
	SubmitText(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	History(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type VoiceGrpcService struct {
	orchestrator ports.VoiceOrchestrator
	ledger       ports.SessionLedger
	log          *zap.Logger
}

func NewVoiceGrpcService(orch ports.VoiceOrchestrator, ledger ports.SessionLedger, log *zap.Logger) *VoiceGrpcService {
	return &VoiceGrpcService{orchestrator: orch, ledger: ledger, log: log}
}

func NewGRPCServer(voice VoiceServer, auth ports.AuthService, maxStreams uint32, log *zap.Logger) *GRPCServer {
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			interceptors.UnaryMetricsInterceptor(),
			interceptors.UnaryAuthInterceptor(auth),
			interceptors.UnaryLoggingInterceptor(log),
		),
	}
	if maxStreams > 0 {
		opts = append(opts, grpc.MaxConcurrentStreams(maxStreams))
	}
	s := grpc.NewServer(opts...)

	s.RegisterService(&voiceServiceDesc, voice)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(VoiceServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	return &GRPCServer{
		server: s,
		health: hs,
		log:    log,
	}
}

func (s *GRPCServer) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

// Stop marks the server not serving, then drains in-flight calls.
func (s *GRPCServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

var voiceServiceDesc = grpc.ServiceDesc{
	ServiceName: VoiceServiceName,
	HandlerType: (*VoiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SubmitText", Handler: unaryHandler(SubmitTextMethod, VoiceServer.SubmitText)},
		{MethodName: "History", Handler: unaryHandler(HistoryMethod, VoiceServer.History)},
	},
	Streams: []grpc.StreamDesc{},
}

func unaryHandler(fullMethod string, call func(VoiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(VoiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(VoiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// SubmitText runs a text turn: {"text": "..."} -> TurnOutcome.
func (s *VoiceGrpcService) SubmitText(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sub := domain.Submission{
		UserID: domain.UserIDFromContext(ctx),
		Text:   req.GetFields()["text"].GetStringValue(),
	}

	outcome, err := s.orchestrator.HandleTurn(ctx, sub)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(outcome)
}

// History lists the caller's turns: {"limit": n} -> {"turns": [...]}.
func (s *VoiceGrpcService) History(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	limit := int(req.GetFields()["limit"].GetNumberValue())

	turns, err := s.ledger.History(ctx, domain.UserIDFromContext(ctx), limit)
	if err != nil {
		return nil, toStatus(err)
	}
	if turns == nil {
		turns = []domain.Turn{}
	}
	return toStruct(map[string]interface{}{"turns": turns})
}

// toStruct goes through JSON so the payload matches the HTTP API.
func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

func toStatus(err error) error {
	if errors.Is(err, orchestrator.ErrEmptySubmission) || errors.Is(err, orchestrator.ErrNoUser) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	switch kind := domain.KindOf(err); kind {
	case "":
		return status.Error(codes.Internal, "internal error")
	case domain.KindValidation:
		return status.Error(codes.InvalidArgument, domain.UserMessage(kind))
	case domain.KindCalendarUnavailable, domain.KindClassification:
		return status.Error(codes.Unavailable, domain.UserMessage(kind))
	default:
		return status.Error(codes.Internal, domain.UserMessage(kind))
	}
}
