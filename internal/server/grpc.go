package server

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/tia-game/titans-server-go/internal/game"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// GameServiceName is the fully qualified gRPC service name.
const GameServiceName = "titans.v1.GameService"

// GameServiceServer is the gRPC game API. Requests and responses are JSON-like
// structs carrying the same fields as the HTTP API.
type GameServiceServer interface {
	CreateGame(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetGame(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Click(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Undo(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Redo(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type gameCall func(GameServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var gameServiceDesc = grpc.ServiceDesc{
	ServiceName: GameServiceName,
	HandlerType: (*GameServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateGame", Handler: unaryHandler("CreateGame", GameServiceServer.CreateGame)},
		{MethodName: "GetGame", Handler: unaryHandler("GetGame", GameServiceServer.GetGame)},
		{MethodName: "Click", Handler: unaryHandler("Click", GameServiceServer.Click)},
		{MethodName: "Undo", Handler: unaryHandler("Undo", GameServiceServer.Undo)},
		{MethodName: "Redo", Handler: unaryHandler("Redo", GameServiceServer.Redo)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "titans/v1/game.proto",
}

func fullMethod(method string) string {
	return "/" + GameServiceName + "/" + method
}

func unaryHandler(method string, call gameCall) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	info := &grpc.UnaryServerInfo{FullMethod: fullMethod(method)}
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(GameServiceServer), ctx, in)
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(GameServiceServer), ctx, req.(*structpb.Struct))
		}
		callInfo := *info
		callInfo.Server = srv
		return interceptor(ctx, in, &callInfo, handler)
	}
}

// RegisterGRPC registers the game service and a health service on gs. The
// returned health server lets the caller flip the serving status on shutdown.
func (s *Server) RegisterGRPC(gs *grpc.Server) *health.Server {
	gs.RegisterService(&gameServiceDesc, &gameService{srv: s})

	hs := health.NewServer()
	hs.SetServingStatus(GameServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return hs
}

// gameService implements GameServiceServer on top of a Server.
type gameService struct {
	srv *Server
}

func (g *gameService) CreateGame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	names := map[game.Player]string{
		game.Red:  stringField(req, "red"),
		game.Blue: stringField(req, "blue"),
	}
	session, err := g.srv.CreateGame(names)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(g.srv.view(session))
}

func (g *gameService) GetGame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	view, err := g.srv.View(stringField(req, "game_id"))
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(view)
}

func (g *gameService) Click(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	body, err := json.Marshal(nodeRequest{Node: stringField(req, "node")})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return g.command(stringField(req, "game_id"), cmdClick, body)
}

func (g *gameService) Undo(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return g.command(stringField(req, "game_id"), cmdUndo, nil)
}

func (g *gameService) Redo(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return g.command(stringField(req, "game_id"), cmdRedo, nil)
}

func (g *gameService) command(id, name string, body []byte) (*structpb.Struct, error) {
	session, err := g.srv.Game(id)
	if err != nil {
		return nil, grpcError(err)
	}
	err = applyCommand(session, name, body)
	if err == nil || game.IsInvalidAction(err) {
		g.srv.BroadcastState(id)
	}
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(g.srv.view(session))
}

func stringField(req *structpb.Struct, key string) string {
	return req.GetFields()[key].GetStringValue()
}

// toStruct converts a view into a protobuf Struct through its JSON form so
// both transports agree on field names.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func grpcError(err error) error {
	var invalid *game.InvalidActionError
	switch {
	case errors.As(err, &invalid):
		return status.Error(codes.FailedPrecondition, invalid.Message)
	case errors.Is(err, game.ErrGameNotFound):
		return status.Errorf(codes.NotFound, "game not found")
	case errors.Is(err, game.ErrGameEnded),
		errors.Is(err, game.ErrPaused),
		errors.Is(err, game.ErrReplayActive),
		errors.Is(err, game.ErrNoReplay):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, errBadRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrTooManyGames):
		return status.Error(codes.ResourceExhausted, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// GameServiceClient calls a remote GameService.
type GameServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewGameServiceClient(cc grpc.ClientConnInterface) *GameServiceClient {
	return &GameServiceClient{cc: cc}
}

func (c *GameServiceClient) call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *GameServiceClient) CreateGame(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "CreateGame", in, opts...)
}

func (c *GameServiceClient) GetGame(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "GetGame", in, opts...)
}

func (c *GameServiceClient) Click(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "Click", in, opts...)
}

func (c *GameServiceClient) Undo(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "Undo", in, opts...)
}

func (c *GameServiceClient) Redo(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "Redo", in, opts...)
}
