package api

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"spxbacktest/pkg/spxbacktest"
)

// Full method names of the spxbacktest.v1.Backtest service.
const (
	BacktestServiceName  = "spxbacktest.v1.Backtest"
	runFullMethod        = "/" + BacktestServiceName + "/Run"
	strategiesFullMethod = "/" + BacktestServiceName + "/Strategies"
)

// BacktestServer is the server API of the spxbacktest.v1.Backtest service.
// Messages are google.protobuf.Struct values carrying the JSON wire types of
// package spxbacktest.
type BacktestServer interface {
	Run(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Strategies(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

var backtestServiceDesc = grpc.ServiceDesc{
	ServiceName: BacktestServiceName,
	HandlerType: (*BacktestServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Run", Handler: runHandler},
		{MethodName: "Strategies", Handler: strategiesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "spxbacktest/v1/backtest.proto",
}

// RegisterBacktestServer registers srv on s.
func RegisterBacktestServer(s grpc.ServiceRegistrar, srv BacktestServer) {
	s.RegisterService(&backtestServiceDesc, srv)
}

func runHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BacktestServer).Run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: runFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BacktestServer).Run(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func strategiesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BacktestServer).Strategies(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: strategiesFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BacktestServer).Strategies(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// ---------------------------------------------------------------------------
// BacktestService: BacktestServer backed by the Server's Backtester.
// ---------------------------------------------------------------------------

var _ BacktestServer = (*BacktestService)(nil)

// BacktestService implements BacktestServer.
type BacktestService struct {
	srv *Server
}

// Run decodes a BacktestRequest, runs it, and returns the BacktestResponse.
func (b *BacktestService) Run(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var body spxbacktest.BacktestRequest
	if err := fromStruct(in, &body); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}

	req, err := toRequest(body, b.srv.defaults)
	if err != nil {
		return nil, grpcError(err)
	}
	res, err := b.srv.bt.Run(ctx, req)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(toResponse(res, body.IncludeSeries))
}

// Strategies returns a StrategiesResponse.
func (b *BacktestService) Strategies(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(spxbacktest.StrategiesResponse{
		Strategies: b.srv.bt.Strategies(),
		Default:    b.srv.defaultStrategy(),
	})
}

func grpcError(err error) error {
	return status.Error(classify(err).code, err.Error())
}

// toStruct converts a JSON-tagged value into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return s, nil
}

// fromStruct decodes s into the JSON-tagged value v.
func fromStruct(s *structpb.Struct, v any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// BacktestClient is a client for the spxbacktest.v1.Backtest service.
type BacktestClient struct {
	cc grpc.ClientConnInterface
}

// NewBacktestClient returns a client using cc.
func NewBacktestClient(cc grpc.ClientConnInterface) *BacktestClient {
	return &BacktestClient{cc: cc}
}

// Run calls spxbacktest.v1.Backtest/Run.
func (c *BacktestClient) Run(ctx context.Context, req spxbacktest.BacktestRequest, opts ...grpc.CallOption) (*spxbacktest.BacktestResponse, error) {
	in, err := toStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, runFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	var resp spxbacktest.BacktestResponse
	if err := fromStruct(out, &resp); err != nil {
		return nil, fmt.Errorf("decoding Run response: %w", err)
	}
	return &resp, nil
}

// Strategies calls spxbacktest.v1.Backtest/Strategies.
func (c *BacktestClient) Strategies(ctx context.Context, opts ...grpc.CallOption) (*spxbacktest.StrategiesResponse, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, strategiesFullMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	var resp spxbacktest.StrategiesResponse
	if err := fromStruct(out, &resp); err != nil {
		return nil, fmt.Errorf("decoding Strategies response: %w", err)
	}
	return &resp, nil
}
