// Package remote exposes any index over gRPC and provides a client that
// implements the index contract against such a server. The service is
// declared by hand with well-known wrapper messages, so no generated code
// is needed.
package remote

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"kvbench/internal/generator"
	"kvbench/internal/index"
	"kvbench/internal/logging"
	"kvbench/internal/workload"
)

const (
	serviceName = "kvbench.Index"
	// maxMessageSize admits bulk loads of a few million small records.
	maxMessageSize = 512 << 20
)

// Server serves an index over gRPC.
type Server struct {
	index    index.Index
	logger   *logging.Logger
	server   *grpc.Server
	listener net.Listener
}

// NewServer wraps idx. The server does not close idx.
func NewServer(idx index.Index, logger *logging.Logger) *Server {
	s := &Server{index: idx, logger: logger}
	s.server = grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.recoveryInterceptor),
		grpc.MaxRecvMsgSize(maxMessageSize),
	)
	s.server.RegisterService(&serviceDesc, s)
	return s
}

// Start listens on address and serves in the background.
func (s *Server) Start(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	s.listener = listener
	s.logger.Info("Starting index gRPC server", "address", listener.Addr().String())

	go func() {
		if err := s.Serve(listener); err != nil {
			s.logger.Error("gRPC server failed", "error", err)
		}
	}()
	return nil
}

// Serve blocks serving lis.
func (s *Server) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

// Addr is the listening address after Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Stop() {
	s.logger.Info("Stopping index gRPC server")
	s.server.GracefulStop()
}

type indexServer interface {
	find(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	insert(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error)
	update(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error)
	remove(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error)
	scan(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	bulkLoad(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error)
}

func (s *Server) find(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	key, rest, err := splitKey(req.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	size, _, err := decodeBounded(rest, 0, generator.MaxValueSize)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	value := make([]byte, size)
	found := s.index.Find(key, value)
	return wrapperspb.Bytes(encodeFound(found, value)), nil
}

func (s *Server) insert(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error) {
	key, value, err := splitKey(req.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return wrapperspb.Bool(s.index.Insert(key, value)), nil
}

func (s *Server) update(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error) {
	key, value, err := splitKey(req.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return wrapperspb.Bool(s.index.Update(key, value)), nil
}

func (s *Server) remove(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error) {
	key, _, err := splitKey(req.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return wrapperspb.Bool(s.index.Remove(key)), nil
}

// scan requests carry key, count and value size; the response is the
// number of values followed by the values.
func (s *Server) scan(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	key, rest, err := splitKey(req.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	count, rest, err := decodeBounded(rest, 1, workload.MaxScan)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	valueSize, _, err := decodeBounded(rest, 0, generator.MaxValueSize)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	out := make([]byte, count*valueSize)
	n := s.index.Scan(key, count, out)
	resp := make([]byte, 0, n*valueSize+binary.MaxVarintLen32)
	resp = binary.AppendUvarint(resp, uint64(n))
	resp = append(resp, out[:n*valueSize]...)
	return wrapperspb.Bytes(resp), nil
}

func (s *Server) bulkLoad(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error) {
	loader, ok := s.index.(index.BulkLoader)
	if !ok {
		return nil, status.Error(codes.Unimplemented, index.ErrBulkLoad.Error())
	}
	count, data, err := decodeCount(req.GetValue())
	if err == nil && count > len(data) {
		err = fmt.Errorf("%w: %d records in %d bytes", errBadCount, count, len(data))
	}
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := loader.BulkLoad(data, count); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return wrapperspb.Bool(true), nil
}

// loggingInterceptor is a gRPC unary interceptor for logging
func (s *Server) loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()

	resp, err := handler(ctx, req)

	if err != nil {
		s.logger.ErrorContext(ctx, "gRPC request failed",
			"method", info.FullMethod,
			"duration", time.Since(start),
			"error", err,
		)
	}
	return resp, err
}

// recoveryInterceptor turns a panic in the wrapped index into an Internal
// error so one bad request cannot take the server down.
func (s *Server) recoveryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "gRPC handler panic", "method", info.FullMethod, "panic", r)
			err = status.Errorf(codes.Internal, "panic in %s: %v", info.FullMethod, r)
		}
	}()
	return handler(ctx, req)
}

func unaryHandler[Resp any](method string, call func(indexServer, context.Context, *wrapperspb.BytesValue) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(wrapperspb.BytesValue)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(indexServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + serviceName + "/" + method,
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(indexServer), ctx, req.(*wrapperspb.BytesValue))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*indexServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("Find", indexServer.find),
		unaryHandler("Insert", indexServer.insert),
		unaryHandler("Update", indexServer.update),
		unaryHandler("Remove", indexServer.remove),
		unaryHandler("Scan", indexServer.scan),
		unaryHandler("BulkLoad", indexServer.bulkLoad),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kvbench/index",
}
