package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"intelligencePlatform/internal/service"
)

// structCall adapts one RPC on a registered server to the Struct-in, Struct-out shape.
type structCall func(srv any, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

// unaryHandler builds a grpc.MethodDesc handler that decodes a google.protobuf.Struct
// and runs it through the server's interceptor chain.
func unaryHandler(fullMethod string, call structCall) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv, ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// str returns the string field key of req, empty when absent or not a string.
func str(req *structpb.Struct, key string) string {
	return req.GetFields()[key].GetStringValue()
}

func newResponse(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// resultResponse encodes a service result, merging any extra fields.
func resultResponse(res service.Result, extra map[string]any) (*structpb.Struct, error) {
	fields := map[string]any{
		"success": res.Success,
		"message": res.Message,
	}
	for k, v := range extra {
		fields[k] = v
	}
	return newResponse(fields)
}
