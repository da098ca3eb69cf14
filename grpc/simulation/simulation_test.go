package simulation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type request struct {
	FieldID  string  `json:"field_id"`
	Publish  bool    `json:"publish"`
	Latitude float64 `json:"latitude,omitempty"`
}

func TestEncodeDecode(t *testing.T) {
	s, err := Encode(request{FieldID: "north", Publish: true, Latitude: 45.4})
	require.NoError(t, err)
	assert.Equal(t, "north", s.Fields["field_id"].GetStringValue())
	assert.True(t, s.Fields["publish"].GetBoolValue())

	var back request
	require.NoError(t, Decode(s, &back))
	assert.Equal(t, request{FieldID: "north", Publish: true, Latitude: 45.4}, back)

	assert.Error(t, Decode(nil, &back))
	_, err = Encode(func() {})
	assert.Error(t, err)
}

type echo struct {
	UnimplementedSimulationServiceServer
}

func (echo) Run(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return in, nil
}

func TestRunHandlerUsesInterceptor(t *testing.T) {
	in, err := structpb.NewStruct(map[string]any{"field_id": "f1"})
	require.NoError(t, err)
	dec := func(v interface{}) error {
		proto.Merge(v.(*structpb.Struct), in)
		return nil
	}

	var seen string
	interceptor := func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, h grpc.UnaryHandler) (interface{}, error) {
		seen = info.FullMethod
		return h(ctx, req)
	}
	out, err := SimulationService_ServiceDesc.Methods[0].Handler(echo{}, context.Background(), dec, interceptor)
	require.NoError(t, err)
	assert.Equal(t, RunFullMethod, seen)
	assert.Equal(t, "f1", out.(*structpb.Struct).Fields["field_id"].GetStringValue())

	_, err = UnimplementedSimulationServiceServer{}.Run(context.Background(), in)
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}
