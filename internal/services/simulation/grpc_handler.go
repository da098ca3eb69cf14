package simulation

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	simpb "github.com/LeonardoBeccarini/cropsim/grpc/simulation"
	"github.com/LeonardoBeccarini/cropsim/internal/model"
	"github.com/LeonardoBeccarini/cropsim/internal/simerr"
)

// GrpcHandler serves SimulationService.Run synchronously.
type GrpcHandler struct {
	simpb.UnimplementedSimulationServiceServer

	svc *Service
}

func NewGrpcHandler(svc *Service) *GrpcHandler {
	return &GrpcHandler{svc: svc}
}

// Run executes the request carried by in and returns its RunResultEvent.
// Failures of the simulation itself come back as a FAIL result; bad requests
// and cancellations come back as gRPC errors.
func (h *GrpcHandler) Run(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req model.RunRequest
	if err := simpb.Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	req.FieldID = strings.TrimSpace(req.FieldID)
	if req.FieldID == "" {
		return nil, status.Error(codes.InvalidArgument, "field_id is required")
	}
	if !h.svc.Ready() {
		return nil, status.Error(codes.Unavailable, "simulation service not ready")
	}

	ev, err := h.svc.Execute(ctx, req)
	if err != nil {
		var ce *simerr.ConfigurationError
		var me *simerr.MissingInputError
		switch {
		case errors.As(err, &ce), errors.As(err, &me):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, status.FromContextError(err).Err()
		}
	}
	out, err := simpb.Encode(ev)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
