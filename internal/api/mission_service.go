package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"campusrun/internal/domain"
	"campusrun/internal/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const MissionServiceName = "campusrun.missions.v1.MissionService"

// MissionRPC is the handler type registered for MissionService. Every method
// takes and returns a google.protobuf.Struct.
type MissionRPC interface {
	Dispatch(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error)
}

type rpcMethod func(s *MissionGRPCService, ctx context.Context, caller domain.Identity, req *structpb.Struct) (any, error)

var rpcMethods = map[string]rpcMethod{
	"CreateMission": func(s *MissionGRPCService, ctx context.Context, c domain.Identity, req *structpb.Struct) (any, error) {
		var in domain.CreateMissionInput
		if err := decodeStruct(req, &in); err != nil {
			return nil, err
		}
		return wrapMission(s.missions.CreateMission(ctx, c.UserID, in))
	},
	"ListOpenMissions": func(s *MissionGRPCService, ctx context.Context, _ domain.Identity, _ *structpb.Struct) (any, error) {
		missions, err := s.missions.ListOpenMissions(ctx)
		return wrapList("missions", missions, err)
	},
	"ListMyMissions": func(s *MissionGRPCService, ctx context.Context, c domain.Identity, _ *structpb.Struct) (any, error) {
		list := s.missions.ListMissionsForStudent
		if c.Role == models.RoleRunner {
			list = s.missions.ListMissionsForRunner
		}
		missions, err := list(ctx, c.UserID)
		return wrapList("missions", missions, err)
	},
	"GetMission": func(s *MissionGRPCService, ctx context.Context, _ domain.Identity, req *structpb.Struct) (any, error) {
		return wrapMission(s.missions.GetMission(ctx, field(req, "mission_id")))
	},
	"GetMissionHistory": func(s *MissionGRPCService, ctx context.Context, _ domain.Identity, req *structpb.Struct) (any, error) {
		history, err := s.missions.GetMissionHistory(ctx, field(req, "mission_id"))
		return wrapList("history", history, err)
	},
	"ListApplicants": func(s *MissionGRPCService, ctx context.Context, _ domain.Identity, req *structpb.Struct) (any, error) {
		applicants, err := s.missions.ListApplicants(ctx, field(req, "mission_id"))
		return wrapList("applicants", applicants, err)
	},
	"ApplyToMission": func(s *MissionGRPCService, ctx context.Context, c domain.Identity, req *structpb.Struct) (any, error) {
		return wrapMission(s.missions.ApplyToMission(ctx, c.UserID, field(req, "mission_id")))
	},
	"ConfirmRunner": func(s *MissionGRPCService, ctx context.Context, c domain.Identity, req *structpb.Struct) (any, error) {
		return wrapMission(s.missions.ConfirmRunner(ctx, c.UserID, field(req, "mission_id"), field(req, "runner_id")))
	},
	"SubmitPaymentProof": func(s *MissionGRPCService, ctx context.Context, c domain.Identity, req *structpb.Struct) (any, error) {
		return wrapMission(s.missions.SubmitPaymentProof(ctx, c.UserID, field(req, "mission_id"), field(req, "proof_url"), field(req, "ref_number")))
	},
	"VerifyPayment": func(s *MissionGRPCService, ctx context.Context, c domain.Identity, req *structpb.Struct) (any, error) {
		accepted := req.GetFields()["accepted"].GetBoolValue()
		return wrapMission(s.missions.VerifyPayment(ctx, c.UserID, field(req, "mission_id"), accepted, field(req, "rejection_reason")))
	},
	"SubmitProofOfDelivery": func(s *MissionGRPCService, ctx context.Context, c domain.Identity, req *structpb.Struct) (any, error) {
		return wrapMission(s.missions.SubmitProofOfDelivery(ctx, c.UserID, field(req, "mission_id"), field(req, "proof_url")))
	},
	"ConfirmDelivery": func(s *MissionGRPCService, ctx context.Context, c domain.Identity, req *structpb.Struct) (any, error) {
		return wrapMission(s.missions.ConfirmDelivery(ctx, c.UserID, field(req, "mission_id")))
	},
	"DisputeMission": func(s *MissionGRPCService, ctx context.Context, c domain.Identity, req *structpb.Struct) (any, error) {
		return wrapMission(s.missions.DisputeMission(ctx, c.UserID, field(req, "mission_id"), field(req, "reason")))
	},
	"RateMission": func(s *MissionGRPCService, ctx context.Context, c domain.Identity, req *structpb.Struct) (any, error) {
		// decoding into an int refuses fractional ratings
		var in rateRequest
		if err := decodeStruct(req, &in); err != nil {
			return nil, err
		}
		return wrapMission(s.missions.RateMission(ctx, c.UserID, field(req, "mission_id"), in.Rating, in.Comment))
	},
	"CancelMission": func(s *MissionGRPCService, ctx context.Context, c domain.Identity, req *structpb.Struct) (any, error) {
		return wrapMission(s.missions.CancelMission(ctx, c.UserID, field(req, "mission_id"), field(req, "reason")))
	},
}

// MissionGRPCService serves the lifecycle over gRPC.
type MissionGRPCService struct {
	missions domain.MissionLifecycle
}

var _ MissionRPC = (*MissionGRPCService)(nil)

func NewMissionGRPCService(missions domain.MissionLifecycle) *MissionGRPCService {
	return &MissionGRPCService{missions: missions}
}

func (s *MissionGRPCService) Dispatch(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error) {
	fn, ok := rpcMethods[method]
	if !ok {
		return nil, status.Errorf(codes.Unimplemented, "method %s not implemented", method)
	}
	caller, ok := IdentityFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthenticated")
	}
	if req == nil {
		req = &structpb.Struct{}
	}

	out, err := fn(s, ctx, caller, req)
	if err != nil {
		if _, isStatus := status.FromError(err); isStatus {
			return nil, err
		}
		return nil, grpcError(err)
	}
	return toStruct(out)
}

// RegisterMissionService registers srv under MissionServiceName.
func RegisterMissionService(registrar grpc.ServiceRegistrar, srv MissionRPC) {
	registrar.RegisterService(missionServiceDesc(), srv)
}

func missionServiceDesc() *grpc.ServiceDesc {
	names := make([]string, 0, len(rpcMethods))
	for name := range rpcMethods {
		names = append(names, name)
	}
	sort.Strings(names)

	methods := make([]grpc.MethodDesc, 0, len(names))
	for _, name := range names {
		methods = append(methods, unaryMethod(name))
	}
	return &grpc.ServiceDesc{
		ServiceName: MissionServiceName,
		HandlerType: (*MissionRPC)(nil),
		Methods:     methods,
		Metadata:    "campusrun/missions/v1/missions.proto",
	}
}

func unaryMethod(name string) grpc.MethodDesc {
	fullMethod := MissionMethod(name)
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return srv.(MissionRPC).Dispatch(ctx, name, req.(*structpb.Struct))
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// MissionMethod returns the full gRPC method name for a MissionService call.
func MissionMethod(name string) string {
	return "/" + MissionServiceName + "/" + name
}

func field(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func decodeStruct(req *structpb.Struct, dst any) error {
	raw, err := req.MarshalJSON()
	if err != nil {
		return status.Error(codes.InvalidArgument, "invalid request")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	return nil
}

func wrapMission(m *models.Mission, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return map[string]any{"mission": m}, nil
}

func wrapList[T any](key string, items []T, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return map[string]any{key: items}, nil
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}
