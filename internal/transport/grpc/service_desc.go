package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "craftbook.v1.SchedulingService"

type SchedulingServiceServer interface {
	CreateAppointment(ctx context.Context, req *CreateAppointmentRequest) (*AppointmentResponse, error)
	GetAppointment(ctx context.Context, req *GetAppointmentRequest) (*AppointmentResponse, error)
	ListAvailableSlots(ctx context.Context, req *ListAvailableSlotsRequest) (*ListAvailableSlotsResponse, error)
	ConfirmBooking(ctx context.Context, req *ConfirmBookingRequest) (*AppointmentResponse, error)
	DeclineAppointment(ctx context.Context, req *DeclineAppointmentRequest) (*AppointmentResponse, error)
	CancelAppointment(ctx context.Context, req *CancelAppointmentRequest) (*AppointmentResponse, error)
}

var SchedulingServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*SchedulingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateAppointment", Handler: unaryHandler("CreateAppointment", SchedulingServiceServer.CreateAppointment)},
		{MethodName: "GetAppointment", Handler: unaryHandler("GetAppointment", SchedulingServiceServer.GetAppointment)},
		{MethodName: "ListAvailableSlots", Handler: unaryHandler("ListAvailableSlots", SchedulingServiceServer.ListAvailableSlots)},
		{MethodName: "ConfirmBooking", Handler: unaryHandler("ConfirmBooking", SchedulingServiceServer.ConfirmBooking)},
		{MethodName: "DeclineAppointment", Handler: unaryHandler("DeclineAppointment", SchedulingServiceServer.DeclineAppointment)},
		{MethodName: "CancelAppointment", Handler: unaryHandler("CancelAppointment", SchedulingServiceServer.CancelAppointment)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "craftbook/v1/scheduling.proto",
}

func RegisterSchedulingServiceServer(s grpc.ServiceRegistrar, srv SchedulingServiceServer) {
	s.RegisterService(&SchedulingServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + serviceName + "/" + method
}

// methodHandler matches the Handler field of grpc.MethodDesc.
type methodHandler = func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error)

func unaryHandler[Req, Resp any](method string, call func(SchedulingServiceServer, context.Context, *Req) (*Resp, error)) methodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SchedulingServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod(method),
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SchedulingServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// SchedulingServiceClient calls the service over a connection that speaks
// the json codec.
type SchedulingServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSchedulingServiceClient(cc grpc.ClientConnInterface) *SchedulingServiceClient {
	return &SchedulingServiceClient{cc: cc}
}

func (c *SchedulingServiceClient) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, fullMethod(method), in, out, opts...)
}

func (c *SchedulingServiceClient) CreateAppointment(ctx context.Context, in *CreateAppointmentRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	out := new(AppointmentResponse)
	if err := c.invoke(ctx, "CreateAppointment", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SchedulingServiceClient) GetAppointment(ctx context.Context, in *GetAppointmentRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	out := new(AppointmentResponse)
	if err := c.invoke(ctx, "GetAppointment", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SchedulingServiceClient) ListAvailableSlots(ctx context.Context, in *ListAvailableSlotsRequest, opts ...grpc.CallOption) (*ListAvailableSlotsResponse, error) {
	out := new(ListAvailableSlotsResponse)
	if err := c.invoke(ctx, "ListAvailableSlots", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SchedulingServiceClient) ConfirmBooking(ctx context.Context, in *ConfirmBookingRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	out := new(AppointmentResponse)
	if err := c.invoke(ctx, "ConfirmBooking", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SchedulingServiceClient) DeclineAppointment(ctx context.Context, in *DeclineAppointmentRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	out := new(AppointmentResponse)
	if err := c.invoke(ctx, "DeclineAppointment", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SchedulingServiceClient) CancelAppointment(ctx context.Context, in *CancelAppointmentRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	out := new(AppointmentResponse)
	if err := c.invoke(ctx, "CancelAppointment", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
