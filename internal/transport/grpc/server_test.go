package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"craftbook/backend/internal/service/scheduling"
	"craftbook/backend/internal/store/memory"
)

type testServer struct {
	client  *SchedulingServiceClient
	conn    *grpc.ClientConn
	metrics *prometheus.Registry
}

func startTestServer(t *testing.T, limiter *PeerRateLimiter) testServer {
	t.Helper()

	reg := prometheus.NewRegistry()
	svc := scheduling.NewService(memory.NewAppointmentRepo())
	s, _ := NewServer(NewSchedulingServer(svc, testLogger()), ServerOptions{
		RequestTimeout: 5 * time.Second,
		RateLimiter:    limiter,
		Metrics:        NewMetrics(reg),
	})

	lis := bufconn.Listen(1 << 20)
	go func() {
		_ = s.Serve(lis)
	}()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return testServer{client: NewSchedulingServiceClient(conn), conn: conn, metrics: reg}
}

func TestServer_BookingRoundTrip(t *testing.T) {
	ts := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req := createRequest()
	req.TimeZone = ""

	ctx = metadata.AppendToOutgoingContext(ctx, "idempotency-key", "form-1")
	first, err := ts.client.CreateAppointment(ctx, req)
	require.NoError(t, err)
	second, err := ts.client.CreateAppointment(ctx, req)
	require.NoError(t, err)
	require.Equal(t, first.Appointment.ID, second.Appointment.ID)
	assert.Equal(t, "OPEN", first.Appointment.Status)
	assert.Equal(t, "UTC", first.Appointment.TimeZone)

	slots, err := ts.client.ListAvailableSlots(ctx, &ListAvailableSlotsRequest{AppointmentID: first.Appointment.ID})
	require.NoError(t, err)
	require.NotEmpty(t, slots.Slots)
	assert.True(t, slots.Slots[0].Equal(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)))

	slot := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	confirmed, err := ts.client.ConfirmBooking(ctx, &ConfirmBookingRequest{AppointmentID: first.Appointment.ID, SlotStart: &slot})
	require.NoError(t, err)
	assert.Equal(t, "CONFIRMED", confirmed.Appointment.Status)
	require.NotNil(t, confirmed.Appointment.ConfirmedEnd)
	assert.True(t, confirmed.Appointment.ConfirmedEnd.Equal(slot.Add(time.Hour)))

	otherReq := createRequest()
	otherReq.TimeZone = "UTC"
	other, err := ts.client.CreateAppointment(context.Background(), otherReq)
	require.NoError(t, err)

	var trailer metadata.MD
	overlap := slot.Add(30 * time.Minute)
	_, err = ts.client.ConfirmBooking(context.Background(), &ConfirmBookingRequest{AppointmentID: other.Appointment.ID, SlotStart: &overlap}, grpc.Trailer(&trailer))
	require.Equal(t, codes.FailedPrecondition, status.Code(err), "err=%v", err)
	assert.Equal(t, []string{"conflict"}, trailer.Get(CheckTrailer))

	reason := "Emergency"
	cancelled, err := ts.client.CancelAppointment(ctx, &CancelAppointmentRequest{AppointmentID: first.Appointment.ID, Reason: &reason})
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", cancelled.Appointment.Status)
	assert.Nil(t, cancelled.Appointment.ConfirmedStart)

	_, err = ts.client.DeclineAppointment(ctx, &DeclineAppointmentRequest{AppointmentID: first.Appointment.ID})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = ts.client.GetAppointment(ctx, &GetAppointmentRequest{AppointmentID: "00000000-0000-0000-0000-000000000001"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	assert.Equal(t, float64(1), ts.requestCount(t, fullMethod("GetAppointment"), codes.NotFound))
}

func (ts testServer) requestCount(t *testing.T, method string, code codes.Code) float64 {
	t.Helper()
	families, err := ts.metrics.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "craftbook_grpc_requests_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["method"] == method && labels["code"] == code.String() {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestServer_HealthReportsServing(t *testing.T) {
	ts := startTestServer(t, nil)

	resp, err := healthpb.NewHealthClient(ts.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName()})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestServer_RateLimitRejectsBurst(t *testing.T) {
	ts := startTestServer(t, NewPeerRateLimiter(0.001, 2, testLogger()))

	req := &GetAppointmentRequest{AppointmentID: "00000000-0000-0000-0000-000000000001"}
	for i := 0; i < 2; i++ {
		_, err := ts.client.GetAppointment(context.Background(), req)
		require.Equal(t, codes.NotFound, status.Code(err))
	}
	_, err := ts.client.GetAppointment(context.Background(), req)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}
