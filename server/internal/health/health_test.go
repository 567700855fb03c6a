package health

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// startServer serves s over an in-memory listener and returns a health client.
func startServer(t *testing.T, s *Server) healthpb.HealthClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	go s.Serve(lis) //nolint:errcheck
	t.Cleanup(s.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := grpc.DialContext(ctx, "bufnet", //nolint:staticcheck
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.Status, nil
}

func TestCheck_OverallServing(t *testing.T) {
	client := startServer(t, New(nil))

	st, err := check(t, client, "")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if st != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("overall: got %v, want SERVING", st)
	}
}

func TestCheck_ServiceStartsNotServing(t *testing.T) {
	client := startServer(t, New(nil))

	st, err := check(t, client, ServiceName)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if st != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("%s: got %v, want NOT_SERVING", ServiceName, st)
	}
}

func TestSetServing_Toggles(t *testing.T) {
	s := New(nil)
	client := startServer(t, s)

	s.SetServing(true)
	if st, _ := check(t, client, ServiceName); st != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("after SetServing(true): got %v, want SERVING", st)
	}

	s.SetServing(false)
	if st, _ := check(t, client, ServiceName); st != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("after SetServing(false): got %v, want NOT_SERVING", st)
	}
}

func TestCheck_UnknownService(t *testing.T) {
	client := startServer(t, New(nil))

	_, err := check(t, client, "no.such.Service")
	if status.Code(err) != codes.NotFound {
		t.Errorf("unknown service: got %v, want NotFound", err)
	}
}
