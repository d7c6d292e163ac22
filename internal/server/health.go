package server

import (
	"context"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Health service names reported next to the overall "" status.
const (
	HealthDocuments = "hwp.documents"
	HealthAnalysis  = "hwp.analysis"
	HealthHistory   = "hwp.history"
)

// HealthServer reports component status over the standard gRPC health protocol.
type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
	logger *slog.Logger
}

// NewHealthServer registers health and reflection and sets initial statuses
// from deps. A degraded extractor is still SERVING; a missing one is not.
func NewHealthServer(deps Deps, logger *slog.Logger) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	h := &HealthServer{grpc: gs, health: hs, logger: logger}
	h.Update(deps)
	return h
}

// Update recomputes per-component statuses.
func (h *HealthServer) Update(deps Deps) {
	docs := serving(deps.Documents != nil)
	h.health.SetServingStatus("", docs)
	h.health.SetServingStatus(HealthDocuments, docs)
	h.health.SetServingStatus(HealthAnalysis, serving(deps.Analyzer != nil))
	h.health.SetServingStatus(HealthHistory, serving(deps.History != nil))
	if deps.Documents != nil {
		c := deps.Documents.Capability()
		h.logger.Info("health.updated", "mode", c.Mode, "degraded", c.Degraded,
			"analysis", deps.Analyzer != nil, "history", deps.History != nil)
	}
}

// SetHistory flips the history status, e.g. after a failed database ping.
func (h *HealthServer) SetHistory(ok bool) {
	h.health.SetServingStatus(HealthHistory, serving(ok))
}

// Check queries the local health service directly.
func (h *HealthServer) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := h.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// Serve blocks until the listener fails or Stop is called.
func (h *HealthServer) Serve(lis net.Listener) error {
	return h.grpc.Serve(lis)
}

// Stop marks every service NOT_SERVING and drains connections.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.grpc.GracefulStop()
}

func serving(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
