// Copyright The AppNet Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package extproc hosts the gRPC body interception filter as an Envoy
// External Processing server. Envoy is configured to stream request and
// response bodies to this process; each ext_proc stream is one intercepted
// HTTP exchange.
package extproc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	extprocv3 "github.com/envoyproxy/go-control-plane/envoy/service/ext_proc/v3"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/appnet-org/grpc-filter/filterapi"
	"github.com/appnet-org/grpc-filter/internal/filter"
	"github.com/appnet-org/grpc-filter/internal/transform"
)

// Server implements the external processor server.
type Server struct {
	logger *slog.Logger
	config *streamConfig
}

// streamConfig is the per-stream construction material derived from a
// validated [filterapi.Config]. Transforms are pure and therefore shared
// across streams.
type streamConfig struct {
	requestTransform  transform.Transform
	responseTransform transform.Transform
	maxBufferedRead   int
	metrics           filter.Metrics
}

// NewServer creates a new external processor server.
func NewServer(logger *slog.Logger) (*Server, error) {
	return &Server{logger: logger}, nil
}

// SetConfig validates cfg and swaps in the filter construction material for
// subsequent streams.
func (s *Server) SetConfig(cfg *filterapi.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid filter configuration: %w", err)
	}
	requestTransform, responseTransform, err := filter.Transforms(cfg, s.logger.With(slog.String("component", "transform")))
	if err != nil {
		return fmt.Errorf("cannot build transforms: %w", err)
	}
	s.config = &streamConfig{
		requestTransform:  requestTransform,
		responseTransform: responseTransform,
		maxBufferedRead:   cfg.MaxBufferedRead,
		metrics:           newFilterMetrics(),
	}
	return nil
}

// Process implements [extprocv3.ExternalProcessorServer].
func (s *Server) Process(stream extprocv3.ExternalProcessor_ProcessServer) error {
	ctx := stream.Context()
	p := s.newProcessor(uuid.NewString())
	defer p.filter.OnDestroy()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		req, err := stream.Recv()
		if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
			return nil
		} else if err != nil {
			s.logger.Error("cannot receive stream request", slog.String("error", err.Error()))
			return status.Errorf(codes.Unknown, "cannot receive stream request: %v", err)
		}

		resp, err := s.processMsg(p, req)
		if err != nil {
			s.logger.Error("cannot process request", slog.String("error", err.Error()))
			return status.Errorf(codes.Unknown, "cannot process request: %v", err)
		}
		if err := stream.Send(resp); err != nil {
			s.logger.Error("cannot send response", slog.String("error", err.Error()))
			return status.Errorf(codes.Unknown, "cannot send response: %v", err)
		}
	}
}

// newProcessor builds the per-stream processor with a fresh filter instance.
func (s *Server) newProcessor(streamID string) *processor {
	cfg := s.config
	return &processor{filter: filter.New(filter.Params{
		ContextID:         streamID,
		RequestTransform:  cfg.requestTransform,
		ResponseTransform: cfg.responseTransform,
		MaxBufferedRead:   cfg.maxBufferedRead,
		Logger:            s.logger,
		Metrics:           cfg.metrics,
	})}
}

func (s *Server) processMsg(p *processor, req *extprocv3.ProcessingRequest) (*extprocv3.ProcessingResponse, error) {
	switch value := req.Request.(type) {
	case *extprocv3.ProcessingRequest_RequestHeaders:
		s.logger.Debug("request headers processing", slog.Any("request_headers", value.RequestHeaders.GetHeaders()))
		return p.processRequestHeaders(value.RequestHeaders.GetHeaders(), value.RequestHeaders.GetEndOfStream()), nil
	case *extprocv3.ProcessingRequest_RequestBody:
		s.logger.Debug("request body processing",
			slog.Int("chunk_len", len(value.RequestBody.GetBody())),
			slog.Bool("end_of_stream", value.RequestBody.GetEndOfStream()))
		return p.processRequestBody(value.RequestBody), nil
	case *extprocv3.ProcessingRequest_ResponseHeaders:
		s.logger.Debug("response headers processing", slog.Any("response_headers", value.ResponseHeaders.GetHeaders()))
		return p.processResponseHeaders(value.ResponseHeaders.GetHeaders(), value.ResponseHeaders.GetEndOfStream()), nil
	case *extprocv3.ProcessingRequest_ResponseBody:
		s.logger.Debug("response body processing",
			slog.Int("chunk_len", len(value.ResponseBody.GetBody())),
			slog.Bool("end_of_stream", value.ResponseBody.GetEndOfStream()))
		return p.processResponseBody(value.ResponseBody), nil
	case *extprocv3.ProcessingRequest_RequestTrailers:
		return &extprocv3.ProcessingResponse{Response: &extprocv3.ProcessingResponse_RequestTrailers{
			RequestTrailers: &extprocv3.TrailersResponse{},
		}}, nil
	case *extprocv3.ProcessingRequest_ResponseTrailers:
		return &extprocv3.ProcessingResponse{Response: &extprocv3.ProcessingResponse_ResponseTrailers{
			ResponseTrailers: &extprocv3.TrailersResponse{},
		}}, nil
	default:
		return nil, fmt.Errorf("unknown request type: %T", value)
	}
}

// Check implements [grpc_health_v1.HealthServer].
func (s *Server) Check(context.Context, *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING}, nil
}

// Watch implements [grpc_health_v1.HealthServer].
func (s *Server) Watch(*grpc_health_v1.HealthCheckRequest, grpc_health_v1.Health_WatchServer) error {
	return status.Error(codes.Unimplemented, "Watch is not implemented")
}

// List implements [grpc_health_v1.HealthServer].
func (s *Server) List(context.Context, *grpc_health_v1.HealthListRequest) (*grpc_health_v1.HealthListResponse, error) {
	return nil, status.Error(codes.Unimplemented, "List is not implemented")
}
