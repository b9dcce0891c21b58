package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charangentem-coder/rental-price-predictor/utils"
)

type RouterConfig struct {
	HealthHandler  *HealthHandler
	PredictHandler *PredictHandler
	MetricsHandler *MetricsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api/v1")
	{
		if cfg.PredictHandler != nil {
			api.POST("/predict", cfg.PredictHandler.Predict)
		}
		if cfg.MetricsHandler != nil {
			api.GET("/metrics", cfg.MetricsHandler.Metrics)
		}
	}
	return r
}

type Server struct {
	Engine *gin.Engine
	logger *utils.Logger
}

func NewServer(cfg RouterConfig, logger *utils.Logger) *Server {
	return &Server{Engine: NewRouter(cfg), logger: logger}
}

// Run serves on address until ctx is cancelled, then drains in-flight
// requests for up to ten seconds.
func (s *Server) Run(ctx context.Context, address string) error {
	srv := &http.Server{Addr: address, Handler: s.Engine, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("[server] Listening on %s", address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("[server] Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// jsonDecoder keeps numbers as json.Number so integer fields are checked exactly.
func jsonDecoder(r io.Reader) *json.Decoder {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return dec
}
