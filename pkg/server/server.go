// Package server は物語生成パイプラインを HTTP API として公開します。
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shouni/go-story-kit/pkg/auth"
	"github.com/shouni/go-story-kit/pkg/credit"
	"github.com/shouni/go-story-kit/pkg/metrics"
)

const (
	DefaultAddr     = ":8080"
	MediaRoute      = "/media"
	shutdownTimeout = 15 * time.Second
)

// Options はルーターの構成要素です。
type Options struct {
	Registry *Registry
	Auth     *auth.JWTManager
	Ledger   credit.Ledger
	Metrics  *metrics.Prometheus
	// Gatherer が nil の場合は /metrics を公開しない
	Gatherer prometheus.Gatherer
	// MediaDir が空でない場合、ローカル保存した画像と音声を /media 配下で配信する
	MediaDir string
}

// NewRouter は gin のルーターを構築します。
func NewRouter(opts Options) (*gin.Engine, error) {
	if opts.Registry == nil || opts.Auth == nil {
		return nil, fmt.Errorf("ルーターの構成要素が不足しています")
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(), Metrics(opts.Metrics))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	if opts.MediaDir != "" {
		r.Static(MediaRoute, opts.MediaDir)
	}

	h := NewGenerationHandler(opts.Registry, opts.Ledger)
	v1 := r.Group("/v1", Auth(opts.Auth))
	{
		v1.POST("/generation", h.Start)
		v1.GET("/generation", h.Get)
		v1.DELETE("/generation", h.Reset)
		v1.GET("/generation/events", h.Events)
		v1.GET("/generation/ws", h.WebSocket)
		v1.GET("/credits", h.Credits)
	}
	return r, nil
}

// Run は ctx がキャンセルされるまで HTTP サーバーを実行し、その後グレースフルに停止します。
func Run(ctx context.Context, addr string, handler http.Handler) error {
	if addr == "" {
		addr = DefaultAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP サーバーを起動します", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP サーバーが停止しました: %w", err)
	case <-ctx.Done():
	}

	slog.Info("HTTP サーバーを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP サーバーの停止に失敗しました: %w", err)
	}
	return nil
}
