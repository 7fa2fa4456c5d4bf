package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/shouni/go-story-kit/pkg/credit"
	"github.com/shouni/go-story-kit/pkg/domain"
	"github.com/shouni/go-story-kit/pkg/pipeline"
)

const (
	subscriberBuffer = 16
	wsWriteTimeout   = 10 * time.Second
	wsPingInterval   = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// トークンで認証済みのため Origin は制限しない
	CheckOrigin: func(*http.Request) bool { return true },
}

// generationRequest は生成開始リクエストです。
type generationRequest struct {
	Prompt        string `json:"prompt" binding:"required"`
	Length        string `json:"length"`
	MainCharacter string `json:"main_character"`
	Location      string `json:"location"`
	Theme         string `json:"theme"`
	Topic         string `json:"topic"`
}

func (r generationRequest) params() (domain.StoryGenerationParams, error) {
	length, err := domain.ParseLength(r.Length)
	if err != nil {
		return domain.StoryGenerationParams{}, err
	}
	return domain.StoryGenerationParams{
		Prompt:        strings.TrimSpace(r.Prompt),
		Length:        length,
		MainCharacter: strings.TrimSpace(r.MainCharacter),
		Location:      strings.TrimSpace(r.Location),
		Theme:         strings.TrimSpace(r.Theme),
		Topic:         strings.TrimSpace(r.Topic),
	}, nil
}

// GenerationHandler は生成 API のハンドラーです。
type GenerationHandler struct {
	registry *Registry
	ledger   credit.Ledger
}

func NewGenerationHandler(registry *Registry, ledger credit.Ledger) *GenerationHandler {
	return &GenerationHandler{registry: registry, ledger: ledger}
}

// pipelineFor は認証済みユーザーのパイプラインを返します。失敗した場合はレスポンスを書いて false を返します。
func (h *GenerationHandler) pipelineFor(c *gin.Context) (*pipeline.Pipeline, bool) {
	p, ok := principalFrom(c)
	if !ok {
		abortError(c, http.StatusUnauthorized, domain.MessageMustSignIn)
		return nil, false
	}
	pl, err := h.registry.Get(p)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "パイプラインを取得できませんでした", "principal", p.ID, "error", err)
		abortError(c, http.StatusInternalServerError, "generation is unavailable")
		return nil, false
	}
	return pl, true
}

// Start は POST /v1/generation です。
func (h *GenerationHandler) Start(c *gin.Context) {
	var req generationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "prompt is required")
		return
	}
	params, err := req.params()
	if err != nil || params.Prompt == "" {
		abortError(c, http.StatusBadRequest, "invalid generation parameters")
		return
	}

	pl, ok := h.pipelineFor(c)
	if !ok {
		return
	}

	if err := pl.Start(c.Request.Context(), params); err != nil {
		switch {
		case errors.Is(err, pipeline.ErrAlreadyRunning):
			abortError(c, http.StatusConflict, "a story is already being generated")
		case errors.Is(err, domain.ErrSignInRequired):
			abortError(c, http.StatusUnauthorized, domain.MessageSignInRequired)
		default:
			abortError(c, http.StatusInternalServerError, domain.UserMessage(err))
		}
		return
	}
	c.JSON(http.StatusAccepted, pl.Snapshot())
}

// Get は GET /v1/generation です。
func (h *GenerationHandler) Get(c *gin.Context) {
	pl, ok := h.pipelineFor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, pl.Snapshot())
}

// Reset は DELETE /v1/generation です。実行中なら中断します。
func (h *GenerationHandler) Reset(c *gin.Context) {
	pl, ok := h.pipelineFor(c)
	if !ok {
		return
	}
	pl.Reset()
	c.JSON(http.StatusOK, pl.Snapshot())
}

// Events は GET /v1/generation/events です。終了状態に達するまで SSE で状態を配信します。
func (h *GenerationHandler) Events(c *gin.Context) {
	pl, ok := h.pipelineFor(c)
	if !ok {
		return
	}
	states, unsubscribe := pl.Subscribe(subscriberBuffer)
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case s, ok := <-states:
			if !ok {
				return false
			}
			c.SSEvent("state", s)
			return !s.IsTerminal()
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// WebSocket は GET /v1/generation/ws です。状態を JSON テキストメッセージとして送信します。
func (h *GenerationHandler) WebSocket(c *gin.Context) {
	pl, ok := h.pipelineFor(c)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.WarnContext(c.Request.Context(), "WebSocket へのアップグレードに失敗しました", "error", err)
		return
	}
	defer conn.Close()

	states, unsubscribe := pl.Subscribe(subscriberBuffer)
	defer unsubscribe()

	// クライアントからの切断を検知する
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case s, ok := <-states:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(s); err != nil {
				return
			}
			if s.IsTerminal() {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(s.Status()))
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

// Credits は GET /v1/credits です。
func (h *GenerationHandler) Credits(c *gin.Context) {
	p, ok := principalFrom(c)
	if !ok {
		abortError(c, http.StatusUnauthorized, domain.MessageMustSignIn)
		return
	}
	if h.ledger == nil {
		abortError(c, http.StatusNotFound, "credits are not tracked")
		return
	}
	remaining, err := h.ledger.Remaining(c.Request.Context(), p.ID)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "残高の取得に失敗しました", "principal", p.ID, "error", err)
		abortError(c, http.StatusInternalServerError, "credits are unavailable")
		return
	}
	c.JSON(http.StatusOK, gin.H{"remaining_uses": remaining})
}
