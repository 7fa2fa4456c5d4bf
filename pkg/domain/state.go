package domain

import (
	"encoding/json"
	"errors"
)

// Status は外部に公開される生成ステータスです。
type Status string

const (
	StatusIdle             Status = "idle"
	StatusGeneratingText   Status = "generating_text"
	StatusGeneratingImages Status = "generating_images"
	StatusGeneratingAudio  Status = "generating_audio"
	StatusFinalizing       Status = "finalizing"
	StatusComplete         Status = "complete"
	StatusError            Status = "error"
)

// rank は1回の実行内での進行順序です。error はどのフェーズからも到達できるため最大値とします。
func (s Status) rank() int {
	switch s {
	case StatusIdle:
		return 0
	case StatusGeneratingText:
		return 1
	case StatusGeneratingImages:
		return 2
	case StatusGeneratingAudio:
		return 3
	case StatusFinalizing:
		return 4
	case StatusComplete, StatusError:
		return 5
	default:
		return -1
	}
}

// Before は s が next より前の段階であれば true を返します。
func (s Status) Before(next Status) bool {
	return s.rank() < next.rank()
}

// Phase は状態機械の各状態を表す直和型です。
// 実装はこのパッケージ内の型に限られます。
type Phase interface {
	Status() Status
	isPhase()
}

type (
	Idle             struct{}
	GeneratingText   struct{}
	GeneratingImages struct{}
	GeneratingAudio  struct{}
	Finalizing       struct{}
)

func (Idle) Status() Status             { return StatusIdle }
func (GeneratingText) Status() Status   { return StatusGeneratingText }
func (GeneratingImages) Status() Status { return StatusGeneratingImages }
func (GeneratingAudio) Status() Status  { return StatusGeneratingAudio }
func (Finalizing) Status() Status       { return StatusFinalizing }

func (Idle) isPhase()             {}
func (GeneratingText) isPhase()   {}
func (GeneratingImages) isPhase() {}
func (GeneratingAudio) isPhase()  {}
func (Finalizing) isPhase()       {}

// ErrNilStory は物語なしで完了状態を作ろうとした場合のエラーです。
var ErrNilStory = errors.New("完了状態には物語が必要です")

// Complete は生成完了状態です。物語は必ず存在します。
type Complete struct {
	story *GeneratedStory
}

// NewComplete は物語を保持した完了状態を生成します。
func NewComplete(story *GeneratedStory) (Complete, error) {
	if story == nil {
		return Complete{}, ErrNilStory
	}
	return Complete{story: story}, nil
}

func (Complete) Status() Status { return StatusComplete }
func (Complete) isPhase()       {}

// Story は完了した物語のコピーを返します。
func (c Complete) Story() *GeneratedStory {
	return c.story.Clone()
}

// Failed は実行が致命的なエラーで終了した状態です。
type Failed struct {
	Message string
}

func (Failed) Status() Status { return StatusError }
func (Failed) isPhase()       {}

// Counter はリソース単位の進捗カウンターです。
type Counter struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// State は外部から観測されるスナップショットです。更新時は常に丸ごと置き換えられます。
type State struct {
	Phase         Phase
	Progress      int
	Step          string
	ImageProgress Counter
	AudioProgress Counter
}

// IdleState は初期状態のスナップショットを返します。
func IdleState() State {
	return State{Phase: Idle{}}
}

// Status は現在のフェーズに対応するステータスを返します。
func (s State) Status() Status {
	if s.Phase == nil {
		return StatusIdle
	}
	return s.Phase.Status()
}

// Story は完了状態の場合のみ物語を返します。
func (s State) Story() *GeneratedStory {
	if c, ok := s.Phase.(Complete); ok {
		return c.Story()
	}
	return nil
}

// ErrorMessage はエラー状態の場合のみメッセージを返します。
func (s State) ErrorMessage() string {
	if f, ok := s.Phase.(Failed); ok {
		return f.Message
	}
	return ""
}

// IsTerminal は complete か error の場合に true を返します。
func (s State) IsTerminal() bool {
	st := s.Status()
	return st == StatusComplete || st == StatusError
}

// IsBusy は実行中のフェーズにある場合に true を返します。
func (s State) IsBusy() bool {
	return s.Status() != StatusIdle && !s.IsTerminal()
}

type stateJSON struct {
	Status        Status          `json:"status"`
	Progress      int             `json:"progress"`
	Step          string          `json:"step"`
	Error         *string         `json:"error"`
	Story         *GeneratedStory `json:"story"`
	ImageProgress Counter         `json:"image_progress"`
	AudioProgress Counter         `json:"audio_progress"`
}

// MarshalJSON はフェーズを平坦なステータス表現に変換します。
func (s State) MarshalJSON() ([]byte, error) {
	out := stateJSON{
		Status:        s.Status(),
		Progress:      s.Progress,
		Step:          s.Step,
		Story:         s.Story(),
		ImageProgress: s.ImageProgress,
		AudioProgress: s.AudioProgress,
	}
	if msg := s.ErrorMessage(); msg != "" {
		out.Error = &msg
	}
	return json.Marshal(out)
}
