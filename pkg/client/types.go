package client

import "strings"

// TextResult は物語本文生成の結果です。
type TextResult struct {
	Success      bool
	Story        string
	PromptTokens int
	TotalTokens  int
}

// MediaResult は画像・音声生成の結果です。
// Success が true でも Base64 が空の場合があり、これはソフト失敗として扱います。
type MediaResult struct {
	Success  bool
	Base64   string
	MIMEType string
}

// Usable はペイロードが実際に存在するかを返します。
func (r MediaResult) Usable() bool {
	return r.Success && strings.TrimSpace(r.Base64) != ""
}

// SpeechRequest は音声合成のリクエストです。
type SpeechRequest struct {
	Text         string
	Voice        string
	Model        string
	Instructions string
}

// CreditResult はクレジット減算の結果です。
type CreditResult struct {
	Success       bool
	RemainingUses int64
}
