package domain

import (
	"errors"
	"fmt"
)

// RemoteErrorCode はリモート呼び出しの失敗種別です。
type RemoteErrorCode string

const (
	CodeResourceExhausted RemoteErrorCode = "resource-exhausted"
	CodeUnauthenticated   RemoteErrorCode = "unauthenticated"
	CodeInvalidArgument   RemoteErrorCode = "invalid-argument"
	CodeNotFound          RemoteErrorCode = "not-found"
	CodeUnknown           RemoteErrorCode = "unknown"
)

// ユーザー向けメッセージ
const (
	MessageOutOfCredits    = "out of generation credits"
	MessageMustSignIn      = "must sign in"
	MessageSignInRequired  = "sign-in required"
	MessageTextUnavailable = "story text could not be produced"
)

var (
	// ErrSignInRequired は Principal が存在しない場合のエラーです。
	ErrSignInRequired = errors.New(MessageSignInRequired)
	// ErrEmptyPayload は success=true なのにペイロードが空の応答（ソフト失敗）を表します。
	ErrEmptyPayload = errors.New("応答にペイロードが含まれていません")
	// ErrNoCredits はクレジット残高がない場合のエラーです。
	ErrNoCredits = errors.New("クレジット残高がありません")
)

// RemoteError はテキスト・画像・音声生成の呼び出し失敗を表します。
type RemoteError struct {
	Code    RemoteErrorCode
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Message == "" && e.Err != nil {
		return fmt.Sprintf("remote error (%s): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("remote error (%s): %s", e.Code, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// UserMessage はエラーコードに対応するユーザー向けメッセージを返します。
func (e *RemoteError) UserMessage() string {
	switch e.Code {
	case CodeResourceExhausted:
		return MessageOutOfCredits
	case CodeUnauthenticated:
		return MessageMustSignIn
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return MessageTextUnavailable
}

// NewRemoteError は RemoteError を生成します。
func NewRemoteError(code RemoteErrorCode, msg string, err error) *RemoteError {
	return &RemoteError{Code: code, Message: msg, Err: err}
}

// CodeFromHTTPStatus は HTTP ステータスコードをエラーコードに変換します。
func CodeFromHTTPStatus(status int) RemoteErrorCode {
	switch status {
	case 429:
		return CodeResourceExhausted
	case 401, 403:
		return CodeUnauthenticated
	case 400:
		return CodeInvalidArgument
	case 404:
		return CodeNotFound
	default:
		return CodeUnknown
	}
}

// StorageError はブロブストレージへの保存失敗を表します。
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// PageParseError は生成テキストからページを取り出せなかった場合のエラーです。
type PageParseError struct {
	Reason string
}

func (e *PageParseError) Error() string {
	return "page parse: " + e.Reason
}

// UserMessage は失敗理由をユーザー向けの文言に変換します。
// 既知の型以外は err.Error() をそのまま返します。
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr.UserMessage()
	}
	if errors.Is(err, ErrSignInRequired) {
		return MessageSignInRequired
	}
	return err.Error()
}
