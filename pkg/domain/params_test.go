package domain

import (
	"errors"
	"testing"
)

func TestLength_PageCount(t *testing.T) {
	cases := map[Length]int{
		LengthShort:  2,
		LengthMedium: 4,
		LengthLong:   6,
		"unknown":    2,
	}
	for l, want := range cases {
		if got := l.PageCount(); got != want {
			t.Errorf("%s のページ数が違うのだ: got %d, want %d", l, got, want)
		}
	}
}

func TestParseLength(t *testing.T) {
	t.Run("大文字や空白を許容するのだ", func(t *testing.T) {
		l, err := ParseLength("  Medium ")
		if err != nil || l != LengthMedium {
			t.Errorf("medium を期待したのだ: %v, %v", l, err)
		}
	})
	t.Run("空文字は short なのだ", func(t *testing.T) {
		l, err := ParseLength("")
		if err != nil || l != LengthShort {
			t.Errorf("short を期待したのだ: %v, %v", l, err)
		}
	})
	t.Run("不明な値はエラーなのだ", func(t *testing.T) {
		if _, err := ParseLength("epic"); err == nil {
			t.Error("エラーを期待したのだ")
		}
	})
}

func TestRemoteError_UserMessage(t *testing.T) {
	cases := []struct {
		name string
		err  *RemoteError
		want string
	}{
		{"クレジット切れ", NewRemoteError(CodeResourceExhausted, "quota", nil), MessageOutOfCredits},
		{"未認証", NewRemoteError(CodeUnauthenticated, "", nil), MessageMustSignIn},
		{"その他はメッセージをそのまま", NewRemoteError(CodeUnknown, "model overloaded", nil), "model overloaded"},
		{"メッセージなし", NewRemoteError(CodeNotFound, "", nil), MessageTextUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.err.UserMessage(); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}

	t.Run("ラップされていても取り出せるのだ", func(t *testing.T) {
		wrapped := errors.Join(errors.New("ctx"), NewRemoteError(CodeResourceExhausted, "", nil))
		if got := UserMessage(wrapped); got != MessageOutOfCredits {
			t.Errorf("got %q", got)
		}
	})
}

func TestCodeFromHTTPStatus(t *testing.T) {
	cases := map[int]RemoteErrorCode{
		429: CodeResourceExhausted,
		401: CodeUnauthenticated,
		403: CodeUnauthenticated,
		400: CodeInvalidArgument,
		404: CodeNotFound,
		500: CodeUnknown,
	}
	for status, want := range cases {
		if got := CodeFromHTTPStatus(status); got != want {
			t.Errorf("%d: got %s, want %s", status, got, want)
		}
	}
}
