package pipeline

import (
	"github.com/shouni/go-story-kit/pkg/domain"
)

// PromptBuilder は物語本文と各ページの画像プロンプトを組み立てます。
type PromptBuilder interface {
	BuildStoryPrompt(params domain.StoryGenerationParams, delimiter string) (string, error)
	BuildImagePrompt(mainCharacter, location, pageText string) (string, error)
}

// PrincipalSource はサインイン中のユーザーを提供します。
type PrincipalSource interface {
	Principal() (domain.Principal, bool)
}

// PrincipalFunc は関数を PrincipalSource として扱うためのアダプターです。
type PrincipalFunc func() (domain.Principal, bool)

func (f PrincipalFunc) Principal() (domain.Principal, bool) {
	return f()
}

// StaticPrincipal は常に同じユーザーを返す PrincipalSource です。
func StaticPrincipal(p domain.Principal) PrincipalSource {
	return PrincipalFunc(func() (domain.Principal, bool) {
		return p, p.Valid()
	})
}
