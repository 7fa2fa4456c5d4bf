package prompts

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/shouni/go-story-kit/pkg/domain"
)

// PromptBuilder は、AIプロンプトを構築する契約です。
type PromptBuilder interface {
	Build(mode string, data TemplateData) (string, error)
}

// TextPromptBuilder はプロンプトテンプレートを保持し、モード選択のロジックを内包します。
type TextPromptBuilder struct {
	templates   map[string]*template.Template
	styleSuffix string
}

// NewTextPromptBuilder は埋め込みテンプレートをパースして TextPromptBuilder を初期化します。
func NewTextPromptBuilder(styleSuffix string) (*TextPromptBuilder, error) {
	parsedTemplates := make(map[string]*template.Template)
	for mode, content := range allTemplates {
		if content == "" {
			return nil, fmt.Errorf("プロンプトテンプレート '%s' (go:embed) の読み込みに失敗しました: 内容が空です", mode)
		}

		tmpl, err := template.New(mode).Option("missingkey=zero").Parse(content)
		if err != nil {
			return nil, fmt.Errorf("プロンプト '%s' の解析に失敗: %w", mode, err)
		}
		parsedTemplates[mode] = tmpl
	}

	return &TextPromptBuilder{
		templates:   parsedTemplates,
		styleSuffix: styleSuffix,
	}, nil
}

// Build は、要求されたモードに応じて適切なテンプレートを実行します。
func (b *TextPromptBuilder) Build(mode string, data TemplateData) (string, error) {
	tmpl, ok := b.templates[mode]
	if !ok {
		return "", fmt.Errorf("不明なモードです: '%s'", mode)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("プロンプトテンプレートの実行に失敗しました: %w", err)
	}

	return strings.TrimSpace(sb.String()), nil
}

// BuildStoryPrompt は物語本文を生成するためのプロンプトを組み立てます。
// 長さから目標ページ数を決め、区切り文字の使い方を指示します。
func (b *TextPromptBuilder) BuildStoryPrompt(params domain.StoryGenerationParams, delimiter string) (string, error) {
	return b.Build(ModeStory, TemplateData{
		Prompt:        params.Prompt,
		Theme:         params.Theme,
		Topic:         params.Topic,
		MainCharacter: params.MainCharacter,
		Location:      params.Location,
		PageCount:     params.Length.PageCount(),
		Delimiter:     delimiter,
	})
}

// BuildImagePrompt はキャラクター・場所・ページ本文から画像プロンプトを組み立てます。
func (b *TextPromptBuilder) BuildImagePrompt(mainCharacter, location, pageText string) (string, error) {
	return b.Build(ModeImage, TemplateData{
		MainCharacter: mainCharacter,
		Location:      location,
		PageText:      strings.TrimSpace(pageText),
		StyleSuffix:   b.styleSuffix,
	})
}
