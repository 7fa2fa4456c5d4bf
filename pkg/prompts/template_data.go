package prompts

import (
	_ "embed"
)

const (
	ModeStory = "story"
	ModeImage = "image"
)

// DefaultImageStyle は画像プロンプトに付与する既定の画風です。
const DefaultImageStyle = "soft watercolor picture book illustration, warm lighting, gentle colors, high quality"

// TemplateData はプロンプトテンプレートに渡すデータ構造です。
type TemplateData struct {
	Prompt        string
	Theme         string
	Topic         string
	MainCharacter string
	Location      string
	PageCount     int
	Delimiter     string

	// 画像プロンプト用
	PageText    string
	StyleSuffix string
}

var (
	//go:embed story.md
	StoryPrompt string
	//go:embed image.md
	ImagePrompt string
)

// allTemplates はモードとテンプレート文字列を紐づけるマップなのだ。
var allTemplates = map[string]string{
	ModeStory: StoryPrompt,
	ModeImage: ImagePrompt,
}
