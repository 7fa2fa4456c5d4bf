package publisher

import (
	"bytes"
	"fmt"
	"html/template"
)

var pageTemplate = template.Must(template.New("story").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { max-width: 42rem; margin: 2rem auto; padding: 0 1rem; font-family: Georgia, serif; line-height: 1.7; }
img { max-width: 100%; border-radius: 8px; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// renderHTML は Markdown を goldmark で HTML に変換し、1枚のページとして包みます。
func (p *StoryPublisher) renderHTML(title, markdown string) ([]byte, error) {
	var body bytes.Buffer
	if err := p.md.Convert([]byte(markdown), &body); err != nil {
		return nil, fmt.Errorf("HTMLの変換に失敗しました: %w", err)
	}

	var out bytes.Buffer
	err := pageTemplate.Execute(&out, struct {
		Title string
		Body  template.HTML
	}{
		Title: title,
		// goldmark は既定で生の HTML を出力しない
		Body: template.HTML(body.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("HTMLの組み立てに失敗しました: %w", err)
	}
	return out.Bytes(), nil
}
