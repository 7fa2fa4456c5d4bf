package parser

import (
	"strings"
	"unicode/utf8"

	"github.com/shouni/go-story-kit/pkg/domain"
)

const (
	// DefaultDelimiter は生成テキストのページ区切りです。
	DefaultDelimiter = "---PAGE---"
	// DefaultTitleMaxLength 未満の1行目はタイトル行とみなします。
	DefaultTitleMaxLength = 80
	// DefaultTitleMarkup はタイトル判定前に1行目の先頭から取り除く記号です。
	DefaultTitleMarkup = "#*"
)

// Options はページ分割の挙動を制御します。
type Options struct {
	Delimiter      string
	TitleMaxLength int
	TitleMarkup    string
}

// DefaultOptions は既定のページ分割設定を返します。
func DefaultOptions() Options {
	return Options{
		Delimiter:      DefaultDelimiter,
		TitleMaxLength: DefaultTitleMaxLength,
		TitleMarkup:    DefaultTitleMarkup,
	}
}

// Parser は生成テキストをページに分割するインターフェースなのだ。
type Parser interface {
	Parse(rawText string) ([]string, error)
	// Delimiter はテキスト生成時に指示する区切り文字を返します。
	Delimiter() string
}

// PageParser は区切り文字でテキストを分割し、紛れ込んだタイトル行を取り除きます。
type PageParser struct {
	opts Options
}

// NewPageParser は PageParser を初期化します。ゼロ値の項目は既定値で補います。
func NewPageParser(opts Options) *PageParser {
	def := DefaultOptions()
	if opts.Delimiter == "" {
		opts.Delimiter = def.Delimiter
	}
	if opts.TitleMaxLength <= 0 {
		opts.TitleMaxLength = def.TitleMaxLength
	}
	if opts.TitleMarkup == "" {
		opts.TitleMarkup = def.TitleMarkup
	}
	return &PageParser{opts: opts}
}

// Delimiter は使用中の区切り文字を返します。
func (p *PageParser) Delimiter() string {
	return p.opts.Delimiter
}

// Parse はテキストを順序付きのページ本文に分割します。
// 有効なページが1つもない場合は *domain.PageParseError を返します。
func (p *PageParser) Parse(rawText string) ([]string, error) {
	text := LineBreakRegex.ReplaceAllString(rawText, "\n")

	var pages []string
	for _, segment := range strings.Split(text, p.opts.Delimiter) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		pages = append(pages, segment)
	}

	if len(pages) == 0 {
		return nil, &domain.PageParseError{Reason: "有効なページが見つかりませんでした"}
	}

	pages[0] = p.stripTitle(pages[0])
	return pages, nil
}

// stripTitle は複数行の先頭ページで、1行目が短いタイトル風の行であれば取り除きます。
func (p *PageParser) stripTitle(page string) string {
	first, rest, found := strings.Cut(page, "\n")
	if !found {
		return page
	}

	title := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(first), p.opts.TitleMarkup+" \t"))
	if title == "" || utf8.RuneCountInString(title) >= p.opts.TitleMaxLength {
		return page
	}
	return strings.TrimSpace(rest)
}

// ParseIntoPages は既定設定で区切り文字を指定してページ分割を行います。
func ParseIntoPages(rawText, delimiter string) ([]string, error) {
	opts := DefaultOptions()
	opts.Delimiter = delimiter
	return NewPageParser(opts).Parse(rawText)
}
