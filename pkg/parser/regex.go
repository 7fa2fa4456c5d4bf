package parser

import "regexp"

var (
	// LineBreakRegex は CRLF / CR を LF に正規化するために使用します。
	LineBreakRegex = regexp.MustCompile(`\r\n?`)
)
