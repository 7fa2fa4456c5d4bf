package domain

import (
	"fmt"
	"strings"
)

// Length は物語の長さを表す列挙型です。
type Length string

const (
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

// 長さごとの目標ページ数
const (
	ShortPageCount  = 2
	MediumPageCount = 4
	LongPageCount   = 6
)

// PageCount は長さに対応する目標ページ数を返します。未知の値は short として扱います。
func (l Length) PageCount() int {
	switch l {
	case LengthMedium:
		return MediumPageCount
	case LengthLong:
		return LongPageCount
	default:
		return ShortPageCount
	}
}

// ParseLength は文字列を Length に変換します。
func ParseLength(s string) (Length, error) {
	switch l := Length(strings.ToLower(strings.TrimSpace(s))); l {
	case LengthShort, LengthMedium, LengthLong:
		return l, nil
	case "":
		return LengthShort, nil
	default:
		return "", fmt.Errorf("不明な長さです: '%s'", s)
	}
}

// StoryGenerationParams は物語生成の入力パラメータです。生成中は変更されません。
type StoryGenerationParams struct {
	Prompt        string `json:"prompt"`
	Length        Length `json:"length"`
	MainCharacter string `json:"main_character"`
	Location      string `json:"location"`
	Theme         string `json:"theme"`
	Topic         string `json:"topic"`
}
