package asset

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/shouni/go-utils/urlpath"
)

const (
	// DefaultImageDir は生成された画像を格納するデフォルトのディレクトリ名です。
	DefaultImageDir = "images"
	// DefaultAudioDir は生成された音声を格納するデフォルトのディレクトリ名です。
	DefaultAudioDir = "audio"
	// DefaultStoryJSON は完成した物語のデフォルト JSON ファイル名です。
	DefaultStoryJSON = "story.json"
	// DefaultStoryMarkdown は完成した物語のデフォルト Markdown ファイル名です。
	DefaultStoryMarkdown = "story.md"

	gcsScheme     = "gs://"
	gcsPublicHost = "https://storage.googleapis.com/"
)

// ResolveOutputPath は、ベースとなるディレクトリパスとファイル名から、
// GCS/ローカルを考慮した最終的な出力パスを生成します。
func ResolveOutputPath(baseDir, fileName string) (string, error) {
	return urlpath.ResolvePath(baseDir, fileName)
}

// IsGCS は gs:// 形式のパスかを判定します。
func IsGCS(p string) bool {
	return strings.HasPrefix(strings.ToLower(p), gcsScheme)
}

// SplitGCSURI は gs://bucket/object をバケット名とオブジェクト名に分解します。
func SplitGCSURI(uri string) (bucket, object string, err error) {
	if !IsGCS(uri) {
		return "", "", fmt.Errorf("GCS URI ではありません: %s", uri)
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("無効なGCS URIです: %w", err)
	}
	object = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || object == "" {
		return "", "", fmt.Errorf("バケット名またはオブジェクト名が空です: %s", uri)
	}
	return u.Host, object, nil
}

// PublicURL は保存先パスをブラウザから参照できる URL に変換します。
// gs:// は storage.googleapis.com の公開 URL に、ローカルパスは publicBase 配下の URL にします。
// publicBase が空のローカルパスは file:// URL を返します。
func PublicURL(storedPath, rootDir, publicBase string) (string, error) {
	if IsGCS(storedPath) {
		bucket, object, err := SplitGCSURI(storedPath)
		if err != nil {
			return "", err
		}
		return gcsPublicHost + path.Join(bucket, object), nil
	}

	if publicBase == "" {
		abs, err := filepath.Abs(storedPath)
		if err != nil {
			return "", fmt.Errorf("絶対パスの解決に失敗しました: %w", err)
		}
		return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
	}

	rel, err := filepath.Rel(rootDir, storedPath)
	if err != nil {
		return "", fmt.Errorf("相対パスの解決に失敗しました: %w", err)
	}
	return url.JoinPath(publicBase, filepath.ToSlash(rel))
}
