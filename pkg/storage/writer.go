// Package storage は生成物（画像・音声・公開ファイル）の永続化を扱います。
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	gcs "cloud.google.com/go/storage"

	"github.com/shouni/go-story-kit/pkg/asset"
)

// OutputWriter はデータを外部ストレージに保存するためのインターフェースです。
type OutputWriter interface {
	Write(ctx context.Context, path string, r io.Reader, contentType string) error
}

// LocalWriter はローカルファイルシステムに書き込みます。
type LocalWriter struct{}

func NewLocalWriter() *LocalWriter {
	return &LocalWriter{}
}

func (w *LocalWriter) Write(_ context.Context, path string, r io.Reader, _ string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ディレクトリの作成に失敗しました (%s): %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ファイルの作成に失敗しました (%s): %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("ファイルの書き込みに失敗しました (%s): %w", path, err)
	}
	return f.Close()
}

// GCSWriter は Google Cloud Storage に書き込みます。
type GCSWriter struct {
	client *gcs.Client
}

// NewGCSWriter はアプリケーションデフォルト認証情報で GCS クライアントを生成します。
func NewGCSWriter(ctx context.Context) (*GCSWriter, error) {
	c, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("GCS クライアントの初期化に失敗しました: %w", err)
	}
	return &GCSWriter{client: c}, nil
}

func (w *GCSWriter) Write(ctx context.Context, path string, r io.Reader, contentType string) error {
	bucket, object, err := asset.SplitGCSURI(path)
	if err != nil {
		return err
	}

	ow := w.client.Bucket(bucket).Object(object).NewWriter(ctx)
	ow.ContentType = contentType
	if _, err := io.Copy(ow, r); err != nil {
		_ = ow.Close()
		return fmt.Errorf("GCS への書き込みに失敗しました (%s): %w", path, err)
	}
	if err := ow.Close(); err != nil {
		return fmt.Errorf("GCS オブジェクトの確定に失敗しました (%s): %w", path, err)
	}
	return nil
}

// Close は GCS クライアントを閉じます。
func (w *GCSWriter) Close() error {
	return w.client.Close()
}

// RoutingWriter はパスのスキームに応じてローカルと GCS を振り分けます。
type RoutingWriter struct {
	Local OutputWriter
	GCS   OutputWriter
}

func (w *RoutingWriter) Write(ctx context.Context, path string, r io.Reader, contentType string) error {
	if asset.IsGCS(path) {
		if w.GCS == nil {
			return fmt.Errorf("GCS ライターが設定されていません: %s", path)
		}
		return w.GCS.Write(ctx, path, r, contentType)
	}
	return w.Local.Write(ctx, path, r, contentType)
}
