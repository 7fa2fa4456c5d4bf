package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/shouni/go-story-kit/pkg/asset"
	"github.com/shouni/go-story-kit/pkg/domain"
)

// BlobUploader は画像を保存して参照可能な URL を返します。
type BlobUploader interface {
	Upload(ctx context.Context, base64Payload, ownerID string) (string, error)
}

// AudioStore は音声を保存して参照可能な URL を返します。
type AudioStore interface {
	PersistAudio(ctx context.Context, base64Payload, mimeType string) (string, error)
}

const anonymousOwner = "anonymous"

// BlobStore は OutputWriter の上に BlobUploader と AudioStore を実装します。
type BlobStore struct {
	writer     OutputWriter
	baseDir    string
	publicBase string
}

// NewBlobStore は BlobStore を生成します。
// baseDir はローカルディレクトリか gs://bucket/prefix、publicBase はローカル保存時の公開URLです。
func NewBlobStore(writer OutputWriter, baseDir, publicBase string) *BlobStore {
	return &BlobStore{
		writer:     writer,
		baseDir:    baseDir,
		publicBase: publicBase,
	}
}

// Upload は base64 の画像を images/{owner}/ 配下に保存します。
func (s *BlobStore) Upload(ctx context.Context, base64Payload, ownerID string) (string, error) {
	if strings.TrimSpace(ownerID) == "" {
		return "", &domain.StorageError{Op: "upload", Err: domain.ErrSignInRequired}
	}
	return s.put(ctx, "upload", asset.DefaultImageDir, ownerID, base64Payload, "")
}

// PersistAudio は base64 の音声を audio/{owner}/ 配下に保存します。
// 所有者は context の Principal から決め、なければ anonymous とします。
func (s *BlobStore) PersistAudio(ctx context.Context, base64Payload, mimeType string) (string, error) {
	owner := anonymousOwner
	if p, ok := domain.PrincipalFromContext(ctx); ok {
		owner = p.ID
	}
	return s.put(ctx, "persist-audio", asset.DefaultAudioDir, owner, base64Payload, mimeType)
}

func (s *BlobStore) put(ctx context.Context, op, dir, owner, base64Payload, mimeType string) (string, error) {
	data, embeddedType, err := DecodePayload(base64Payload)
	if err != nil {
		return "", &domain.StorageError{Op: op, Err: err}
	}
	if mimeType == "" {
		mimeType = embeddedType
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	name := uuid.NewString() + extensionFor(mimeType)
	dirPath, err := asset.ResolveOutputPath(s.baseDir, path.Join(dir, owner))
	if err != nil {
		return "", &domain.StorageError{Op: op, Err: err}
	}
	fullPath, err := asset.ResolveOutputPath(dirPath, name)
	if err != nil {
		return "", &domain.StorageError{Op: op, Err: err}
	}

	if err := s.writer.Write(ctx, fullPath, bytes.NewReader(data), mimeType); err != nil {
		return "", &domain.StorageError{Op: op, Err: err}
	}

	u, err := asset.PublicURL(fullPath, s.baseDir, s.publicBase)
	if err != nil {
		return "", &domain.StorageError{Op: op, Err: err}
	}
	slog.DebugContext(ctx, "メディアを保存しました", "path", fullPath, "bytes", len(data), "mime", mimeType)
	return u, nil
}

// DecodePayload は base64 文字列（data URL 形式も可）をデコードします。
// data URL の場合は埋め込まれた MIME タイプも返します。
func DecodePayload(payload string) ([]byte, string, error) {
	payload = strings.TrimSpace(payload)
	var mimeType string
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		header, body, found := strings.Cut(rest, ",")
		if !found {
			return nil, "", fmt.Errorf("data URL の形式が不正です")
		}
		mimeType, _, _ = strings.Cut(header, ";")
		payload = body
	}
	if payload == "" {
		return nil, "", domain.ErrEmptyPayload
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("base64 のデコードに失敗しました: %w", err)
	}
	if len(data) == 0 {
		return nil, "", domain.ErrEmptyPayload
	}
	return data, mimeType, nil
}

var preferredExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"audio/mpeg": ".mp3",
	"audio/wav":  ".wav",
	"audio/ogg":  ".ogg",
}

func extensionFor(mimeType string) string {
	base, _, _ := strings.Cut(strings.ToLower(mimeType), ";")
	base = strings.TrimSpace(base)
	if ext, ok := preferredExtensions[base]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(base); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
