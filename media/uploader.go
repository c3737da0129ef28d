// Package media 头像等图片的上传与存储
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"moneytrack/config"
	"moneytrack/logger"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

var (
	// ErrTooLarge 文件超过大小限制
	ErrTooLarge = errors.New("file too large")
	// ErrUnsupportedType 不支持的文件类型
	ErrUnsupportedType = errors.New("unsupported image type")
	// ErrEmpty 空文件
	ErrEmpty = errors.New("empty file")
)

// 允许的图片类型及扩展名
var allowedTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Uploader 接收图片并返回可访问的 URL
type Uploader interface {
	Upload(ctx context.Context, r io.Reader) (string, error)
}

// LocalUploader 将图片保存到 afero 文件系统
type LocalUploader struct {
	fs        afero.Fs
	baseURL   string
	urlPrefix string
	maxBytes  int64
}

// NewLocalUploader 创建本地上传器，fs 应以 media.dir 为根
func NewLocalUploader(fs afero.Fs, baseURL string, cfg config.MediaConfig) *LocalUploader {
	return &LocalUploader{
		fs:        fs,
		baseURL:   strings.TrimRight(baseURL, "/"),
		urlPrefix: "/" + strings.Trim(cfg.URLPrefix, "/"),
		maxBytes:  cfg.MaxBytes,
	}
}

// NewDirFs 以目录为根的文件系统，目录不存在时创建
func NewDirFs(dir string) (afero.Fs, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建上传目录失败: %w", err)
	}
	return afero.NewBasePathFs(osFs, dir), nil
}

// Fs 底层文件系统，用于静态文件服务
func (u *LocalUploader) Fs() afero.Fs {
	return u.fs
}

// Upload 校验内容类型与大小后保存，文件名为随机 uuid
func (u *LocalUploader) Upload(ctx context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, u.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("读取文件失败: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if int64(len(data)) > u.maxBytes {
		return "", ErrTooLarge
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	mt := mimetype.Detect(data)
	ext, ok := allowedTypes[mt.String()]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mt.String())
	}

	name := uuid.NewString() + ext
	if err := afero.WriteReader(u.fs, "/"+name, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("保存文件失败: %w", err)
	}

	url := u.baseURL + path.Join(u.urlPrefix, name)
	clog := logger.Component(logger.ComponentMedia)
	clog.Info().Str("file", name).Str("type", mt.String()).Int("bytes", len(data)).Msg("image uploaded")
	return url, nil
}
