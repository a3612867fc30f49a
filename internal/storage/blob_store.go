// internal/storage/blob_store.go
package storage

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	apperrors "github.com/Corphon/SceneStudio/internal/errors"
)

// BlobRef 上传完成后返回的可解析引用
type BlobRef struct {
	StoragePath string `json:"storagePath"` // 删除文件所需的不透明句柄
	DownloadURL string `json:"downloadUrl"` // 已解析的公开下载地址
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// blobMeta 随文件保存的元信息
type blobMeta struct {
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	UploadedAt  int64  `json:"uploaded_at"`
}

// BlobStore 提供二进制对象存储
// 存储路径形如 users/{uid}/characters/{ts}-{suffix}-{name}
type BlobStore struct {
	BaseDir string
	BaseURL string // 下载地址前缀，例如 /blobs

	metaCache *gocache.Cache
}

var whitespacePattern = regexp.MustCompile(`\s+`)

// NewBlobStore 创建对象存储
func NewBlobStore(baseDir, baseURL string) (*BlobStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("创建对象存储目录失败: %w", err)
	}

	return &BlobStore{
		BaseDir:   baseDir,
		BaseURL:   strings.TrimSuffix(baseURL, "/"),
		metaCache: gocache.New(cacheExpiry, cacheCleanup),
	}, nil
}

// BuildStoragePath 为上传文件生成存储路径
// 时间戳+随机后缀避免同名文件互相覆盖
func BuildStoragePath(userID, fileName string) string {
	sanitized := whitespacePattern.ReplaceAllString(filepath.Base(fileName), "-")
	buf := make([]byte, 3)
	rand.Read(buf)
	return fmt.Sprintf("users/%s/characters/%d-%x-%s", userID, time.Now().UnixMilli(), buf, sanitized)
}

// Upload 保存对象内容并返回可解析的下载引用
func (bs *BlobStore) Upload(userID, fileName, contentType string, data []byte) (*BlobRef, error) {
	if userID == "" || fileName == "" {
		return nil, apperrors.NewValidationError("上传缺少用户或文件名", nil)
	}

	storagePath := BuildStoragePath(userID, fileName)
	fullPath := filepath.Join(bs.BaseDir, filepath.FromSlash(storagePath))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("创建目录失败: %w", err)
	}

	// 原子性写入
	tempPath := fullPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return nil, fmt.Errorf("保存临时文件失败: %w", err)
	}
	if err := os.Rename(tempPath, fullPath); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("保存对象失败: %w", err)
	}

	meta := blobMeta{
		ContentType: contentType,
		Size:        int64(len(data)),
		UploadedAt:  time.Now().UnixMilli(),
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("序列化对象元信息失败: %w", err)
	}
	if err := os.WriteFile(fullPath+".meta", metaBytes, 0644); err != nil {
		return nil, fmt.Errorf("保存对象元信息失败: %w", err)
	}
	bs.metaCache.SetDefault(storagePath, &meta)

	return &BlobRef{
		StoragePath: storagePath,
		DownloadURL: bs.DownloadURL(storagePath),
		ContentType: contentType,
		Size:        meta.Size,
	}, nil
}

// DownloadURL 解析存储路径对应的下载地址
func (bs *BlobStore) DownloadURL(storagePath string) string {
	return bs.BaseURL + "/" + storagePath
}

// Open 读取对象内容及其内容类型
func (bs *BlobStore) Open(storagePath string) ([]byte, string, error) {
	fullPath, err := bs.resolve(storagePath)
	if err != nil {
		return nil, "", err
	}

	data, err := os.ReadFile(fullPath)
	if os.IsNotExist(err) {
		return nil, "", apperrors.NewNotFoundError(fmt.Sprintf("对象不存在: %s", storagePath), err)
	}
	if err != nil {
		return nil, "", fmt.Errorf("读取对象失败: %w", err)
	}

	meta := bs.loadMeta(storagePath, fullPath)
	return data, meta.ContentType, nil
}

// Delete 删除对象，对象不存在视为成功
// 已经消失的对象不算失败（与账号删除的语义一致）
func (bs *BlobStore) Delete(storagePath string) error {
	fullPath, err := bs.resolve(storagePath)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除对象失败: %w", err)
	}
	if err := os.Remove(fullPath + ".meta"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除对象元信息失败: %w", err)
	}

	bs.metaCache.Delete(storagePath)
	return nil
}

// Exists 检查对象是否存在
func (bs *BlobStore) Exists(storagePath string) bool {
	fullPath, err := bs.resolve(storagePath)
	if err != nil {
		return false
	}
	_, statErr := os.Stat(fullPath)
	return statErr == nil
}

func (bs *BlobStore) loadMeta(storagePath, fullPath string) *blobMeta {
	if cached, ok := bs.metaCache.Get(storagePath); ok {
		return cached.(*blobMeta)
	}

	meta := &blobMeta{ContentType: "application/octet-stream"}
	if data, err := os.ReadFile(fullPath + ".meta"); err == nil {
		json.Unmarshal(data, meta)
	}
	bs.metaCache.SetDefault(storagePath, meta)
	return meta
}

// resolve 校验存储路径并映射到文件系统路径
func (bs *BlobStore) resolve(storagePath string) (string, error) {
	if storagePath == "" {
		return "", apperrors.NewValidationError("存储路径为空", nil)
	}
	if _, err := splitPath(storagePath); err != nil {
		return "", err
	}
	return filepath.Join(bs.BaseDir, filepath.FromSlash(storagePath)), nil
}
