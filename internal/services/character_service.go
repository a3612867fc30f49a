// internal/services/character_service.go
package services

import (
	"time"

	"github.com/Corphon/SceneStudio/internal/collection"
	apperrors "github.com/Corphon/SceneStudio/internal/errors"
	"github.com/Corphon/SceneStudio/internal/models"
	"github.com/Corphon/SceneStudio/internal/storage"
)

// CharacterService 处理角色图片的业务逻辑
// 角色记录与底层图片文件必须同生共死：
// 删除时先删文件（容忍已不存在）再删记录
type CharacterService struct {
	store *storage.DocStore
	blobs *storage.BlobStore
}

// NewCharacterService 创建角色服务
func NewCharacterService(store *storage.DocStore, blobs *storage.BlobStore) *CharacterService {
	return &CharacterService{store: store, blobs: blobs}
}

func (s *CharacterService) characters(userID string) (*collection.Sync[models.Character], error) {
	c := collection.NewCharacters(s.store)
	if err := c.Select(userID, ""); err != nil {
		return nil, err
	}
	return c, nil
}

// List 返回用户的角色列表，最新创建的在前
func (s *CharacterService) List(userID string) ([]models.Character, error) {
	c, err := s.characters(userID)
	if err != nil {
		return nil, err
	}
	defer c.Deselect()

	return c.Snapshot(), nil
}

// Upload 保存图片文件并创建角色记录
// name 为空时使用文件名
func (s *CharacterService) Upload(userID, fileName, contentType, name string, data []byte) (string, error) {
	if userID == "" || fileName == "" || len(data) == 0 {
		return "", nil
	}

	ref, err := s.blobs.Upload(userID, fileName, contentType, data)
	if err != nil {
		return "", err
	}

	if name == "" {
		name = fileName
	}

	c, err := s.characters(userID)
	if err != nil {
		return "", err
	}
	defer c.Deselect()

	now := time.Now().UnixMilli()
	return c.Create(map[string]interface{}{
		"name":        name,
		"downloadUrl": ref.DownloadURL,
		"storagePath": ref.StoragePath,
		"createdAt":   now,
		"updatedAt":   now,
	})
}

// Update 部分字段更新，自动刷新 updatedAt
func (s *CharacterService) Update(userID, characterID string, fields map[string]interface{}) error {
	if err := validateFields(fields, map[string]bool{"name": true}); err != nil {
		return err
	}
	if fields == nil {
		fields = map[string]interface{}{}
	}

	c, err := s.characters(userID)
	if err != nil {
		return err
	}
	defer c.Deselect()

	fields["updatedAt"] = time.Now().UnixMilli()
	return c.Update(characterID, fields)
}

// Delete 删除角色记录及其底层图片
// 图片已被带外删除时不算失败（not-found 被容忍），
// 其他文件删除错误会中止操作并保留记录
func (s *CharacterService) Delete(userID, characterID string) error {
	if userID == "" || characterID == "" {
		return nil
	}

	docPath := "users/" + userID + "/characters/" + characterID
	doc, err := s.store.Get(docPath)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil
		}
		return err
	}

	if storagePath, _ := doc.Fields["storagePath"].(string); storagePath != "" {
		if err := s.blobs.Delete(storagePath); err != nil {
			return err
		}
	}

	c, err := s.characters(userID)
	if err != nil {
		return err
	}
	defer c.Deselect()

	return c.Delete(characterID)
}
