// internal/services/account_service.go
package services

import (
	"fmt"

	"github.com/Corphon/SceneStudio/internal/auth"
	"github.com/Corphon/SceneStudio/internal/identity"
	"github.com/Corphon/SceneStudio/internal/storage"
	"github.com/Corphon/SceneStudio/internal/utils"
)

// AccountService 处理账号级联删除
// 直线步骤序列，短路失败，无补偿：失败前已删除的记录保持已删除
// 每一步自身幂等，部分失败后整体重试是安全的
type AccountService struct {
	store    *storage.DocStore
	blobs    *storage.BlobStore
	identity *identity.Provider
}

// NewAccountService 创建账号服务
func NewAccountService(store *storage.DocStore, blobs *storage.BlobStore, idp *identity.Provider) *AccountService {
	return &AccountService{store: store, blobs: blobs, identity: idp}
}

// DeleteAccount 不可逆地删除用户的全部远端足迹及认证身份
// 顺序：角色（文件→记录）→ 每个项目的子集合 → 项目记录 →
// 设置记录 → 认证身份。身份删除要求新鲜会话，不满足时
// 在最后一步中止并返回可区分的"需要重新认证"错误
func (s *AccountService) DeleteAccount(userID string, token *auth.Token) error {
	if userID == "" {
		return nil
	}

	if err := s.deleteCharacters(userID); err != nil {
		return err
	}
	if err := s.deleteProjects(userID); err != nil {
		return err
	}
	if err := s.store.Delete("users/" + userID); err != nil {
		return err
	}

	return s.identity.DeleteIdentity(userID, token)
}

func (s *AccountService) deleteCharacters(userID string) error {
	charactersPath := fmt.Sprintf("users/%s/characters", userID)
	docs, err := s.store.List(charactersPath)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		if storagePath, _ := doc.Fields["storagePath"].(string); storagePath != "" {
			// 文件已被带外删除不算失败
			if err := s.blobs.Delete(storagePath); err != nil {
				return err
			}
		}
		if err := s.store.Delete(charactersPath + "/" + doc.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *AccountService) deleteProjects(userID string) error {
	projectsPath := fmt.Sprintf("users/%s/projects", userID)
	docs, err := s.store.List(projectsPath)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		basePath := projectsPath + "/" + doc.ID
		for _, child := range projectChildCollections {
			if err := deleteCollectionDocs(s.store, basePath+"/"+child); err != nil {
				return err
			}
		}
		if err := s.store.Delete(basePath); err != nil {
			return err
		}
		utils.GetLogger().Info("账号删除: 项目及子集合已清空", map[string]interface{}{"project_id": doc.ID})
	}
	return nil
}
