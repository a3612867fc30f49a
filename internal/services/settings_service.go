// internal/services/settings_service.go
package services

import (
	"encoding/json"
	"time"

	apperrors "github.com/Corphon/SceneStudio/internal/errors"
	"github.com/Corphon/SceneStudio/internal/models"
	"github.com/Corphon/SceneStudio/internal/storage"
)

// SettingsService 处理用户设置（users/{uid} 记录）
// 首次保存密钥时隐式创建记录（upsert），删除密钥只移除字段
type SettingsService struct {
	store *storage.DocStore
}

// NewSettingsService 创建设置服务
func NewSettingsService(store *storage.DocStore) *SettingsService {
	return &SettingsService{store: store}
}

func settingsPath(userID string) string {
	return "users/" + userID
}

// SettingsView 面向展示层的设置视图
// secret key 只以掩码形式离开本服务
type SettingsView struct {
	APIKeys struct {
		Kling *struct {
			AccessKey       string `json:"accessKey"`
			SecretKeyMasked string `json:"secretKeyMasked"`
		} `json:"kling,omitempty"`
	} `json:"apiKeys"`
	UpdatedAt int64 `json:"updatedAt"`
}

// Get 读取设置，记录不存在时返回空设置
// access key 原样返回，secret key 掩码为仅显示末4位
func (s *SettingsService) Get(userID string) (*SettingsView, error) {
	view := &SettingsView{}
	if userID == "" {
		return view, nil
	}

	doc, err := s.store.Get(settingsPath(userID))
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return view, nil
		}
		return nil, err
	}

	var settings models.UserSettings
	data, err := json.Marshal(doc.Fields)
	if err != nil {
		return nil, apperrors.WrapError(err, "序列化设置失败", apperrors.ErrorTypeError)
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, apperrors.WrapError(err, "解析设置失败", apperrors.ErrorTypeError)
	}

	view.UpdatedAt = settings.UpdatedAt
	if settings.APIKeys.Kling != nil {
		view.APIKeys.Kling = &struct {
			AccessKey       string `json:"accessKey"`
			SecretKeyMasked string `json:"secretKeyMasked"`
		}{
			AccessKey:       settings.APIKeys.Kling.AccessKey,
			SecretKeyMasked: models.MaskSecret(settings.APIKeys.Kling.SecretKey),
		}
	}
	return view, nil
}

// SaveKlingKey 保存 Kling 凭证对（upsert 语义）
// 缺少用户或任一密钥时静默空操作
func (s *SettingsService) SaveKlingKey(userID, accessKey, secretKey string) error {
	if userID == "" || accessKey == "" || secretKey == "" {
		return nil
	}

	return s.store.Set(settingsPath(userID), map[string]interface{}{
		"apiKeys": map[string]interface{}{
			"kling": map[string]interface{}{
				"accessKey": accessKey,
				"secretKey": secretKey,
			},
		},
		"updatedAt": time.Now().UnixMilli(),
	})
}

// DeleteKlingKey 移除 Kling 凭证字段，保留记录本身
func (s *SettingsService) DeleteKlingKey(userID string) error {
	if userID == "" {
		return nil
	}

	return s.store.Set(settingsPath(userID), map[string]interface{}{
		"apiKeys": map[string]interface{}{
			"kling": storage.DeleteField,
		},
		"updatedAt": time.Now().UnixMilli(),
	})
}
