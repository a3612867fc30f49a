package services

import (
	"testing"

	apperrors "github.com/Corphon/SceneStudio/internal/errors"
)

func TestSettingsGetEmpty(t *testing.T) {
	store := newTestStore(t)
	svc := NewSettingsService(store)

	// 记录不存在时返回空设置而不是错误
	view, err := svc.Get("u1")
	if err != nil {
		t.Fatalf("获取设置失败: %v", err)
	}
	if view.APIKeys.Kling != nil {
		t.Errorf("空设置不应包含密钥: %+v", view.APIKeys.Kling)
	}
}

func TestKlingKeyRoundTrip(t *testing.T) {
	store := newTestStore(t)
	svc := NewSettingsService(store)

	if err := svc.SaveKlingKey("u1", "access-key-1", "secret-key-abcd1234"); err != nil {
		t.Fatalf("保存密钥失败: %v", err)
	}

	view, err := svc.Get("u1")
	if err != nil {
		t.Fatalf("获取设置失败: %v", err)
	}
	if view.APIKeys.Kling == nil {
		t.Fatal("应该返回已保存的密钥")
	}

	// access key 原样返回，secret key 只露出末4位
	if view.APIKeys.Kling.AccessKey != "access-key-1" {
		t.Errorf("access key 不正确: %s", view.APIKeys.Kling.AccessKey)
	}
	masked := view.APIKeys.Kling.SecretKeyMasked
	if masked == "secret-key-abcd1234" {
		t.Error("secret key 不应明文返回")
	}
	if len(masked) == 0 || masked[len(masked)-4:] != "1234" {
		t.Errorf("掩码应该保留末4位: %s", masked)
	}

	// 明文 secret 仍在存储层，供后续调用方使用
	doc, err := store.Get("users/u1")
	if err != nil {
		t.Fatalf("读取设置记录失败: %v", err)
	}
	apiKeys := doc.Fields["apiKeys"].(map[string]interface{})
	kling := apiKeys["kling"].(map[string]interface{})
	if kling["secretKey"] != "secret-key-abcd1234" {
		t.Errorf("存储层应该保存明文密钥: %v", kling["secretKey"])
	}
}

func TestShortSecretFullyMasked(t *testing.T) {
	store := newTestStore(t)
	svc := NewSettingsService(store)

	if err := svc.SaveKlingKey("u1", "ak", "abcd"); err != nil {
		t.Fatalf("保存密钥失败: %v", err)
	}

	view, err := svc.Get("u1")
	if err != nil {
		t.Fatalf("获取设置失败: %v", err)
	}
	if view.APIKeys.Kling.SecretKeyMasked != "****" {
		t.Errorf("过短的密钥应该完全掩码: %s", view.APIKeys.Kling.SecretKeyMasked)
	}
}

func TestSaveKlingKeyGuards(t *testing.T) {
	store := newTestStore(t)
	svc := NewSettingsService(store)

	// 缺少任一参数时静默空操作
	if err := svc.SaveKlingKey("", "ak", "sk"); err != nil {
		t.Errorf("缺少用户时应该静默成功: %v", err)
	}
	if err := svc.SaveKlingKey("u1", "", "sk"); err != nil {
		t.Errorf("缺少 access key 时应该静默成功: %v", err)
	}
	if err := svc.SaveKlingKey("u1", "ak", ""); err != nil {
		t.Errorf("缺少 secret key 时应该静默成功: %v", err)
	}

	if _, err := store.Get("users/u1"); !apperrors.IsNotFoundError(err) {
		t.Errorf("空操作不应创建记录: %v", err)
	}
}

func TestDeleteKlingKeyKeepsRecord(t *testing.T) {
	store := newTestStore(t)
	svc := NewSettingsService(store)

	if err := svc.SaveKlingKey("u1", "ak", "sk123456"); err != nil {
		t.Fatalf("保存密钥失败: %v", err)
	}
	if err := svc.DeleteKlingKey("u1"); err != nil {
		t.Fatalf("删除密钥失败: %v", err)
	}

	view, err := svc.Get("u1")
	if err != nil {
		t.Fatalf("获取设置失败: %v", err)
	}
	if view.APIKeys.Kling != nil {
		t.Errorf("密钥应该已删除: %+v", view.APIKeys.Kling)
	}

	// 记录本身保留，只移除密钥字段
	if _, err := store.Get("users/u1"); err != nil {
		t.Errorf("设置记录应该保留: %v", err)
	}
}
