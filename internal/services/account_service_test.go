package services

import (
	"testing"
	"time"

	"github.com/Corphon/SceneStudio/internal/auth"
	apperrors "github.com/Corphon/SceneStudio/internal/errors"
	"github.com/Corphon/SceneStudio/internal/storage"
)

// seedAccountData 预置一个带角色、项目与设置的完整用户
func seedAccountData(t *testing.T, store *storage.DocStore, blobs *storage.BlobStore, userID string) (projectID, storagePath string) {
	t.Helper()

	characters := NewCharacterService(store, blobs)
	if _, err := characters.Upload(userID, "a.png", "image/png", "角色", []byte("x")); err != nil {
		t.Fatalf("上传角色失败: %v", err)
	}
	list, err := characters.List(userID)
	if err != nil {
		t.Fatalf("列出角色失败: %v", err)
	}
	storagePath = list[0].StoragePath

	projects := NewProjectService(store)
	projectID, err = projects.Create(userID, nil)
	if err != nil {
		t.Fatalf("创建项目失败: %v", err)
	}
	scenes := NewSceneService(store)
	if _, err := scenes.Create(userID, projectID, nil); err != nil {
		t.Fatalf("创建场景失败: %v", err)
	}
	generated := NewGeneratedSceneService(store)
	if _, err := generated.Create(userID, projectID, map[string]interface{}{"note": "g"}); err != nil {
		t.Fatalf("创建生成场景失败: %v", err)
	}
	combined := NewCombinedSceneService(store)
	if _, err := combined.Create(userID, projectID, map[string]interface{}{"note": "c"}); err != nil {
		t.Fatalf("创建合成场景失败: %v", err)
	}

	settings := NewSettingsService(store)
	if err := settings.SaveKlingKey(userID, "ak", "sk123456"); err != nil {
		t.Fatalf("保存密钥失败: %v", err)
	}

	return projectID, storagePath
}

func TestDeleteAccountFullCascade(t *testing.T) {
	store := newTestStore(t)
	blobs := newTestBlobStore(t)
	idp := newTestIdentity(t, store, 5*time.Minute)
	svc := NewAccountService(store, blobs, idp)

	account, tokenString, err := idp.SignIn("", "a@example.com", "google")
	if err != nil {
		t.Fatalf("登录失败: %v", err)
	}
	token, err := idp.Verify(tokenString)
	if err != nil {
		t.Fatalf("校验令牌失败: %v", err)
	}

	projectID, storagePath := seedAccountData(t, store, blobs, account.ID)

	if err := svc.DeleteAccount(account.ID, token); err != nil {
		t.Fatalf("删除账号失败: %v", err)
	}

	// 角色文件与记录
	if blobs.Exists(storagePath) {
		t.Error("角色图片应该已删除")
	}
	if docs, _ := store.List("users/" + account.ID + "/characters"); len(docs) != 0 {
		t.Errorf("角色记录应该已清空: %d", len(docs))
	}

	// 项目及子集合
	base := "users/" + account.ID + "/projects"
	if docs, _ := store.List(base); len(docs) != 0 {
		t.Errorf("项目记录应该已清空: %d", len(docs))
	}
	for _, child := range []string{"scenes", "generatedScenes", "combinedScenes"} {
		if docs, _ := store.List(base + "/" + projectID + "/" + child); len(docs) != 0 {
			t.Errorf("子集合 %s 应该已清空: %d", child, len(docs))
		}
	}

	// 设置记录
	if _, err := store.Get("users/" + account.ID); !apperrors.IsNotFoundError(err) {
		t.Errorf("设置记录应该已删除: %v", err)
	}

	// 认证身份
	if _, err := idp.GetAccount(account.ID); !apperrors.IsNotFoundError(err) {
		t.Errorf("认证身份应该已删除: %v", err)
	}
}

func TestDeleteAccountStaleSessionAbortsAtIdentity(t *testing.T) {
	store := newTestStore(t)
	blobs := newTestBlobStore(t)
	idp := newTestIdentity(t, store, 5*time.Minute)
	svc := NewAccountService(store, blobs, idp)

	account, _, err := idp.SignIn("", "a@example.com", "google")
	if err != nil {
		t.Fatalf("登录失败: %v", err)
	}
	seedAccountData(t, store, blobs, account.ID)

	// 一小时前签发的令牌：数据删除照常执行，身份删除在最后一步中止
	staleToken := &auth.Token{
		UserID:    account.ID,
		IssuedAt:  time.Now().Add(-time.Hour).Unix(),
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}

	err = svc.DeleteAccount(account.ID, staleToken)
	if !apperrors.IsRequiresRecentLoginError(err) {
		t.Fatalf("过期会话应该返回需要重新认证错误: %v", err)
	}

	// 失败前的删除保持已删除（无补偿）
	if docs, _ := store.List("users/" + account.ID + "/projects"); len(docs) != 0 {
		t.Errorf("数据删除应该已经生效: %d", len(docs))
	}

	// 身份保留，重新登录后重试可以完成
	if _, err := idp.GetAccount(account.ID); err != nil {
		t.Fatalf("身份应该保留: %v", err)
	}

	_, tokenString, err := idp.SignIn("", "a@example.com", "google")
	if err != nil {
		t.Fatalf("重新登录失败: %v", err)
	}
	freshToken, err := idp.Verify(tokenString)
	if err != nil {
		t.Fatalf("校验令牌失败: %v", err)
	}
	if err := svc.DeleteAccount(account.ID, freshToken); err != nil {
		t.Fatalf("重试删除账号失败: %v", err)
	}
	if _, err := idp.GetAccount(account.ID); !apperrors.IsNotFoundError(err) {
		t.Errorf("重试后身份应该已删除: %v", err)
	}
}

func TestDeleteAccountEmptyUserIsNoop(t *testing.T) {
	store := newTestStore(t)
	blobs := newTestBlobStore(t)
	idp := newTestIdentity(t, store, 5*time.Minute)
	svc := NewAccountService(store, blobs, idp)

	if err := svc.DeleteAccount("", nil); err != nil {
		t.Errorf("空用户应该是空操作: %v", err)
	}
}
