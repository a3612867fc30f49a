// internal/identity/identity.go
package identity

import (
	"fmt"
	"time"

	"github.com/Corphon/SceneStudio/internal/auth"
	apperrors "github.com/Corphon/SceneStudio/internal/errors"
	"github.com/Corphon/SceneStudio/internal/models"
	"github.com/Corphon/SceneStudio/internal/storage"
)

// 身份记录所在的集合
const accountsCollection = "accounts"

// 支持的登录方式
const (
	ProviderAnonymous = "anonymous"
	ProviderGoogle    = "google"
)

// Provider 提供身份服务：登录、令牌校验、身份删除
// 身份档案保存在存储的 accounts/{uid} 下
type Provider struct {
	store  *storage.DocStore
	tokens *auth.TokenConfig

	// 身份删除要求的会话新鲜度窗口
	freshness time.Duration
}

// NewProvider 创建身份服务
func NewProvider(store *storage.DocStore, tokens *auth.TokenConfig, freshness time.Duration) *Provider {
	return &Provider{
		store:     store,
		tokens:    tokens,
		freshness: freshness,
	}
}

// SignIn 登录并返回稳定的用户标识、档案与签名令牌
// 相同邮箱的已有账号复用并刷新 lastLogin；匿名登录总是新建账号
func (p *Provider) SignIn(displayName, email, providerName string) (*models.Account, string, error) {
	if providerName == "" {
		providerName = ProviderAnonymous
	}

	account, err := p.findByEmail(email)
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UnixMilli()
	if account == nil {
		fields := map[string]interface{}{
			"displayName": displayName,
			"email":       email,
			"provider":    providerName,
			"createdAt":   now,
			"lastLogin":   now,
		}
		id, err := p.store.Create(accountsCollection, fields)
		if err != nil {
			return nil, "", apperrors.WrapError(err, "创建账号失败", apperrors.ErrorTypeError)
		}
		account = &models.Account{
			ID:          id,
			DisplayName: displayName,
			Email:       email,
			Provider:    providerName,
			CreatedAt:   now,
			LastLogin:   now,
		}
	} else {
		update := map[string]interface{}{"lastLogin": now}
		if displayName != "" {
			update["displayName"] = displayName
		}
		if err := p.store.Update(accountsCollection+"/"+account.ID, update); err != nil {
			return nil, "", apperrors.WrapError(err, "更新登录时间失败", apperrors.ErrorTypeError)
		}
		account.LastLogin = now
	}

	tokenString, err := auth.GenerateToken(account.ID, p.tokens)
	if err != nil {
		return nil, "", apperrors.WrapError(err, "签发令牌失败", apperrors.ErrorTypeError)
	}

	return account, tokenString, nil
}

// Verify 校验令牌并返回其声明
func (p *Provider) Verify(tokenString string) (*auth.Token, error) {
	token, err := auth.ParseToken(tokenString, p.tokens)
	if err != nil {
		return nil, apperrors.NewUnauthorizedError("无效的认证令牌", err)
	}
	return token, nil
}

// GetAccount 读取身份档案
func (p *Provider) GetAccount(userID string) (*models.Account, error) {
	doc, err := p.store.Get(accountsCollection + "/" + userID)
	if err != nil {
		return nil, err
	}
	account, err := decodeAccount(doc)
	if err != nil {
		return nil, apperrors.WrapError(err, "解析账号失败", apperrors.ErrorTypeError)
	}
	return account, nil
}

// DeleteIdentity 删除认证身份本身
// 会话不够新鲜时拒绝，并返回可区分的"需要重新认证"错误：
// 调用方应引导用户重新登录后重试，而不是展示笼统的失败
func (p *Provider) DeleteIdentity(userID string, token *auth.Token) error {
	if token == nil || token.UserID != userID {
		return apperrors.NewUnauthorizedError("令牌与用户不匹配", nil)
	}
	if token.Age() > p.freshness {
		return apperrors.NewRequiresRecentLoginError(
			fmt.Sprintf("删除账号需要%s内的新鲜会话，请重新登录后重试", p.freshness), nil)
	}

	return p.store.Delete(accountsCollection + "/" + userID)
}

func (p *Provider) findByEmail(email string) (*models.Account, error) {
	if email == "" {
		return nil, nil
	}

	docs, err := p.store.List(accountsCollection)
	if err != nil {
		return nil, apperrors.WrapError(err, "读取账号列表失败", apperrors.ErrorTypeError)
	}
	for _, doc := range docs {
		if e, _ := doc.Fields["email"].(string); e == email {
			account, err := decodeAccount(doc)
			if err != nil {
				return nil, err
			}
			return account, nil
		}
	}
	return nil, nil
}

func decodeAccount(doc storage.Document) (*models.Account, error) {
	account := &models.Account{ID: doc.ID}
	account.DisplayName, _ = doc.Fields["displayName"].(string)
	account.Email, _ = doc.Fields["email"].(string)
	account.Provider, _ = doc.Fields["provider"].(string)
	account.CreatedAt = asInt64(doc.Fields["createdAt"])
	account.LastLogin = asInt64(doc.Fields["lastLogin"])
	return account, nil
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}
