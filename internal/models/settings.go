// internal/models/settings.go
package models

// KlingKey Kling API 凭证对
type KlingKey struct {
	AccessKey string `json:"accessKey"`
	SecretKey string `json:"secretKey"`
}

// APIKeys 用户保存的第三方 API 密钥
type APIKeys struct {
	Kling *KlingKey `json:"kling,omitempty"`
}

// UserSettings 每个用户一条的设置记录
// 存储路径: users/{uid}
// 首次保存密钥时隐式创建（upsert 语义）
type UserSettings struct {
	APIKeys   APIKeys `json:"apiKeys"`
	UpdatedAt int64   `json:"updatedAt"`
}

// MaskSecret 将密钥掩码为仅显示末4位
// 展示层永远不应拿到完整的 secret key
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	const visible = 4
	masked := []rune(secret)
	if len(masked) <= visible {
		return "****"
	}
	for i := 0; i < len(masked)-visible; i++ {
		masked[i] = '*'
	}
	return string(masked)
}
