// internal/models/account.go
package models

// Account 认证身份及其档案字段
// 存储路径: accounts/{uid}
type Account struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Provider    string `json:"provider"` // "anonymous" 或 "google"
	CreatedAt   int64  `json:"createdAt"`
	LastLogin   int64  `json:"lastLogin"`
}
