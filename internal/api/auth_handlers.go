// internal/api/auth_handlers.go
package api

import (
	"github.com/gin-gonic/gin"
)

// SignIn 登录并签发令牌
// provider 缺省为匿名登录；相同邮箱的账号复用
func (h *Handler) SignIn(c *gin.Context) {
	var req struct {
		DisplayName string `json:"displayName"`
		Email       string `json:"email"`
		Provider    string `json:"provider"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求参数错误", err.Error())
		return
	}

	account, token, err := h.Identity.SignIn(req.DisplayName, req.Email, req.Provider)
	if err != nil {
		h.Response.FromError(c, err, "登录失败")
		return
	}

	h.Response.Success(c, gin.H{
		"user":  account,
		"token": token,
	}, "登录成功")
}

// SignOut 退出登录
// 令牌是无状态的，服务端不保留会话；客户端丢弃令牌即完成退出
func (h *Handler) SignOut(c *gin.Context) {
	h.Response.Success(c, nil, "已退出登录")
}

// GetCurrentUser 返回当前登录用户的档案
func (h *Handler) GetCurrentUser(c *gin.Context) {
	userID := c.GetString("user_id")

	account, err := h.Identity.GetAccount(userID)
	if err != nil {
		h.Response.FromError(c, err, "获取用户信息失败")
		return
	}

	h.Response.Success(c, account)
}

// DeleteAccount 级联删除用户的全部数据及认证身份
// 会话不够新鲜时返回 REQUIRES_RECENT_LOGIN，已删除的数据保持已删除
func (h *Handler) DeleteAccount(c *gin.Context) {
	userID := c.GetString("user_id")

	if err := h.Account.DeleteAccount(userID, contextToken(c)); err != nil {
		h.Response.FromError(c, err, "删除账号失败")
		return
	}

	// 账号已不存在，同步清除其项目选择
	h.Selection.Set(userID, "")

	h.Response.Success(c, nil, "账号已删除")
}
