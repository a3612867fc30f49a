// internal/api/settings_handlers.go
package api

import (
	"github.com/gin-gonic/gin"
)

// GetSettings 获取当前用户设置（secret key 已掩码）
func (h *Handler) GetSettings(c *gin.Context) {
	userID := c.GetString("user_id")

	view, err := h.Settings.Get(userID)
	if err != nil {
		h.Response.FromError(c, err, "获取设置失败")
		return
	}

	h.Response.Success(c, view)
}

// SaveKlingKey 保存 Kling API 凭证
func (h *Handler) SaveKlingKey(c *gin.Context) {
	userID := c.GetString("user_id")

	var req struct {
		AccessKey string `json:"accessKey" binding:"required"`
		SecretKey string `json:"secretKey" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求参数错误", err.Error())
		return
	}

	if err := h.Settings.SaveKlingKey(userID, req.AccessKey, req.SecretKey); err != nil {
		h.Response.FromError(c, err, "保存密钥失败")
		return
	}

	h.Response.Success(c, nil, "密钥已保存")
}

// DeleteKlingKey 删除 Kling API 凭证
func (h *Handler) DeleteKlingKey(c *gin.Context) {
	userID := c.GetString("user_id")

	if err := h.Settings.DeleteKlingKey(userID); err != nil {
		h.Response.FromError(c, err, "删除密钥失败")
		return
	}

	h.Response.Success(c, nil, "密钥已删除")
}
