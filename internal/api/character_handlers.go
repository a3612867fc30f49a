// internal/api/character_handlers.go
package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// 上传图片的大小上限
const maxUploadSize = 10 << 20 // 10 MB

// GetCharacters 获取当前用户的角色列表（最新在前）
func (h *Handler) GetCharacters(c *gin.Context) {
	userID := c.GetString("user_id")

	characters, err := h.Characters.List(userID)
	if err != nil {
		h.Response.FromError(c, err, "获取角色列表失败")
		return
	}

	h.Response.Success(c, characters)
}

// UploadCharacter 上传角色图片并创建记录
// multipart 字段: file（必填）、name（可选，缺省用文件名）
func (h *Handler) UploadCharacter(c *gin.Context) {
	userID := c.GetString("user_id")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorFileInvalid, "缺少上传文件", err.Error())
		return
	}
	if fileHeader.Size > maxUploadSize {
		h.Response.Error(c, http.StatusBadRequest, ErrorFileInvalid, "文件超过大小限制")
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		h.Response.Error(c, http.StatusBadRequest, ErrorFileInvalid, "只支持图片文件")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.Response.Error(c, http.StatusInternalServerError, ErrorFileUploadFailed, "读取上传文件失败", err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		h.Response.Error(c, http.StatusInternalServerError, ErrorFileUploadFailed, "读取上传文件失败", err.Error())
		return
	}

	id, err := h.Characters.Upload(userID, fileHeader.Filename, contentType, c.PostForm("name"), data)
	if err != nil {
		h.Response.FromError(c, err, "上传角色失败")
		return
	}

	h.Response.Created(c, gin.H{"id": id}, "角色上传成功")
}

// UpdateCharacter 更新角色信息
func (h *Handler) UpdateCharacter(c *gin.Context) {
	userID := c.GetString("user_id")
	characterID := c.Param("id")

	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		h.Response.BadRequest(c, "请求参数错误", err.Error())
		return
	}

	if err := h.Characters.Update(userID, characterID, fields); err != nil {
		h.Response.FromError(c, err, "更新角色失败")
		return
	}

	h.Response.Success(c, nil, "角色更新成功")
}

// DeleteCharacter 删除角色记录及其图片
func (h *Handler) DeleteCharacter(c *gin.Context) {
	userID := c.GetString("user_id")
	characterID := c.Param("id")

	if err := h.Characters.Delete(userID, characterID); err != nil {
		h.Response.FromError(c, err, "删除角色失败")
		return
	}

	h.Response.Success(c, nil, "角色已删除")
}

// ServeBlob 提供已上传对象的下载
func (h *Handler) ServeBlob(c *gin.Context) {
	storagePath := strings.TrimPrefix(c.Param("path"), "/")

	data, contentType, err := h.Blobs.Open(storagePath)
	if err != nil {
		h.Response.FromError(c, err, "读取文件失败")
		return
	}

	c.Data(http.StatusOK, contentType, data)
}
