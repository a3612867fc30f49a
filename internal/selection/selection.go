// internal/selection/selection.go
package selection

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const fileName = "selection.json"

// Store 按用户跟踪当前打开的项目，独立于远端存储
// 值持久化到本地文件，跨会话恢复；不做远端校验，
// 过期的ID由消费方通过 Heal 自愈
type Store struct {
	mu       sync.RWMutex
	filePath string
	selected map[string]string // 用户ID → 项目ID
}

// NewStore 创建选择状态存储并从本地文件恢复上次的选择
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	s := &Store{
		filePath: filepath.Join(dataDir, fileName),
		selected: make(map[string]string),
	}

	if data, err := os.ReadFile(s.filePath); err == nil {
		var saved map[string]string
		if json.Unmarshal(data, &saved) == nil {
			for userID, projectID := range saved {
				if projectID != "" {
					s.selected[userID] = projectID
				}
			}
		}
	}

	return s, nil
}

// Get 返回用户当前选择的项目ID，未选择时为空串
func (s *Store) Get(userID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected[userID]
}

// Set 更新用户的选择并持久化，空串表示清除选择
func (s *Store) Set(userID, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if projectID == "" {
		delete(s.selected, userID)
	} else {
		s.selected[userID] = projectID
	}
	return s.persistLocked()
}

// Heal 校验用户当前的选择是否仍在已知项目集合中
// 不在则清除选择并返回 true（"选择的ID在当前项目列表中找不到"
// 等价于"未选择"）
func (s *Store) Heal(userID string, knownProjectIDs []string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	selected := s.selected[userID]
	if selected == "" {
		return false, nil
	}
	for _, id := range knownProjectIDs {
		if id == selected {
			return false, nil
		}
	}

	delete(s.selected, userID)
	return true, s.persistLocked()
}

func (s *Store) persistLocked() error {
	if len(s.selected) == 0 {
		if err := os.Remove(s.filePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("清除选择状态失败: %w", err)
		}
		return nil
	}

	data, err := json.MarshalIndent(s.selected, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化选择状态失败: %w", err)
	}
	if err := os.WriteFile(s.filePath, data, 0644); err != nil {
		return fmt.Errorf("保存选择状态失败: %w", err)
	}
	return nil
}
