// internal/collection/collection.go
package collection

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/Corphon/SceneStudio/internal/errors"
	"github.com/Corphon/SceneStudio/internal/storage"
)

// State 表示集合同步的状态机
// Unselected → Loading → Synced，选择键变化时立即回到 Unselected
type State string

const (
	StateUnselected State = "unselected"
	StateLoading    State = "loading"
	StateSynced     State = "synced"
)

// Config 描述一种实体类型的同步参数
// 五种实体类型共享同一个引擎，只有路径模板、排序键、
// 默认字段与解码方式不同
type Config[T any] struct {
	Kind         string // 实体类型名，用于日志与错误信息
	PathTemplate string // 形如 users/{uid}/projects/{pid}/scenes
	NeedsProject bool   // 选择键是否包含项目ID

	Less     func(a, b T) bool
	Defaults func(fields map[string]interface{}, current []T)
	Decode   func(doc storage.Document) (T, error)
}

// Sync 维护一个与远端集合最终一致的有序内存列表
// 写操作直写存储，列表只在订阅扇出回传后更新（无乐观更新）
type Sync[T any] struct {
	store *storage.DocStore
	cfg   Config[T]

	mu      sync.RWMutex
	items   []T
	state   State
	stale   bool
	lastErr error
	path    string

	sub      *storage.Subscription
	loopDone chan struct{}

	// 订阅流出错后的重订阅限流
	retry *rate.Limiter

	// 每次快照替换后的回调（用于推送给展示层）
	onSnapshot func([]T)
}

// New 创建一个集合同步实例，初始为 Unselected 状态
func New[T any](store *storage.DocStore, cfg Config[T]) *Sync[T] {
	return &Sync[T]{
		store: store,
		cfg:   cfg,
		state: StateUnselected,
		retry: rate.NewLimiter(rate.Every(2*time.Second), 3),
	}
}

// OnSnapshot 注册快照替换回调，必须在 Select 之前调用
func (s *Sync[T]) OnSnapshot(fn func([]T)) {
	s.onSnapshot = fn
}

// Select 绑定选择键并建立活跃订阅
// 旧订阅被同步拆除并清空已发布列表，之后才开始填充新数据：
// 任何时刻都不会把旧选择的数据当作新选择的数据展示
func (s *Sync[T]) Select(userID, projectID string) error {
	s.Deselect()

	if userID == "" || (s.cfg.NeedsProject && projectID == "") {
		return nil
	}

	path := expandPath(s.cfg.PathTemplate, userID, projectID)

	s.mu.Lock()
	s.path = path
	s.state = StateLoading
	s.mu.Unlock()

	sub, err := s.store.Subscribe(path)
	if err != nil {
		s.mu.Lock()
		s.path = ""
		s.state = StateUnselected
		s.mu.Unlock()
		return err
	}

	// 初始快照同步消费，Select 返回时列表已就绪
	if snap, ok := <-sub.C(); ok {
		s.apply(snap)
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.sub = sub
	s.loopDone = done
	s.mu.Unlock()

	go s.loop(sub, done)
	return nil
}

// Deselect 同步拆除订阅并把发布列表清空
// 这是正确性要求而不是收尾清理：见 Select 的说明
func (s *Sync[T]) Deselect() {
	s.mu.Lock()
	sub := s.sub
	done := s.loopDone
	s.sub = nil
	s.loopDone = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Close()
		<-done
	}

	s.mu.Lock()
	s.items = nil
	s.state = StateUnselected
	s.stale = false
	s.lastErr = nil
	s.path = ""
	s.mu.Unlock()

	if sub != nil && s.onSnapshot != nil {
		s.onSnapshot(nil)
	}
}

func (s *Sync[T]) loop(sub *storage.Subscription, done chan struct{}) {
	defer close(done)
	for snap := range sub.C() {
		s.apply(snap)
	}
}

// apply 用快照整体替换内存列表（替换而非合并）
// 快照读取失败时保留上一份有效列表并标记过期，限流重试
func (s *Sync[T]) apply(snap storage.Snapshot) {
	if snap.Err != nil {
		s.mu.Lock()
		s.stale = true
		s.lastErr = snap.Err
		path := s.path
		s.mu.Unlock()

		if path != "" && s.retry.Allow() {
			go s.store.Refresh(path)
		}
		return
	}

	items, err := s.decodeAll(snap.Docs)
	if err != nil {
		s.mu.Lock()
		s.stale = true
		s.lastErr = err
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.items = items
	s.state = StateSynced
	s.stale = false
	s.lastErr = nil
	s.mu.Unlock()

	if s.onSnapshot != nil {
		s.onSnapshot(items)
	}
}

func (s *Sync[T]) decodeAll(docs []storage.Document) ([]T, error) {
	items := make([]T, 0, len(docs))
	for _, doc := range docs {
		item, err := s.cfg.Decode(doc)
		if err != nil {
			return nil, fmt.Errorf("解码%s记录失败 %s: %w", s.cfg.Kind, doc.ID, err)
		}
		items = append(items, item)
	}
	sortStable(items, s.cfg.Less)
	return items, nil
}

// Snapshot 返回当前有序列表的副本
func (s *Sync[T]) Snapshot() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// State 返回同步状态
func (s *Sync[T]) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Stale 报告列表是否因订阅流错误而可能过期
func (s *Sync[T]) Stale() (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stale, s.lastErr
}

// ---------------------------------------------------
// 写操作：全部直写存储，经扇出回传后列表才更新
// ---------------------------------------------------

// Create 应用默认字段并写入一个新记录，返回生成的键
// 未选择路径时是返回空标识的空操作
func (s *Sync[T]) Create(fields map[string]interface{}) (string, error) {
	path := s.currentPath()
	if path == "" {
		return "", nil
	}

	if fields == nil {
		fields = map[string]interface{}{}
	}

	// 默认值基于调用时刻的存储现状（例如 order = 当前长度）
	// 这是尽力而为的顺序计数，并发写入者之间没有事务保证
	current, err := s.listCurrent(path)
	if err != nil {
		return "", err
	}
	if s.cfg.Defaults != nil {
		s.cfg.Defaults(fields, current)
	}
	if _, ok := fields["createdAt"]; !ok {
		fields["createdAt"] = time.Now().UnixMilli()
	}

	return s.store.Create(path, fields)
}

// Update 合并给定字段到已有记录，缺少键或未选择路径时为空操作
func (s *Sync[T]) Update(id string, fields map[string]interface{}) error {
	path := s.currentPath()
	if path == "" || id == "" {
		return nil
	}
	return s.store.Update(path+"/"+id, fields)
}

// Delete 删除记录，缺少键或未选择路径时为空操作
// 已被移除的记录再次删除不会报错
func (s *Sync[T]) Delete(id string) error {
	path := s.currentPath()
	if path == "" || id == "" {
		return nil
	}
	return s.store.Delete(path + "/" + id)
}

// Reorder 按给定顺序重写每条记录的 order 字段
// orderedIds 必须恰好是当前已知记录集合的一个排列，
// 整体作为一次原子批量更新提交，不存在部分写入的中间状态
func (s *Sync[T]) Reorder(orderedIds []string) error {
	path := s.currentPath()
	if path == "" || len(orderedIds) == 0 {
		return nil
	}

	docs, err := s.store.List(path)
	if err != nil {
		return err
	}

	known := make(map[string]bool, len(docs))
	for _, doc := range docs {
		known[doc.ID] = true
	}
	if len(orderedIds) != len(known) {
		return apperrors.NewValidationError(
			fmt.Sprintf("重排序要求%d条记录的完整排列，收到%d条", len(known), len(orderedIds)), nil)
	}
	seen := make(map[string]bool, len(orderedIds))
	for _, id := range orderedIds {
		if !known[id] {
			return apperrors.NewValidationError(fmt.Sprintf("重排序包含未知记录: %s", id), nil)
		}
		if seen[id] {
			return apperrors.NewValidationError(fmt.Sprintf("重排序包含重复记录: %s", id), nil)
		}
		seen[id] = true
	}

	ops := make([]storage.BatchOp, len(orderedIds))
	for index, id := range orderedIds {
		ops[index] = storage.BatchOp{
			Path:   path + "/" + id,
			Fields: map[string]interface{}{"order": index},
		}
	}
	return s.store.ApplyBatch(ops)
}

func (s *Sync[T]) currentPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

func (s *Sync[T]) listCurrent(path string) ([]T, error) {
	docs, err := s.store.List(path)
	if err != nil {
		return nil, err
	}
	return s.decodeAll(docs)
}

// ---------------------------------------------------
// 辅助函数
// ---------------------------------------------------

func expandPath(template, userID, projectID string) string {
	replacer := strings.NewReplacer("{uid}", userID, "{pid}", projectID)
	return replacer.Replace(template)
}

// DecodeJSON 通用解码：字段集经 JSON round-trip 映射到实体类型，
// 存储分配的键写入 id 字段
func DecodeJSON[T any](doc storage.Document) (T, error) {
	var item T

	fields := make(map[string]interface{}, len(doc.Fields)+1)
	for k, v := range doc.Fields {
		fields[k] = v
	}
	fields["id"] = doc.ID

	data, err := json.Marshal(fields)
	if err != nil {
		return item, err
	}
	if err := json.Unmarshal(data, &item); err != nil {
		return item, err
	}
	return item, nil
}

func sortStable[T any](items []T, less func(a, b T) bool) {
	if less == nil {
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		return less(items[i], items[j])
	})
}
