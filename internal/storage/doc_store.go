// internal/storage/doc_store.go
package storage

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	apperrors "github.com/Corphon/SceneStudio/internal/errors"
)

// Document 表示存储中的一条记录，ID 为存储分配的键
type Document struct {
	ID     string
	Fields map[string]interface{}
}

// Snapshot 订阅路径在一次扇出通知时刻的完整内容
// Err 非空表示快照读取失败，订阅方保留上一份有效快照
type Snapshot struct {
	Path string
	Docs []Document
	Err  error
}

// BatchOp 多路径批量更新中的单个操作（合并更新语义）
type BatchOp struct {
	Path   string
	Fields map[string]interface{}
}

// FieldDelete 字段删除哨兵：合并写入时删除对应字段
type FieldDelete struct{}

// DeleteField 在 Set 的合并字段中使用，表示移除该字段
var DeleteField = FieldDelete{}

// DocStore 提供树状结构的文档存储
// 文档路径段数为偶数（users/u1/projects/p1），集合路径为奇数（users/u1/projects）
// 每个文档是 baseDir 下的一个 JSON 文件，子集合是同名目录
type DocStore struct {
	BaseDir string

	// 提交锁：所有写入与扇出在此锁下串行执行，
	// 保证批量更新对订阅方表现为单次原子变更
	mu sync.RWMutex

	// 订阅注册表 collectionPath -> subscriptions
	subMu sync.Mutex
	subs  map[string]map[*Subscription]struct{}

	// 文件内容读缓存
	cache *gocache.Cache
}

// Subscription 表示一个集合路径上的活跃订阅
type Subscription struct {
	path  string
	ch    chan Snapshot
	store *DocStore

	closeOnce sync.Once
}

const (
	cacheExpiry   = 5 * time.Minute
	cacheCleanup  = 10 * time.Minute
	subChanBuffer = 16
)

// NewDocStore 创建文档存储
func NewDocStore(baseDir string) (*DocStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}

	return &DocStore{
		BaseDir: baseDir,
		subs:    make(map[string]map[*Subscription]struct{}),
		cache:   gocache.New(cacheExpiry, cacheCleanup),
	}, nil
}

// ---------------------------------------------------
// 路径处理
// ---------------------------------------------------

func splitPath(path string) ([]string, error) {
	segments := strings.Split(path, "/")
	for _, seg := range segments {
		if seg == "" || seg == "." || seg == ".." || strings.ContainsAny(seg, `\`) {
			return nil, apperrors.NewValidationError(fmt.Sprintf("非法存储路径: %s", path), nil)
		}
	}
	return segments, nil
}

func validateDocPath(path string) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}
	if len(segments)%2 != 0 {
		return apperrors.NewValidationError(fmt.Sprintf("不是文档路径: %s", path), nil)
	}
	return nil
}

func validateCollectionPath(path string) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}
	if len(segments)%2 != 1 {
		return apperrors.NewValidationError(fmt.Sprintf("不是集合路径: %s", path), nil)
	}
	return nil
}

// ParentCollection 返回文档路径所属的集合路径
func ParentCollection(docPath string) string {
	idx := strings.LastIndex(docPath, "/")
	if idx < 0 {
		return ""
	}
	return docPath[:idx]
}

func (ds *DocStore) docFile(docPath string) string {
	return filepath.Join(ds.BaseDir, filepath.FromSlash(docPath)+".json")
}

func (ds *DocStore) collectionDir(collectionPath string) string {
	return filepath.Join(ds.BaseDir, filepath.FromSlash(collectionPath))
}

// NewKey 生成一个存储分配的子键
// 毫秒时间戳前缀保证近似插入序，随机后缀避免同毫秒冲突
func NewKey() string {
	buf := make([]byte, 4)
	rand.Read(buf)
	return fmt.Sprintf("%d-%x", time.Now().UnixMilli(), buf)
}

// ---------------------------------------------------
// 文档操作
// ---------------------------------------------------

// Create 在集合下写入一个新文档并返回生成的键
func (ds *DocStore) Create(collectionPath string, fields map[string]interface{}) (string, error) {
	if err := validateCollectionPath(collectionPath); err != nil {
		return "", err
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	id := NewKey()
	docPath := collectionPath + "/" + id
	if err := ds.writeDocLocked(docPath, fields); err != nil {
		return "", err
	}

	ds.fanOutLocked(collectionPath)
	return id, nil
}

// Get 读取单个文档
func (ds *DocStore) Get(docPath string) (Document, error) {
	if err := validateDocPath(docPath); err != nil {
		return Document{}, err
	}

	ds.mu.RLock()
	defer ds.mu.RUnlock()

	return ds.readDocLocked(docPath)
}

// List 读取集合的当前快照，缺失的集合视为空
func (ds *DocStore) List(collectionPath string) ([]Document, error) {
	if err := validateCollectionPath(collectionPath); err != nil {
		return nil, err
	}

	ds.mu.RLock()
	defer ds.mu.RUnlock()

	return ds.listLocked(collectionPath)
}

// Update 合并更新已存在的文档，未提及的字段保持不变
func (ds *DocStore) Update(docPath string, fields map[string]interface{}) error {
	if err := validateDocPath(docPath); err != nil {
		return err
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	existing, err := ds.readDocLocked(docPath)
	if err != nil {
		return err
	}

	merged := mergeFields(existing.Fields, fields)
	if err := ds.writeDocLocked(docPath, merged); err != nil {
		return err
	}

	ds.fanOutLocked(ParentCollection(docPath))
	return nil
}

// Set 合并写入文档，文档不存在时创建（upsert 语义）
// 字段值为 DeleteField 时移除该字段
func (ds *DocStore) Set(docPath string, fields map[string]interface{}) error {
	if err := validateDocPath(docPath); err != nil {
		return err
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	base := map[string]interface{}{}
	if existing, err := ds.readDocLocked(docPath); err == nil {
		base = existing.Fields
	} else if !apperrors.IsNotFoundError(err) {
		return err
	}

	merged := mergeFields(base, fields)
	if err := ds.writeDocLocked(docPath, merged); err != nil {
		return err
	}

	ds.fanOutLocked(ParentCollection(docPath))
	return nil
}

// Delete 删除文档，文档不存在视为成功（幂等）
// 与 Firestore 一致：不会删除文档下的子集合
func (ds *DocStore) Delete(docPath string) error {
	if err := validateDocPath(docPath); err != nil {
		return err
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	fullPath := ds.docFile(docPath)
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return nil
	}

	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("删除文档失败: %w", err)
	}

	ds.cache.Delete(docPath)
	ds.fanOutLocked(ParentCollection(docPath))
	return nil
}

// ApplyBatch 在一次提交中应用多路径合并更新
// 所有目标文档必须已存在；任一校验失败则整体不写入，
// 订阅方要么看到全部变更要么什么都看不到
func (ds *DocStore) ApplyBatch(ops []BatchOp) error {
	if len(ops) == 0 {
		return nil
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	merged := make([]map[string]interface{}, len(ops))
	for i, op := range ops {
		if err := validateDocPath(op.Path); err != nil {
			return err
		}
		existing, err := ds.readDocLocked(op.Path)
		if err != nil {
			return err
		}
		merged[i] = mergeFields(existing.Fields, op.Fields)
	}

	affected := make(map[string]struct{})
	for i, op := range ops {
		if err := ds.writeDocLocked(op.Path, merged[i]); err != nil {
			return err
		}
		affected[ParentCollection(op.Path)] = struct{}{}
	}

	for collectionPath := range affected {
		ds.fanOutLocked(collectionPath)
	}
	return nil
}

// Refresh 强制对集合路径重新扇出当前快照
// 用于外部写入监视与订阅方的过期重试
func (ds *DocStore) Refresh(collectionPath string) error {
	if err := validateCollectionPath(collectionPath); err != nil {
		return err
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	ds.fanOutLocked(collectionPath)
	return nil
}

// ---------------------------------------------------
// 订阅
// ---------------------------------------------------

// Subscribe 建立对集合路径的活跃订阅
// 初始快照立即投递，之后每次子树提交触发一次扇出
func (ds *DocStore) Subscribe(collectionPath string) (*Subscription, error) {
	if err := validateCollectionPath(collectionPath); err != nil {
		return nil, err
	}

	sub := &Subscription{
		path:  collectionPath,
		ch:    make(chan Snapshot, subChanBuffer),
		store: ds,
	}

	ds.subMu.Lock()
	if ds.subs[collectionPath] == nil {
		ds.subs[collectionPath] = make(map[*Subscription]struct{})
	}
	ds.subs[collectionPath][sub] = struct{}{}
	ds.subMu.Unlock()

	// 投递初始快照。持读锁投递，提交扇出（持写锁）无法
	// 插入到列举与投递之间，初始快照不会落后于后续扇出
	ds.mu.RLock()
	docs, err := ds.listLocked(collectionPath)
	sub.push(Snapshot{Path: collectionPath, Docs: docs, Err: err})
	ds.mu.RUnlock()

	return sub, nil
}

// Close 关闭所有活跃订阅
func (ds *DocStore) Close() {
	ds.subMu.Lock()
	subs := make([]*Subscription, 0)
	for _, set := range ds.subs {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	ds.subMu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

// C 返回快照流通道，订阅关闭时通道关闭
func (s *Subscription) C() <-chan Snapshot {
	return s.ch
}

// Close 同步注销订阅并关闭快照通道
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.store.subMu.Lock()
		if set, ok := s.store.subs[s.path]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.store.subs, s.path)
			}
		}
		s.store.subMu.Unlock()
		close(s.ch)
	})
}

// push 非阻塞投递：缓冲已满时丢弃最旧的快照，
// 订阅方始终能看到最新状态
func (s *Subscription) push(snap Snapshot) {
	for {
		select {
		case s.ch <- snap:
			return
		default:
			select {
			case <-s.ch:
			default:
			}
		}
	}
}

// fanOutLocked 向集合路径的所有订阅方投递当前快照
// 调用方必须持有提交锁，保证投递顺序与提交顺序一致
func (ds *DocStore) fanOutLocked(collectionPath string) {
	ds.subMu.Lock()
	targets := make([]*Subscription, 0, len(ds.subs[collectionPath]))
	for sub := range ds.subs[collectionPath] {
		targets = append(targets, sub)
	}
	ds.subMu.Unlock()

	if len(targets) == 0 {
		return
	}

	docs, err := ds.listLocked(collectionPath)
	snap := Snapshot{Path: collectionPath, Docs: docs, Err: err}

	ds.subMu.Lock()
	for _, sub := range targets {
		if _, ok := ds.subs[collectionPath][sub]; ok {
			sub.push(snap)
		}
	}
	ds.subMu.Unlock()
}

// ---------------------------------------------------
// 文件读写
// ---------------------------------------------------

func (ds *DocStore) readDocLocked(docPath string) (Document, error) {
	var content []byte

	if cached, ok := ds.cache.Get(docPath); ok {
		content = cached.([]byte)
	} else {
		fullPath := ds.docFile(docPath)
		data, err := os.ReadFile(fullPath)
		if os.IsNotExist(err) {
			return Document{}, apperrors.NewNotFoundError(fmt.Sprintf("文档不存在: %s", docPath), err)
		}
		if err != nil {
			return Document{}, fmt.Errorf("读取文档失败: %w", err)
		}
		ds.cache.SetDefault(docPath, data)
		content = data
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(content, &fields); err != nil {
		return Document{}, fmt.Errorf("解析文档失败 %s: %w", docPath, err)
	}

	segments := strings.Split(docPath, "/")
	return Document{ID: segments[len(segments)-1], Fields: fields}, nil
}

func (ds *DocStore) listLocked(collectionPath string) ([]Document, error) {
	dir := ds.collectionDir(collectionPath)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取集合失败: %w", err)
	}

	docs := make([]Document, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		doc, err := ds.readDocLocked(collectionPath + "/" + id)
		if err != nil {
			// 列举过程中消失的文档直接跳过
			if apperrors.IsNotFoundError(err) {
				continue
			}
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// writeDocLocked 原子性写入文档文件（临时文件+重命名）
func (ds *DocStore) writeDocLocked(docPath string, fields map[string]interface{}) error {
	content, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化文档失败: %w", err)
	}

	fullPath := ds.docFile(docPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	tempPath := fullPath + ".tmp"
	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return fmt.Errorf("保存临时文件失败: %w", err)
	}

	if err := os.Rename(tempPath, fullPath); err != nil {
		if removeErr := os.Remove(tempPath); removeErr != nil {
			fmt.Printf("Warning: failed to clean up temporary file %s after rename failure: %v\n", tempPath, removeErr)
		}
		return fmt.Errorf("保存文档失败: %w", err)
	}

	ds.cache.SetDefault(docPath, content)
	return nil
}

// mergeFields 合并部分字段到现有字段集
// 两侧都是对象时递归合并，DeleteField 哨兵移除字段
func mergeFields(base, updates map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(base)+len(updates))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range updates {
		if _, isDelete := v.(FieldDelete); isDelete {
			delete(merged, k)
			continue
		}
		if subUpdates, ok := v.(map[string]interface{}); ok {
			if subBase, ok := merged[k].(map[string]interface{}); ok {
				merged[k] = mergeFields(subBase, subUpdates)
				continue
			}
			merged[k] = mergeFields(map[string]interface{}{}, subUpdates)
			continue
		}
		merged[k] = v
	}
	return merged
}
