// internal/storage/watcher.go
package storage

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Corphon/SceneStudio/internal/utils"
)

// Watcher 监视存储目录的外部写入
// 同一用户可能在多个进程/会话中写同一棵树，
// 非本进程的提交也要触发订阅扇出
type Watcher struct {
	store   *DocStore
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer

	done     chan struct{}
	debounce time.Duration
}

// NewWatcher 创建目录监视器并递归注册现有子目录
func NewWatcher(store *DocStore) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		store:    store,
		watcher:  fw,
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
		debounce: 100 * time.Millisecond,
	}

	err = filepath.WalkDir(store.BaseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
	if err != nil {
		fw.Close()
		return nil, err
	}

	return w, nil
}

// Run 消费事件直到 Close 被调用
func (w *Watcher) Run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			utils.GetLogger().Error("存储目录监视错误", map[string]interface{}{"err": err.Error()})
		case <-w.done:
			return
		}
	}
}

// Close 停止监视
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name := event.Name

	// 新建目录注册进监视
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(name); err == nil && info.IsDir() {
			w.watcher.Add(name)
			return
		}
	}

	// 只关心文档文件的变化，跳过写入中的临时文件
	if !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".tmp") {
		return
	}
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return
	}

	rel, err := filepath.Rel(w.store.BaseDir, filepath.Dir(name))
	if err != nil || rel == "." {
		return
	}
	collectionPath := filepath.ToSlash(rel)

	// 外部写入绕过了进程内缓存
	docPath := collectionPath + "/" + strings.TrimSuffix(filepath.Base(name), ".json")
	w.store.cache.Delete(docPath)

	w.scheduleRefresh(collectionPath)
}

// scheduleRefresh 去抖后扇出，避免批量外部写入造成快照风暴
func (w *Watcher) scheduleRefresh(collectionPath string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[collectionPath]; ok {
		timer.Reset(w.debounce)
		return
	}

	w.pending[collectionPath] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, collectionPath)
		w.mu.Unlock()

		if err := w.store.Refresh(collectionPath); err != nil {
			utils.GetLogger().Error("刷新集合快照失败", map[string]interface{}{"collection": collectionPath, "err": err.Error()})
		}
	})
}
