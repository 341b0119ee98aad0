/**
 * 仓库层:预约命令数据访问
 * @author: amolani
 * @date: 2026.07.17
 * @description: 预约命令记录的内存存储(适合单实例部署和测试)
 * @func: 单纯数据访问,不应该包含业务逻辑
 * @note: 和 internal/repo/redis/onboot.go 保持一致(可在配置文件中配置,二选一)
 */
package memory

import (
	"context"
	"sort"
	"sync"

	runnerModel "linbomaster/internal/model/runner"
)

// OnbootStore 预约命令内存存储
type OnbootStore struct {
	records map[string]*runnerModel.DeferredCommand
	mutex   sync.RWMutex
}

// NewOnbootStore 创建预约命令内存存储实例
func NewOnbootStore() *OnbootStore {
	return &OnbootStore{
		records: make(map[string]*runnerModel.DeferredCommand),
	}
}

// Put 写入(覆盖)主机的预约命令记录
func (s *OnbootStore) Put(ctx context.Context, record *runnerModel.DeferredCommand) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	copied := *record
	s.records[record.Hostname] = &copied
	return nil
}

// Get 读取主机的预约命令记录
func (s *OnbootStore) Get(ctx context.Context, hostname string) (*runnerModel.DeferredCommand, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	record, exists := s.records[hostname]
	if !exists {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

// List 列出全部预约命令记录(按主机名排序，保证输出稳定)
func (s *OnbootStore) List(ctx context.Context) ([]*runnerModel.DeferredCommand, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	records := make([]*runnerModel.DeferredCommand, 0, len(s.records))
	for _, record := range s.records {
		copied := *record
		records = append(records, &copied)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Hostname < records[j].Hostname
	})
	return records, nil
}

// Take 取走并删除主机的预约命令记录
// 读删在同一把锁内完成，并发取走时至多一方拿到记录
func (s *OnbootStore) Take(ctx context.Context, hostname string) (*runnerModel.DeferredCommand, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	record, exists := s.records[hostname]
	if !exists {
		return nil, nil
	}
	delete(s.records, hostname)
	copied := *record
	return &copied, nil
}

// Delete 删除主机的预约命令记录(幂等)
func (s *OnbootStore) Delete(ctx context.Context, hostname string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.records, hostname)
	return nil
}
