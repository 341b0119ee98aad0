/**
 * 仓库层:预约命令数据访问
 * @author: amolani
 * @date: 2026.07.17
 * @description: 预约命令记录的Redis存储(每主机一个key，天然覆盖写)
 * @func: 单纯数据访问,不应该包含业务逻辑
 */
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	runnerModel "linbomaster/internal/model/runner"

	"github.com/go-redis/redis/v8"
)

// onbootKeyPrefix 预约命令key前缀，key形如 linbo:onboot:<hostname>
const onbootKeyPrefix = "linbo:onboot:"

// OnbootStore 预约命令Redis存储
type OnbootStore struct {
	client *redis.Client
}

// NewOnbootStore 创建预约命令Redis存储实例
func NewOnbootStore(client *redis.Client) *OnbootStore {
	return &OnbootStore{client: client}
}

// Put 写入(覆盖)主机的预约命令记录
// SET本身就是原子覆盖，无需额外加锁
func (s *OnbootStore) Put(ctx context.Context, record *runnerModel.DeferredCommand) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal deferred command: %w", err)
	}
	return s.client.Set(ctx, onbootKeyPrefix+record.Hostname, data, 0).Err()
}

// Get 读取主机的预约命令记录
func (s *OnbootStore) Get(ctx context.Context, hostname string) (*runnerModel.DeferredCommand, error) {
	data, err := s.client.Get(ctx, onbootKeyPrefix+hostname).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var record runnerModel.DeferredCommand
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal deferred command for %s: %w", hostname, err)
	}
	return &record, nil
}

// List 列出全部预约命令记录
// SCAN遍历避免KEYS阻塞Redis
func (s *OnbootStore) List(ctx context.Context) ([]*runnerModel.DeferredCommand, error) {
	var records []*runnerModel.DeferredCommand

	iter := s.client.Scan(ctx, 0, onbootKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if err == redis.Nil {
				// 记录刚被客户端取走，跳过
				continue
			}
			return nil, err
		}

		var record runnerModel.DeferredCommand
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal deferred command at %s: %w", iter.Val(), err)
		}
		records = append(records, &record)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// Take 取走并删除主机的预约命令记录
// GETDEL原子完成读删，两个客户端并发拉取时至多一方拿到记录
func (s *OnbootStore) Take(ctx context.Context, hostname string) (*runnerModel.DeferredCommand, error) {
	data, err := s.client.GetDel(ctx, onbootKeyPrefix+hostname).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var record runnerModel.DeferredCommand
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal deferred command for %s: %w", hostname, err)
	}
	return &record, nil
}

// Delete 删除主机的预约命令记录(幂等)
func (s *OnbootStore) Delete(ctx context.Context, hostname string) error {
	return s.client.Del(ctx, onbootKeyPrefix+hostname).Err()
}
