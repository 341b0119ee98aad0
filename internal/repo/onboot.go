// 预约命令存储接口
// Redis实现用于生产部署，内存实现用于单实例/测试场景(可在配置文件中二选一)
package repo

import (
	"context"

	runnerModel "linbomaster/internal/model/runner"
)

// OnbootStore 预约命令存储接口
// 每台主机至多一条记录；Put整体覆盖；Delete幂等
type OnbootStore interface {
	// Put 写入(覆盖)主机的预约命令记录
	Put(ctx context.Context, record *runnerModel.DeferredCommand) error
	// Get 读取主机的预约命令记录，不存在时返回nil
	Get(ctx context.Context, hostname string) (*runnerModel.DeferredCommand, error)
	// List 列出全部预约命令记录
	List(ctx context.Context) ([]*runnerModel.DeferredCommand, error)
	// Take 原子取走并删除主机的预约命令记录，不存在时返回nil
	Take(ctx context.Context, hostname string) (*runnerModel.DeferredCommand, error)
	// Delete 删除主机的预约命令记录，记录不存在不算错误
	Delete(ctx context.Context, hostname string) error
}
