package runner

import "time"

// DeferredCommand 预约命令记录
// 每台主机至多一条；新的登记整体覆盖旧记录；客户端下次启动取走即删除
type DeferredCommand struct {
	Hostname   string    `json:"hostname"`    // 主机名
	RawContent string    `json:"raw_content"` // 原始命令串(与提交格式一致)
	CreatedAt  time.Time `json:"created_at"`  // 登记时间
}
