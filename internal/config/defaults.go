package config

import "time"

// 运行器配置缺省值
// 轮询间隔和并发上限参考一间机房(约30台)整房下发时的负载取值
const (
	defaultPollInterval          = 5 * time.Second
	defaultMaxConcurrentSessions = 8
	defaultBusyRetryTicks        = 60
	defaultConnectTimeout        = 10 * time.Second
	defaultCommandTimeout        = 30 * time.Minute
	defaultSessionMaxDuration    = 2 * time.Hour
	defaultHeartbeatStaleAfter   = 10 * time.Minute
	defaultWakeDelay             = 2 * time.Minute
	defaultSSHPort               = 2222
)
