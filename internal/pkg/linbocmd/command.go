/*
 * @author: amolani
 * @date: 2026.07.14
 * @description: LINBO客户端命令的类型化表示
 * @func: 命令种类枚举、参数规则、远程执行参数拼装、序列化
 */
package linbocmd

import (
	"strconv"
	"strings"
)

// Kind 命令种类(封闭词表)
// 远程执行器对Kind做穷举处理，新增命令必须同步扩展paramRules
type Kind string

const (
	KindPartition   Kind = "partition"    // 重建分区表
	KindLabel       Kind = "label"        // 重写分区卷标
	KindFormat      Kind = "format"       // 格式化(可选指定分区号)
	KindInitcache   Kind = "initcache"    // 初始化本地镜像缓存(可选指定传输方式)
	KindSync        Kind = "sync"         // 同步指定操作系统镜像
	KindNew         Kind = "new"          // 格式化后全新同步指定操作系统
	KindStart       Kind = "start"        // 启动指定操作系统
	KindReboot      Kind = "reboot"       // 重启主机
	KindHalt        Kind = "halt"         // 关闭主机
	KindCreateImage Kind = "create_image" // 为指定操作系统制作镜像
	KindUploadImage Kind = "upload_image" // 上传指定操作系统镜像到服务器

	// 修饰标志：不产生远程指令，只改变执行上下文
	KindNoauto     Kind = "noauto"     // 禁用客户端自动作业
	KindDisableGUI Kind = "disablegui" // 禁用客户端图形界面
)

// CacheMethod initcache的镜像传输方式
type CacheMethod string

const (
	CacheRsync     CacheMethod = "rsync"
	CacheMulticast CacheMethod = "multicast"
	CacheTorrent   CacheMethod = "torrent"
)

// paramKind 参数类别
type paramKind int

const (
	paramNone paramKind = iota // 不接受参数
	paramOSRequired            // 必须携带操作系统序号
	paramOSOptional            // 可选分区/系统序号
	paramMethodOptional        // 可选传输方式枚举
)

// paramRules 每种命令的参数规则
var paramRules = map[Kind]paramKind{
	KindPartition:   paramNone,
	KindLabel:       paramNone,
	KindFormat:      paramOSOptional,
	KindInitcache:   paramMethodOptional,
	KindSync:        paramOSRequired,
	KindNew:         paramOSRequired,
	KindStart:       paramOSRequired,
	KindReboot:      paramNone,
	KindHalt:        paramNone,
	KindCreateImage: paramOSRequired,
	KindUploadImage: paramOSRequired,
	KindNoauto:      paramNone,
	KindDisableGUI:  paramNone,
}

// Command 一条原子命令或修饰标志
type Command struct {
	Kind   Kind        // 命令种类
	OS     int         // 操作系统/分区序号(HasOS为true时有效)
	HasOS  bool        // 是否携带序号参数
	Method CacheMethod // initcache传输方式(为空表示未指定)
}

// IsFlag 判断是否为修饰标志
func (c Command) IsFlag() bool {
	return c.Kind == KindNoauto || c.Kind == KindDisableGUI
}

// Token 序列化为单个命令token，如 "sync:1"、"noauto"
func (c Command) Token() string {
	switch {
	case c.HasOS:
		return string(c.Kind) + ":" + strconv.Itoa(c.OS)
	case c.Method != "":
		return string(c.Kind) + ":" + string(c.Method)
	default:
		return string(c.Kind)
	}
}

// RemoteArgs 拼装远程执行参数
// 客户端侧统一通过linbo_cmd入口执行，如 ["linbo_cmd","sync","1"]
// 修饰标志返回nil，由执行器转换为环境变量
func (c Command) RemoteArgs() []string {
	if c.IsFlag() {
		return nil
	}
	args := []string{"linbo_cmd", string(c.Kind)}
	if c.HasOS {
		args = append(args, strconv.Itoa(c.OS))
	} else if c.Method != "" {
		args = append(args, string(c.Method))
	}
	return args
}

// CommandList 一次提交解析出的有序命令序列
// 顺序与提交顺序完全一致，标志保持在原位以保证序列化往返
type CommandList struct {
	Items []Command
}

// Commands 返回所有非标志命令(保持顺序)
func (l CommandList) Commands() []Command {
	out := make([]Command, 0, len(l.Items))
	for _, c := range l.Items {
		if !c.IsFlag() {
			out = append(out, c)
		}
	}
	return out
}

// Flags 返回出现过的修饰标志
func (l CommandList) Flags() []Kind {
	out := make([]Kind, 0, 2)
	for _, c := range l.Items {
		if c.IsFlag() {
			out = append(out, c.Kind)
		}
	}
	return out
}

// HasFlag 判断是否包含指定标志
func (l CommandList) HasFlag(k Kind) bool {
	for _, c := range l.Items {
		if c.IsFlag() && c.Kind == k {
			return true
		}
	}
	return false
}

// String 重新序列化为提交格式的命令串
func (l CommandList) String() string {
	tokens := make([]string, 0, len(l.Items))
	for _, c := range l.Items {
		tokens = append(tokens, c.Token())
	}
	return strings.Join(tokens, ",")
}

// Len 命令序列长度(含标志)
func (l CommandList) Len() int {
	return len(l.Items)
}
