/*
 * @author: amolani
 * @date: 2026.07.14
 * @description: LINBO命令串解析与校验
 * @func: Parse是唯一入口，立即执行和预约执行两条路径共用同一语义
 */
package linbocmd

import (
	"fmt"
	"strconv"
	"strings"
)

// SyntaxError 命令串语法错误
// Position是出错token在命令串中的序号(从0开始)
type SyntaxError struct {
	Token    string // 出错的token原文
	Position int    // token序号
	Reason   string // 具体原因
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid command syntax at token %d (%q): %s", e.Position, e.Token, e.Reason)
}

// Parse 解析命令串为类型化命令序列
// 语法: commands := token (',' token)*  token := name (':' param)?
// 任何未知命令名或参数类型不符都会整体拒绝，不会产生部分结果
func Parse(raw string) (CommandList, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return CommandList{}, &SyntaxError{Token: "", Position: 0, Reason: "empty command string"}
	}

	tokens := strings.Split(trimmed, ",")
	items := make([]Command, 0, len(tokens))

	for i, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			return CommandList{}, &SyntaxError{Token: token, Position: i, Reason: "empty token"}
		}

		name := token
		param := ""
		hasParam := false
		if idx := strings.Index(token, ":"); idx >= 0 {
			name = token[:idx]
			param = token[idx+1:]
			hasParam = true
		}

		kind := Kind(name)
		rule, known := paramRules[kind]
		if !known {
			return CommandList{}, &SyntaxError{Token: token, Position: i, Reason: fmt.Sprintf("unknown command %q", name)}
		}

		cmd := Command{Kind: kind}

		switch rule {
		case paramNone:
			if hasParam {
				return CommandList{}, &SyntaxError{Token: token, Position: i, Reason: fmt.Sprintf("command %q takes no parameter", name)}
			}

		case paramOSRequired:
			if !hasParam {
				return CommandList{}, &SyntaxError{Token: token, Position: i, Reason: fmt.Sprintf("command %q requires an OS index", name)}
			}
			os, err := parseOSIndex(param)
			if err != nil {
				return CommandList{}, &SyntaxError{Token: token, Position: i, Reason: err.Error()}
			}
			cmd.OS = os
			cmd.HasOS = true

		case paramOSOptional:
			if hasParam {
				os, err := parseOSIndex(param)
				if err != nil {
					return CommandList{}, &SyntaxError{Token: token, Position: i, Reason: err.Error()}
				}
				cmd.OS = os
				cmd.HasOS = true
			}

		case paramMethodOptional:
			if hasParam {
				method, err := parseCacheMethod(param)
				if err != nil {
					return CommandList{}, &SyntaxError{Token: token, Position: i, Reason: err.Error()}
				}
				cmd.Method = method
			}
		}

		items = append(items, cmd)
	}

	return CommandList{Items: items}, nil
}

// MustParse 解析命令串，语法错误时panic
// 仅用于测试和写死的内部常量
func MustParse(raw string) CommandList {
	list, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return list
}

// parseOSIndex 解析操作系统序号参数
func parseOSIndex(param string) (int, error) {
	os, err := strconv.Atoi(param)
	if err != nil {
		return 0, fmt.Errorf("parameter %q is not an integer", param)
	}
	if os < 1 {
		return 0, fmt.Errorf("OS index must be >= 1, got %d", os)
	}
	return os, nil
}

// parseCacheMethod 解析initcache传输方式参数
func parseCacheMethod(param string) (CacheMethod, error) {
	switch CacheMethod(param) {
	case CacheRsync, CacheMulticast, CacheTorrent:
		return CacheMethod(param), nil
	default:
		return "", fmt.Errorf("parameter %q is not one of rsync/multicast/torrent", param)
	}
}
