/*
 * @author: amolani
 * @date: 2026.07.14
 * @description: uuid工具包
 * @func: 提供作业/会话标识生成工具函数
 */

package utils

import (
	"crypto/rand"
	"fmt"
)

// GenerateUUID 生成UUID v4（基于随机数）
// 返回标准格式的UUID字符串，如：550e8400-e29b-41d4-a716-446655440000
func GenerateUUID() (string, error) {
	// 生成16字节的随机数
	uuid := make([]byte, 16)
	_, err := rand.Read(uuid)
	if err != nil {
		return "", fmt.Errorf("生成随机数失败: %v", err)
	}

	// 设置版本号（第7字节的高4位设为0100，表示版本4）
	uuid[6] = (uuid[6] & 0x0f) | 0x40

	// 设置变体（第9字节的高2位设为10）
	uuid[8] = (uuid[8] & 0x3f) | 0x80

	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		uuid[0:4], uuid[4:6], uuid[6:8], uuid[8:10], uuid[10:16]), nil
}

// GenerateUUIDWithPrefix 生成带前缀的UUID
// prefix: 前缀字符串
// 返回格式：prefix_uuid，如：op_550e8400-e29b-41d4-a716-446655440000
func GenerateUUIDWithPrefix(prefix string) (string, error) {
	uuid, err := GenerateUUID()
	if err != nil {
		return "", err
	}
	if prefix == "" {
		return uuid, nil
	}
	return fmt.Sprintf("%s_%s", prefix, uuid), nil
}
