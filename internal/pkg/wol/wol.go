/*
 * @author: amolani
 * @date: 2026.07.15
 * @description: Wake-on-LAN魔术包发送
 * @func: 组包、校验MAC、通过UDP广播发送
 */
package wol

import (
	"fmt"
	"net"
)

// magicPacketLen 魔术包长度：6字节0xFF前导 + 16次重复的目标MAC
const magicPacketLen = 6 + 16*6

// BuildMagicPacket 根据MAC地址组装魔术包
func BuildMagicPacket(mac string) ([]byte, error) {
	hw, err := net.ParseMAC(mac)
	if err != nil {
		return nil, fmt.Errorf("invalid mac address %q: %w", mac, err)
	}
	if len(hw) != 6 {
		return nil, fmt.Errorf("mac address %q is not a 48-bit address", mac)
	}

	packet := make([]byte, 0, magicPacketLen)
	for i := 0; i < 6; i++ {
		packet = append(packet, 0xFF)
	}
	for i := 0; i < 16; i++ {
		packet = append(packet, hw...)
	}
	return packet, nil
}

// Send 向广播地址发送一个魔术包
// broadcastAddr 形如 "255.255.255.255:9" 或子网定向广播地址
// 发送是尽力而为的：不验证主机是否真的被唤醒
func Send(mac, broadcastAddr string) error {
	packet, err := BuildMagicPacket(mac)
	if err != nil {
		return err
	}

	conn, err := net.Dial("udp", broadcastAddr)
	if err != nil {
		return fmt.Errorf("failed to dial wol broadcast %q: %w", broadcastAddr, err)
	}
	defer conn.Close()

	if _, err := conn.Write(packet); err != nil {
		return fmt.Errorf("failed to send magic packet to %q: %w", mac, err)
	}
	return nil
}
