/**
 * 模型:机群
 * @author: amolani
 * @date: 2026.07.15
 * @description: 受管客户机、教室、主机组实体
 * @func: Host/Room/Group 三个GORM模型
 */
package fleet

import (
	"linbomaster/internal/model/basemodel"
)

// Host 受管客户机
// 网络启动的无盘工作站，作业下发的最小目标单位
type Host struct {
	basemodel.BaseModel

	Hostname string `json:"hostname" gorm:"uniqueIndex;not null;size:64;comment:主机名"`
	MAC      string `json:"mac" gorm:"uniqueIndex;not null;size:17;comment:硬件地址"`
	IP       string `json:"ip" gorm:"size:45;comment:IP地址"`
	Room     string `json:"room" gorm:"index;size:64;comment:所在教室"`
	Group    string `json:"group" gorm:"index;size:64;column:host_group;comment:所属主机组(决定启动配置)"`
	SSHPort  int    `json:"ssh_port" gorm:"default:0;comment:SSH端口(0表示使用全局默认)"`
	Comment  string `json:"comment" gorm:"size:255;comment:备注"`
}

// TableName 定义表名
func (Host) TableName() string {
	return "hosts"
}

// Room 教室
type Room struct {
	basemodel.BaseModel

	Name        string `json:"name" gorm:"uniqueIndex;not null;size:64;comment:教室名"`
	Description string `json:"description" gorm:"size:255;comment:说明"`
}

// TableName 定义表名
func (Room) TableName() string {
	return "rooms"
}

// Group 主机组
// 同组主机共享同一套启动配置和镜像
type Group struct {
	basemodel.BaseModel

	Name        string `json:"name" gorm:"uniqueIndex;not null;size:64;comment:组名"`
	Description string `json:"description" gorm:"size:255;comment:说明"`
}

// TableName 定义表名
func (Group) TableName() string {
	return "host_groups"
}
