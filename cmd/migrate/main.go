/*
*
  - 数据库迁移工具
  - @author: amolani
  - @date: 2026.07.26
  - @description: 数据库模型迁移和测试数据初始化工具
  - @usage: go run main.go -env=test -seed=true -drop=true
    -drop
    是否先删除表（危险操作）
    -env string
    环境标识 (test, dev, prod) (default "test")
    -seed
    是否填充测试数据 (default true)

示例:
main -env=test -seed=true    # 测试环境迁移并填充数据
main -env=prod -seed=false   # 生产环境仅迁移表结构
*/
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"linbomaster/internal/config"
	fleetModel "linbomaster/internal/model/fleet"
	runnerModel "linbomaster/internal/model/runner"
	"linbomaster/internal/pkg/database"
	"linbomaster/internal/pkg/logger"
)

// MigrateOptions 迁移选项配置
type MigrateOptions struct {
	Environment string // 环境标识: test, dev, prod
	SeedData    bool   // 是否填充测试数据
	DropFirst   bool   // 是否先删除表（危险操作）
}

func main() {
	opts := parseFlags()

	// 加载配置
	cfg, err := config.LoadConfig("", opts.Environment)
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	// 初始化日志管理器
	logManager, err := logger.InitLogger(&cfg.Log)
	if err != nil {
		log.Fatalf("日志初始化失败: %v", err)
	}

	logManager.GetLogger().WithFields(logrus.Fields{
		"path":        "cmd/migrate/main.go",
		"operation":   "database_migration",
		"environment": opts.Environment,
		"func_name":   "main",
	}).Info("开始数据库迁移")

	// 连接数据库
	db, err := database.NewMySQLConnection(&cfg.Database.MySQL)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	if err := performMigration(db, opts, logManager); err != nil {
		log.Fatalf("迁移失败: %v", err)
	}

	if opts.SeedData {
		if err := seedFleetData(db, logManager); err != nil {
			log.Fatalf("测试数据填充失败: %v", err)
		}
	}

	fmt.Println("数据库迁移完成")
	os.Exit(0)
}

func parseFlags() *MigrateOptions {
	opts := &MigrateOptions{}
	flag.StringVar(&opts.Environment, "env", "test", "环境标识 (test, dev, prod)")
	flag.BoolVar(&opts.SeedData, "seed", true, "是否填充测试数据")
	flag.BoolVar(&opts.DropFirst, "drop", false, "是否先删除表（危险操作）")
	flag.Parse()
	return opts
}

// migrationModels 迁移模型清单(依赖顺序)
var migrationModels = []interface{}{
	&fleetModel.Room{},
	&fleetModel.Group{},
	&fleetModel.Host{},
	&runnerModel.Operation{},
	&runnerModel.Session{},
}

// performMigration 执行表结构迁移
func performMigration(db *gorm.DB, opts *MigrateOptions, logManager *logger.LoggerManager) error {
	if opts.DropFirst {
		logManager.GetLogger().WithFields(logrus.Fields{
			"path":      "cmd/migrate/main.go",
			"operation": "drop_tables",
			"func_name": "performMigration",
		}).Warn("先删除现有表")

		// 逆序删除，避免外键依赖问题
		for i := len(migrationModels) - 1; i >= 0; i-- {
			if err := db.Migrator().DropTable(migrationModels[i]); err != nil {
				return fmt.Errorf("删除表失败: %w", err)
			}
		}
	}

	for _, model := range migrationModels {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("模型迁移失败 %T: %w", model, err)
		}
		logManager.GetLogger().WithFields(logrus.Fields{
			"path":      "cmd/migrate/main.go",
			"operation": "migrate_model",
			"model":     fmt.Sprintf("%T", model),
			"func_name": "performMigration",
		}).Info("模型迁移完成")
	}
	return nil
}

// seedFleetData 填充测试机群数据
// 一间教室、一个主机组和两台演示主机，便于本地联调
func seedFleetData(db *gorm.DB, logManager *logger.LoggerManager) error {
	room := &fleetModel.Room{Name: "room101", Description: "Demo classroom"}
	if err := db.Where("name = ?", room.Name).FirstOrCreate(room).Error; err != nil {
		return fmt.Errorf("教室数据填充失败: %w", err)
	}

	group := &fleetModel.Group{Name: "win10-standard", Description: "Standard Windows 10 image group"}
	if err := db.Where("name = ?", group.Name).FirstOrCreate(group).Error; err != nil {
		return fmt.Errorf("主机组数据填充失败: %w", err)
	}

	hosts := []*fleetModel.Host{
		{Hostname: "r101-pc01", MAC: "52:54:00:a1:00:01", IP: "10.0.1.101", Room: room.Name, Group: group.Name},
		{Hostname: "r101-pc02", MAC: "52:54:00:a1:00:02", IP: "10.0.1.102", Room: room.Name, Group: group.Name},
	}
	for _, host := range hosts {
		if err := db.Where("hostname = ?", host.Hostname).FirstOrCreate(host).Error; err != nil {
			return fmt.Errorf("主机数据填充失败 %s: %w", host.Hostname, err)
		}
	}

	logManager.GetLogger().WithFields(logrus.Fields{
		"path":      "cmd/migrate/main.go",
		"operation": "seed_data",
		"func_name": "seedFleetData",
	}).Info("测试数据填充完成")
	return nil
}
