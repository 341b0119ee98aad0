/**
 * 主程序入口
 * @author: amolani
 * @date: 2026.07.25
 * @description: master主程序入口
 * @func: 初始化应用、配置路由、启动服务器、等待中断信号
 */
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"linbomaster/internal/app/master"
)

func main() {
	configPath := flag.String("config", "", "配置文件目录(默认./configs)")
	env := flag.String("env", "", "运行环境(dev/test/prod)")
	flag.Parse()

	// 创建应用实例
	app, err := master.NewApp(*configPath, *env)
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	// 启动后台组件(调度引擎、配置热加载)
	if err := app.Start(); err != nil {
		log.Fatalf("Failed to start app: %v", err)
	}

	// 获取配置和Gin引擎
	config := app.GetConfig()
	engine := app.GetRouter().GetEngine()

	// 创建HTTP服务器
	addr := config.Server.GetAddress()
	server := &http.Server{
		Addr:           addr,
		Handler:        engine,
		ReadTimeout:    config.Server.ReadTimeout,
		WriteTimeout:   config.Server.WriteTimeout,
		IdleTimeout:    config.Server.IdleTimeout,
		MaxHeaderBytes: config.Server.MaxHeaderBytes,
	}

	// 启动服务器的goroutine
	go func() {
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// 给服务器5秒钟的时间来完成现有请求
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	// 停止调度引擎并断开存储连接
	if err := app.Stop(); err != nil {
		log.Printf("Error during app shutdown: %v", err)
	}

	fmt.Println("Server exiting")
}
