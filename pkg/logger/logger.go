package logger

import (
	"log"

	"go.uber.org/zap"
)

// Log 全局日志实例
var Log *zap.Logger

// Init 初始化日志：dev 环境用带颜色的控制台输出，其他环境输出 JSON
func Init(env string) {
	var (
		l   *zap.Logger
		err error
	)

	if env == "dev" {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	Log = l
	zap.ReplaceGlobals(l)
}

// Sync 刷新缓冲区，进程退出前调用
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
