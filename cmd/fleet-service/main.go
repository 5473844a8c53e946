package main

import (
	"flag"
	"fmt"

	"github.com/ChakraFleet/ChakraFleet/internal/activity"
	"github.com/ChakraFleet/ChakraFleet/internal/advisor"
	"github.com/ChakraFleet/ChakraFleet/internal/common/config"
	"github.com/ChakraFleet/ChakraFleet/internal/common/db"
	"github.com/ChakraFleet/ChakraFleet/internal/common/logger"
	"github.com/ChakraFleet/ChakraFleet/internal/common/server"
	"github.com/ChakraFleet/ChakraFleet/internal/common/tracing"
	"github.com/ChakraFleet/ChakraFleet/internal/export"
	"github.com/ChakraFleet/ChakraFleet/internal/housekeeping"
	"github.com/ChakraFleet/ChakraFleet/internal/job"
	"github.com/ChakraFleet/ChakraFleet/internal/user"
	"github.com/ChakraFleet/ChakraFleet/internal/vehicle"
	"github.com/gin-gonic/gin"
)

var (
	configPath  = flag.String("config", "configs/fleet-service.json", "配置文件路径")
	consulHost  = flag.String("consul-host", "", "从 Consul KV 拉取配置时的 Consul 地址")
	consulPort  = flag.Int("consul-port", 8500, "Consul 端口")
	consulKVKey = flag.String("consul-kv-key", "", "Consul KV 配置 key，设置后优先于本地文件")
)

func main() {
	flag.Parse()

	// 加载配置：优先 Consul KV，其次本地文件
	var (
		cfg *config.Config
		err error
	)
	if *consulKVKey != "" {
		cfg, err = config.LoadConfigFromConsulKV(*consulHost, *consulPort, *consulKVKey)
	} else {
		cfg, err = config.LoadConfig(*configPath)
	}
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 初始化日志
	log, err := logger.NewLogger(cfg.Log.Driver, cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	// 初始化链路追踪
	tracer, closer, err := tracing.InitTracer(
		cfg.Server.Name,
		cfg.Jaeger.Endpoint,
		cfg.Jaeger.Sampler,
	)
	if err != nil {
		log.Warnf("failed to init tracer: %v", err)
	} else {
		defer closer.Close()
	}
	_ = tracer

	// 数据库
	gormDB, err := db.NewMySQL(
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Database,
		cfg.Database.MaxIdle,
		cfg.Database.MaxOpen,
	)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if err := gormDB.AutoMigrate(
		&user.User{},
		&vehicle.Vehicle{},
		&vehicle.TypeDefinition{},
		&job.Job{},
		&activity.Log{},
	); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	// 仓储与服务装配
	userRepo := user.NewRepo(gormDB)
	vehicleRepo := vehicle.NewRepo(gormDB)
	jobRepo := job.NewRepo(gormDB)
	activityRepo := activity.NewRepo(gormDB)
	recorder := activity.NewRecorder(activityRepo, log)

	userSvc := user.NewService(userRepo, cfg.Auth, recorder)
	jobSvc := job.NewService(jobRepo, userRepo, vehicleRepo, recorder)
	advisorClient := advisor.NewClient(cfg.Advisor, log)

	userHandler := user.NewHandler(userSvc)
	vehicleHandler := vehicle.NewHandler(vehicleRepo)
	jobHandler := job.NewHandler(jobSvc, activityRepo)
	activityHandler := activity.NewHandler(activityRepo, userRepo)
	advisorHandler := advisor.NewHandler(advisorClient, jobRepo, userRepo, vehicleRepo)
	exportHandler := export.NewHandler(export.NewExporter(jobRepo, userRepo, vehicleRepo))

	// 后台例行任务
	sweeper := housekeeping.NewSweeper(cfg.Housekeeping, jobSvc, userRepo, log)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("failed to start housekeeping: %v", err)
	}
	defer sweeper.Stop()

	// 启动统一的 HTTP 服务模板
	if err := server.RunHTTPServer(cfg, log, func(r *gin.Engine) error {
		userHandler.RegisterRoutes(r)
		vehicleHandler.RegisterRoutes(r)
		jobHandler.RegisterRoutes(r)
		jobHandler.RegisterFeed(r)
		activityHandler.RegisterRoutes(r)
		advisorHandler.RegisterRoutes(r)
		exportHandler.RegisterRoutes(r)
		return nil
	}); err != nil {
		log.Fatalf("fleet-service exited with error: %v", err)
	}
}
