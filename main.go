package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/nostria-app/nostria-proxy/internal/blobstore"
	"github.com/nostria-app/nostria-proxy/internal/config"
	"github.com/nostria-app/nostria-proxy/internal/logging"
	"github.com/nostria-app/nostria-proxy/internal/optimize"
	"github.com/nostria-app/nostria-proxy/internal/proxy"
	"github.com/nostria-app/nostria-proxy/internal/server"
	"github.com/nostria-app/nostria-proxy/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["storage_driver"] = cfg.Global.StorageDriver
		fields["container"] = cfg.Global.ContainerName
		fields["credential"] = cfg.Global.HasConnectionString()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	store, err := buildStore(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化存储失败: %v\n", err)
		return 1
	}

	// 启动遵循「配置 → 存储 → 共享 http.Client → 流水线 → Fiber server」顺序，
	// 保证所有请求共享同一份存储句柄与回源客户端。
	httpClient := server.NewUpstreamClient(cfg)
	pipeline := optimize.NewPipeline(httpClient, logger, cfg.Global.MaxSourceSize)
	manager := optimize.NewManager(
		store,
		pipeline,
		logger,
		cfg.Global.StaleAfter.DurationValue(),
		cfg.Global.CacheControl(),
	)
	optimizeHandler := optimize.NewHandler(manager, logger, optimize.HandlerOptions{
		MaxDimension:   cfg.Global.MaxDimension,
		DefaultFormat:  cfg.Global.DefaultFormat,
		DefaultQuality: cfg.Global.DefaultQuality,
	})
	proxyHandler := proxy.NewHandler(httpClient, logger, cfg.Global.ProxyAllowlist)

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["storage_driver"] = cfg.Global.StorageDriver
	fields["container"] = cfg.Global.ContainerName
	fields["allowlist"] = len(cfg.Global.ProxyAllowlist)
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, optimizeHandler, proxyHandler, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// buildStore 依据配置选择存储驱动。azure 驱动惰性建立句柄，此处不触网。
func buildStore(cfg *config.Config, logger *logrus.Logger) (blobstore.Store, error) {
	switch cfg.Global.StorageDriver {
	case "disk":
		return blobstore.NewDiskStore(cfg.Global.StoragePath, cfg.Global.ContainerName)
	default:
		return blobstore.NewAzureStore(cfg.Global.AzureConnectionString, cfg.Global.ContainerName, logger), nil
	}
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("nostria-proxy", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 NOSTRIA_PROXY_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("NOSTRIA_PROXY_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(cfg *config.Config, optimizeHandler *optimize.Handler, proxyHandler *proxy.Handler, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:        logger,
		Optimize:      optimizeHandler.Handle,
		Proxy:         proxyHandler.Handle,
		StorageDriver: cfg.Global.StorageDriver,
		ListenPort:    port,
	})
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
