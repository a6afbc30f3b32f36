package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/soulconnect/soulconnect/internal/config"
	"github.com/soulconnect/soulconnect/internal/logging"
	"github.com/soulconnect/soulconnect/internal/version"
)

// cliState 汇总 CLI 标志解析后的结果，子命令共享。
type cliState struct {
	configFlag string
}

func (s *cliState) configPath() string {
	return resolveConfigPath(s.configFlag)
}

// displayPath 用于日志字段，未显式指定时展示默认路径。
func (s *cliState) displayPath() string {
	if p := s.configPath(); p != "" {
		return p
	}
	return config.DefaultPath
}

// load 读取配置并初始化日志，两个进程共享这一步。
func (s *cliState) load(process string) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(s.configPath())
	if err != nil {
		return nil, nil, failure("加载配置失败", err)
	}
	logger, err := logging.InitLogger(cfg.Global, process)
	if err != nil {
		return nil, nil, failure("初始化日志失败", err)
	}
	return cfg, logger, nil
}

func newRootCmd() *cobra.Command {
	state := &cliState{}

	root := &cobra.Command{
		Use:           "soulconnect",
		Short:         "SoulConnect static file server and offline cache agent",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Full(),
	}
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVar(&state.configFlag, "config", "",
		"配置文件路径（默认 ./config.toml，可被 "+ConfigEnv+" 覆盖）")

	root.AddCommand(
		newServeCmd(state),
		newAgentCmd(state),
		newCheckConfigCmd(state),
		newVersionCmd(),
	)
	return root
}

func newServeCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the site root over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := state.load(cmd.Name())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, logger, state.displayPath(), os.DirFS(cfg.Global.Root))
		},
	}
}

func newAgentCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "agent",
		Short: "Run the offline cache agent in front of the origin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := state.load(cmd.Name())
			if err != nil {
				return err
			}
			return runAgent(cmd.Context(), cfg, logger, state.displayPath())
		},
	}
}

func newCheckConfigCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := state.load(cmd.Name())
			if err != nil {
				return err
			}
			fields := logging.BaseFields("check_config", state.displayPath())
			fields["root"] = cfg.Global.Root
			fields["generation"] = cfg.Agent.CacheGeneration
			fields["storage_backend"] = cfg.Agent.StorageBackend
			fields["manifest"] = len(cfg.Agent.Manifest)
			fields["result"] = "ok"
			logger.WithFields(fields).Info("配置校验通过")
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the application version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}
