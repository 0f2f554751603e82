package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/0DidUStudy/ragchat/internal/batch"
	"github.com/0DidUStudy/ragchat/internal/config"
	"github.com/0DidUStudy/ragchat/internal/controller"
	"github.com/0DidUStudy/ragchat/internal/dispatcher"
	"github.com/0DidUStudy/ragchat/internal/export"
	"github.com/0DidUStudy/ragchat/internal/history"
	"github.com/0DidUStudy/ragchat/internal/identity"
	"github.com/0DidUStudy/ragchat/internal/logger"
	"github.com/0DidUStudy/ragchat/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:           "ragchat",
	Short:         "智能教学助手的终端客户端",
	Long:          "ragchat 是智能教学问答服务的终端客户端：对话、批量示例问题、历史导出。",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.AddCommand(chatCmd, askCmd, examplesCmd, exportCmd, resetCmd, healthCmd)
}

// app wires the engine together: config, storage, identity, history,
// dispatcher and controller.
type app struct {
	cfg  *config.Config
	db   *sql.DB
	ids  *identity.Store
	hist *history.Store
	disp *dispatcher.Client
	ctrl *controller.Controller
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logger.SetLevel(cfg.Log.Level)

	db, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		// Storage unavailable is never fatal: identity and history degrade
		// to in-memory values for this run.
		logger.L.Warn("local storage unavailable; this session will not survive restart", "error", err)
		db = nil
	}

	ids := identity.NewStore(identity.OpenKV(db))
	id := ids.Identity()
	hist := history.NewStore(history.OpenBackend(db, id.SessionID))
	disp := dispatcher.New(cfg.Server.BaseURL, cfg.Server.Timeout())

	return &app{
		cfg:  cfg,
		db:   db,
		ids:  ids,
		hist: hist,
		disp: disp,
		ctrl: controller.New(hist, disp, id),
	}, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "提出一个问题并打印回答",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		question := strings.Join(args, " ")
		if !a.ctrl.Submit(cmd.Context(), question) {
			return fmt.Errorf("empty question")
		}

		msgs := a.ctrl.Messages()
		printAssistant(msgs[len(msgs)-1])
		return nil
	},
}

var examplesCmd = &cobra.Command{
	Use:   "examples",
	Short: "按固定节奏回放配置中的示例问题",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		// Print each message as the controller appends it.
		var mu sync.Mutex
		printed := len(a.ctrl.Messages())
		a.ctrl.SetOnChange(func() {
			mu.Lock()
			defer mu.Unlock()
			msgs := a.ctrl.Messages()
			for ; printed < len(msgs); printed++ {
				printMessage(msgs[printed])
			}
		})

		runner := batch.NewRunner(a.ctrl, a.cfg.Examples.Questions, a.cfg.Examples.Interval())
		submitted := runner.Run(cmd.Context())
		fmt.Printf("\n已回放 %d/%d 个示例问题\n", submitted, len(a.cfg.Examples.Questions))
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [path]",
	Short: "将当前会话导出为文本文件",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		path := export.DefaultFilename(time.Now())
		if len(args) == 1 {
			path = args[0]
		}
		if err := export.WriteFile(path, a.ctrl.Messages()); err != nil {
			return err
		}
		fmt.Println("已导出：" + path)
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "清空会话历史",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		a.ctrl.Reset()
		fmt.Println("会话已重置")
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "检查远程服务是否可达",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		if !a.disp.Health(ctx) {
			return fmt.Errorf("服务不可达：%s", a.cfg.Server.BaseURL)
		}
		fmt.Println("服务可达")
		return nil
	},
}
