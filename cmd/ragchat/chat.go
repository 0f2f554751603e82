package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/0DidUStudy/ragchat/internal/export"
	"github.com/0DidUStudy/ragchat/internal/history"
)

var (
	userStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	botStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	hintStyle = lipgloss.NewStyle().Faint(true)
)

var markdown = func() *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(96),
	)
	if err != nil {
		return nil
	}
	return r
}()

func renderMarkdown(content string) string {
	if markdown == nil {
		return content
	}
	out, err := markdown.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n") + "\n"
}

func printMessage(m history.Message) {
	switch m.Role {
	case history.RoleUser:
		fmt.Println(userStyle.Render("你 · " + m.Timestamp.Local().Format("15:04:05")))
		fmt.Println(m.Content)
	default:
		printAssistant(m)
	}
}

func printAssistant(m history.Message) {
	fmt.Println(botStyle.Render("助手 · " + m.Timestamp.Local().Format("15:04:05")))
	fmt.Print(renderMarkdown(m.Content))
	if rc := m.Retrieval; rc != nil {
		if len(rc.Knowledge) > 0 || len(rc.Memory) > 0 {
			fmt.Println(hintStyle.Render(fmt.Sprintf("（引用知识 %d 条，记忆实体 %d 个）", len(rc.Knowledge), len(rc.Memory))))
		}
		for i, q := range rc.SubQuestions {
			fmt.Println(hintStyle.Render(fmt.Sprintf("  %d. %s", i+1, q)))
		}
		if len(rc.SubQuestions) > 0 {
			fmt.Println(hintStyle.Render("  输入 /use <序号> 选用建议问题"))
		}
	}
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "进入交互式对话",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		for _, m := range a.ctrl.Messages() {
			printMessage(m)
		}
		fmt.Println(hintStyle.Render("命令：/reset /export [路径] /user <标识> /use <序号> /exit"))

		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for {
			fmt.Print(userStyle.Render("你> "))
			if !scanner.Scan() {
				return scanner.Err()
			}
			line := strings.TrimSpace(scanner.Text())

			if line == "" {
				// An empty line sends the staged suggested question, if any.
				line = a.ctrl.TakeDraft()
				if line == "" {
					continue
				}
				fmt.Println(hintStyle.Render("发送：" + line))
			}

			if strings.HasPrefix(line, "/") {
				if quit := a.runSlashCommand(line); quit {
					return nil
				}
				continue
			}

			a.exchange(cmd, line)
		}
	},
}

// exchange submits one question and prints the appended assistant reply.
func (a *app) exchange(cmd *cobra.Command, question string) {
	if !a.ctrl.Submit(cmd.Context(), question) {
		return
	}
	msgs := a.ctrl.Messages()
	printAssistant(msgs[len(msgs)-1])
}

// runSlashCommand handles the REPL's local commands. It returns true when the
// session should end.
func (a *app) runSlashCommand(line string) bool {
	fields := strings.Fields(line)
	rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	switch fields[0] {
	case "/exit", "/quit":
		return true

	case "/reset":
		a.ctrl.Reset()
		fmt.Println("会话已重置")
		printMessage(a.ctrl.Messages()[0])

	case "/export":
		path := export.DefaultFilename(time.Now())
		if rest != "" {
			path = rest
		}
		if err := export.WriteFile(path, a.ctrl.Messages()); err != nil {
			fmt.Println("导出失败：" + err.Error())
			return false
		}
		fmt.Println("已导出：" + path)

	case "/user":
		if rest == "" {
			fmt.Println("当前用户标识：" + a.ids.LoadOrCreateUserID())
			return false
		}
		a.ids.SetUserID(rest)
		a.ctrl.UpdateIdentity(a.ids.Identity())
		fmt.Println("用户标识已更新")

	case "/use":
		idx, err := strconv.Atoi(rest)
		msgs := a.ctrl.Messages()
		last := msgs[len(msgs)-1]
		if err != nil || last.Retrieval == nil || idx < 1 || idx > len(last.Retrieval.SubQuestions) {
			fmt.Println("没有对应的建议问题")
			return false
		}
		a.ctrl.UseSuggested(last.Retrieval.SubQuestions[idx-1])
		fmt.Println(hintStyle.Render("已填入：" + last.Retrieval.SubQuestions[idx-1] + "（回车发送）"))

	default:
		fmt.Println("未知命令：" + fields[0])
	}
	return false
}
