package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaani-tts/vaani/internal/api"
	"github.com/vaani-tts/vaani/internal/chat"
	"github.com/vaani-tts/vaani/internal/config"
	"github.com/vaani-tts/vaani/internal/openrouter"
	"github.com/vaani-tts/vaani/internal/pipeline"
	"github.com/vaani-tts/vaani/internal/ttsapi"
)

// buildConverter wires the conversion orchestrator from config. intervalMS
// overrides the configured poll interval when positive.
func buildConverter(cfg config.Config, intervalMS int) (*pipeline.Converter, *openrouter.Client) {
	if intervalMS <= 0 {
		intervalMS = cfg.Convert.PollIntervalMS
	}
	ai := openrouter.NewClient(cfg.OpenRouter.APIKey, cfg.OpenRouter.Model)
	jobs := ttsapi.NewClient(cfg.Backend.BaseURL)
	syncBackend := ttsapi.NewSyncClient(cfg.Backend.SyncURL)
	conv := pipeline.New(ai, jobs, syncBackend, time.Duration(intervalMS)*time.Millisecond)
	return conv, ai
}

// describeFailure turns a conversion error into the line shown to the user.
func describeFailure(err error) string {
	switch pipeline.Classify(err) {
	case pipeline.KindValidation:
		return err.Error()
	case pipeline.KindAuth:
		return "OpenRouter API key missing or rejected; set one with 'vaani config set-key'"
	case pipeline.KindBusy:
		return "a conversion is already in progress"
	case pipeline.KindUpstream:
		return fmt.Sprintf("AI processing failed: %v", err)
	case pipeline.KindSubmission:
		return fmt.Sprintf("the conversion backend rejected the request: %v", err)
	case pipeline.KindJobFailed:
		return fmt.Sprintf("conversion failed: %v", err)
	case pipeline.KindArtifact:
		return fmt.Sprintf("the audio could not be retrieved: %v", err)
	default:
		return fmt.Sprintf("could not reach the conversion backend: %v", err)
	}
}

// --- convert ---

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert text or a file to speech audio",
	Long: `Convert text or a file to speech audio.

Examples:
  vaani convert --text "வணக்கம், how are you?"
  vaani convert --file notes.pdf --out notes.mp3
  vaani convert --text "..." --instruction "Summarize this text"
  vaani convert --text "hello" --backend sync-hf`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		file, _ := cmd.Flags().GetString("file")
		out, _ := cmd.Flags().GetString("out")
		useAI, _ := cmd.Flags().GetBool("ai")
		instruction, _ := cmd.Flags().GetString("instruction")
		backendFlag, _ := cmd.Flags().GetString("backend")
		intervalMS, _ := cmd.Flags().GetInt("interval")

		if text == "" && file == "" {
			return fmt.Errorf("one of --text or --file is required")
		}

		req := pipeline.Request{Text: text}
		if file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			req.File = &pipeline.FileInput{Name: filepath.Base(file), Data: data}
		}
		if useAI || instruction != "" {
			req.UseAI = true
			req.Instruction = instruction
		}
		switch backendFlag {
		case "", string(pipeline.BackendAsync):
			req.Backend = pipeline.BackendAsync
		case string(pipeline.BackendSync):
			req.Backend = pipeline.BackendSync
		default:
			return fmt.Errorf("unknown backend %q (valid: %s, %s)", backendFlag, pipeline.BackendAsync, pipeline.BackendSync)
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		conv, _ := buildConverter(cfg, intervalMS)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ev := pipeline.Events{
			OnProgress: func(percent int) { printStep("converting... %d%%", percent) },
			OnAIText: func(processed string) {
				printStatus("AI text", "%s", processed)
			},
		}

		art, err := conv.Convert(ctx, req, ev)
		if err != nil {
			printError("%s", describeFailure(err))
			return err
		}

		if err := os.WriteFile(out, art.Data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}
		printSuccess("Wrote %s (%d bytes)", out, len(art.Data))
		return nil
	},
}

func init() {
	convertCmd.Flags().String("text", "", "text to convert")
	convertCmd.Flags().String("file", "", "file to convert (.txt, .md, .pdf, .html)")
	convertCmd.Flags().String("out", api.DownloadName, "output MP3 path")
	convertCmd.Flags().Bool("ai", false, "pre-process the text with AI (requires --instruction)")
	convertCmd.Flags().String("instruction", "", "AI instruction (implies --ai)")
	convertCmd.Flags().String("backend", "", fmt.Sprintf("conversion backend: %s (default) or %s", pipeline.BackendAsync, pipeline.BackendSync))
	convertCmd.Flags().Int("interval", 0, "job poll interval in milliseconds (0 = configured value)")
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat session with the AI model",
	Long: `Interactive chat session with the AI model.

Commands inside the session:
  /reset  clear the conversation
  /speak  convert the last assistant reply to speech
  /quit   exit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		client := openrouter.NewClient(cfg.OpenRouter.APIKey, cfg.OpenRouter.Model)
		session := chat.NewSession(client)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Fprintf(os.Stderr, "vaani chat (%s) — /reset, /speak, /quit\n", cfg.OpenRouter.Model)

		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for {
			fmt.Fprint(os.Stderr, colorize(colorBold, "you> "))
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())

			switch line {
			case "":
				continue
			case "/quit":
				return nil
			case "/reset":
				session.Reset()
				printStep("session cleared")
				continue
			case "/speak":
				speakLast(ctx, cfg, session)
				continue
			}

			reply, err := session.Send(ctx, line)
			if err != nil {
				// The failed turn stays visible; the next message carries on
				// from the same transcript.
				printError("assistant error: %v", err)
				continue
			}
			fmt.Printf("%s %s\n", colorize(colorCyan, "assistant>"), reply)
		}
		return scanner.Err()
	},
}

func speakLast(ctx context.Context, cfg config.Config, session *chat.Session) {
	last := session.LastResponse()
	if last == "" {
		printWarning("no assistant response to speak yet")
		return
	}

	conv, _ := buildConverter(cfg, 0)
	req := pipeline.Request{Text: last, Backend: pipeline.BackendAsync}
	ev := pipeline.Events{
		OnProgress: func(percent int) { printStep("converting... %d%%", percent) },
	}

	art, err := conv.Convert(ctx, req, ev)
	if err != nil {
		printError("%s", describeFailure(err))
		return
	}
	if err := os.WriteFile(api.DownloadName, art.Data, 0o644); err != nil {
		printError("writing %s: %v", api.DownloadName, err)
		return
	}
	printSuccess("Wrote %s (%d bytes)", api.DownloadName, len(art.Data))
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		if cfg.OpenRouter.APIKey != "" {
			fmt.Printf("  %s = %s\n", colorize(colorBold, "openrouter.api_key"), "(set)")
		} else {
			fmt.Printf("  %s = %s\n", colorize(colorBold, "openrouter.api_key"), "(not set)")
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key <api-key>",
	Short: "Store the OpenRouter API key in the platform secret store",
	Long:  "Store the OpenRouter API key in the platform secret store.\nPass an empty string to clear it.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if args[0] == "" {
			if err := config.ClearAPIKey(); err != nil {
				return err
			}
			printSuccess("API key cleared")
			return nil
		}
		if err := config.SetAPIKey(args[0]); err != nil {
			return err
		}
		printSuccess("API key stored")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetKeyCmd)
}
