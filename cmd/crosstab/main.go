package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"crosstab/internal/agent"
	"crosstab/internal/config"
	"crosstab/internal/dataset"
	"crosstab/internal/perception"
)

var (
	// Global flags
	verbose    bool
	configPath string
	dataDir    string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "crosstab",
	Short: "crosstab - conversational survey analysis agent",
	Long: `crosstab is a conversational agent for survey data analysis.

Point it at a study directory (questions.json, responses.csv, optional
scope.md) and ask for tabulations in plain language: frequencies, means,
top-2-box, NPS, broken down by questions or by segments you define along
the way.

Run without arguments to start the interactive chat interface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapConfig := zap.NewProductionConfig()
		if verbose {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

// chatCmd starts the interactive loop explicitly.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive analysis conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

// askCmd handles a single message and exits.
var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Send one message and print the response",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildAgent()
		if err != nil {
			return err
		}
		resp := a.HandleMessage(cmd.Context(), strings.Join(args, " "))
		printResponse(resp.Message, resp.Errors)
		if !resp.Success {
			os.Exit(1)
		}
		return nil
	},
}

func buildAgent() (*agent.Agent, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.Data.Dir = dataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ds, err := dataset.Load(cfg.Data.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load study data: %w", err)
	}
	logger.Info("study loaded",
		zap.String("dir", cfg.Data.Dir),
		zap.Int("questions", len(ds.Questions)),
		zap.Int("respondents", ds.Responses.NumRows()))

	client := perception.NewOpenAIClient(perception.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.GetLLMTimeout(),
	}, logger)

	return agent.New(ds, client, logger), nil
}

func runChat(ctx context.Context) error {
	a, err := buildAgent()
	if err != nil {
		return err
	}

	fmt.Println("crosstab ready. Ask about your survey data (quit to exit).")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch strings.ToLower(line) {
		case "quit", "exit", "q":
			return nil
		}

		resp := a.HandleMessage(ctx, line)
		printResponse(resp.Message, resp.Errors)
	}
	return scanner.Err()
}

func printResponse(message string, errs []string) {
	if message != "" {
		fmt.Println(message)
	}
	for _, e := range errs {
		fmt.Println("error:", e)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "crosstab.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "study data directory (overrides config)")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
