// Command boardofone-cli runs a single deliberation session to completion
// from the terminal: it reads a decision problem, drives a panel of
// persona experts through structured multi-round debate, and prints the
// synthesized recommendation. It is the thin, single-session counterpart
// to cmd/mcpserver's long-running multi-session surface.
//
// Environment variables:
//   - DEBUG: set to "true" to enable file:line-annotated logging
//   - BOARDOFONE_CONFIG: path to a JSON config file (optional; falls back
//     to environment variables and defaults per internal/config)
//   - ANTHROPIC_API_KEY, OPENAI_API_KEY, VOYAGE_API_KEY: provider credentials
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"boardofone/internal/config"
	"boardofone/internal/engine"
	"boardofone/internal/session"
	"boardofone/internal/types"
)

func main() {
	if os.Getenv("DEBUG") == "true" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		log.Println("boardofone-cli: debug logging enabled")
	}

	statementFlag := flag.String("problem", "", "the decision problem statement (reads stdin if omitted)")
	contextFlag := flag.String("context", "", "additional background context for the problem")
	pollInterval := flag.Duration("poll", 2*time.Second, "how often to poll session status")
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("boardofone-cli: config: %v", err)
	}

	statement := *statementFlag
	if statement == "" {
		statement, err = readStdin()
		if err != nil {
			log.Fatalf("boardofone-cli: reading problem from stdin: %v", err)
		}
	}
	statement = strings.TrimSpace(statement)
	if statement == "" {
		log.Fatal("boardofone-cli: no problem statement given (use -problem or pipe one via stdin)")
	}

	comps, err := engine.New(cfg)
	if err != nil {
		log.Fatalf("boardofone-cli: %v", err)
	}
	defer func() {
		if err := comps.Close(); err != nil {
			log.Printf("boardofone-cli: warning: close: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	problem := &types.Problem{
		Statement: statement,
		Context:   *contextFlag,
		Status:    types.ProblemStatusPending,
		CreatedAt: time.Now(),
	}

	sessionID, err := comps.Sessions.Start(ctx, problem)
	if err != nil {
		log.Fatalf("boardofone-cli: starting session: %v", err)
	}
	log.Printf("boardofone-cli: session %s started", sessionID)

	if err := runToCompletion(ctx, comps, sessionID, *pollInterval); err != nil {
		log.Fatalf("boardofone-cli: %v", err)
	}
}

func loadConfig() (config.Config, error) {
	if path := os.Getenv("BOARDOFONE_CONFIG"); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// runToCompletion polls the session's status and prints the synthesized
// recommendation once it reaches a terminal state.
func runToCompletion(ctx context.Context, comps *engine.Components, sessionID string, pollInterval time.Duration) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			status, err := comps.Sessions.Status(sessionID)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}

			metrics, _ := comps.Sessions.Metrics(sessionID)
			log.Printf("boardofone-cli: %s (%d/%d sub-problems, $%.4f)",
				status, metrics.SubProblemsDone, metrics.SubProblemsTotal, metrics.CostUSD)

			switch status {
			case session.StatusComplete:
				return printResult(comps, sessionID)
			case session.StatusFailed, session.StatusAborted:
				cause, _ := comps.Sessions.LastError(sessionID)
				return fmt.Errorf("session ended with status %s: %v", status, cause)
			}
		}
	}
}

func printResult(comps *engine.Components, sessionID string) error {
	state, err := comps.Sessions.Result(sessionID)
	if err != nil {
		return fmt.Errorf("result: %w", err)
	}

	fmt.Println()
	fmt.Println("=== Sub-problem recommendations ===")
	for _, sp := range state.SubProblems {
		result, ok := state.Results[sp.ID]
		if !ok {
			continue
		}
		fmt.Printf("\n[%s] %s\n", sp.ID, sp.Description)
		fmt.Printf("  Recommendation: %s\n", result.Recommendation)
		fmt.Printf("  Confidence: %.0f%%  Rounds used: %d\n", result.Confidence*100, result.RoundsUsed)
		if len(result.Dissent) > 0 {
			fmt.Printf("  Dissenting views: %d\n", len(result.Dissent))
		}
	}

	if state.MetaSynthesis != "" {
		fmt.Println("\n=== Synthesized recommendation ===")
		fmt.Println(state.MetaSynthesis)
	}
	return nil
}
