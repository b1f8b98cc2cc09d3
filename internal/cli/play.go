package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"quiz-battle-service/internal/battle"
	"quiz-battle-service/internal/brain"
	"quiz-battle-service/internal/config"
	"quiz-battle-service/internal/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewPlayCmd runs a battle in the terminal against a running server.
func NewPlayCmd(configPath *string) *cobra.Command {
	var backendURL, difficulty string
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a quiz battle in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if backendURL == "" {
				backendURL = cfg.Backend.URL
			}
			if backendURL == "" {
				backendURL = "http://localhost:8080"
			}
			d, err := domain.ParseDifficulty(difficulty)
			if err != nil {
				return err
			}
			opts := battleOptions(cfg)
			opts.Difficulty = d
			return runPlay(cmd.Context(), brain.NewClient(backendURL), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&backendURL, "backend", os.Getenv("BACKEND_URL"), "base URL of the battle server")
	cmd.Flags().StringVar(&difficulty, "difficulty", string(domain.DifficultyMedium), "easy | medium | hard | insane")
	return cmd
}

func runPlay(ctx context.Context, client *brain.Client, opts battle.Options, in io.Reader, out io.Writer) error {
	if _, err := client.CheckHealth(ctx); err != nil {
		return fmt.Errorf("backend not reachable: %w", err)
	}

	match := battle.NewMatch(uuid.NewString(), client, client, opts)
	defer match.Close()
	updates, cancel := match.Subscribe()
	defer cancel()

	if _, err := match.Start(ctx); err != nil {
		return err
	}

	lines := bufio.NewScanner(in)
	var snap domain.MatchSnapshot
	settle := true
	for {
		if settle {
			next, err := waitSettled(ctx, updates)
			if err != nil {
				return err
			}
			snap = next
			render(out, snap)
		}
		// Only actions that publish a new snapshot wait for the match again.
		settle = true

		if !lines.Scan() {
			return lines.Err()
		}
		input := strings.TrimSpace(lines.Text())

		switch {
		case snap.Phase == domain.PhaseMatchOver:
			if !strings.EqualFold(input, "y") {
				return nil
			}
			if err := match.ResetMatch(ctx); err != nil {
				return err
			}
		case snap.Phase == domain.PhaseIdle:
			if input == "q" {
				return nil
			}
			if _, err := match.LoadQuestion(ctx); err != nil {
				return err
			}
		case input == "q":
			return nil
		case input == "r":
			if err := match.ResetMatch(ctx); err != nil {
				return err
			}
		case strings.HasPrefix(input, "d "):
			d, err := domain.ParseDifficulty(strings.TrimPrefix(input, "d "))
			if err != nil {
				fmt.Fprintln(out, err)
				settle = false
				continue
			}
			if err := match.SetDifficulty(ctx, d); err != nil {
				return err
			}
		default:
			n, err := strconv.Atoi(input)
			if err != nil || snap.Question == nil || n < 1 || n > len(snap.Question.Options) {
				fmt.Fprintln(out, "pick an option number")
				settle = false
				continue
			}
			if _, err := match.SubmitAnswer(ctx, snap.Question.Options[n-1]); err != nil {
				return err
			}
		}
	}
}

// waitSettled returns the next snapshot that expects player input.
func waitSettled(ctx context.Context, updates <-chan domain.MatchSnapshot) (domain.MatchSnapshot, error) {
	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return domain.MatchSnapshot{}, domain.ErrMatchClosed
			}
			switch {
			case snap.Phase == domain.PhaseQuestionReady, snap.Phase == domain.PhaseMatchOver:
				return snap, nil
			case snap.Phase == domain.PhaseIdle && !snap.State.Locked && snap.LastError != "":
				return snap, nil
			}
		case <-ctx.Done():
			return domain.MatchSnapshot{}, ctx.Err()
		}
	}
}

func render(out io.Writer, snap domain.MatchSnapshot) {
	if o := snap.LastOutcome; o != nil && snap.Round > 0 {
		fmt.Fprintf(out, "You %s • AI %s\n", hitOrMiss(o.UserCorrect), hitOrMiss(o.AICorrect))
	}
	fmt.Fprintf(out, "Player HP %d/%d | A.R.C-Angel HP %d/%d | %s\n",
		snap.State.UserHealth, snap.Rules.MaxHealth, snap.State.AIHealth, snap.Rules.MaxHealth, snap.Difficulty)

	switch snap.Phase {
	case domain.PhaseMatchOver:
		fmt.Fprintf(out, "%s! Play again? [y/N]\n", snap.Result)
	case domain.PhaseIdle:
		fmt.Fprintf(out, "could not load a question (%s). Press enter to retry, q to quit.\n", snap.LastError)
	default:
		fmt.Fprintf(out, "Round %d: %s\n", snap.Round+1, snap.Question.Prompt)
		for i, opt := range snap.Question.Options {
			fmt.Fprintf(out, "  %d) %s\n", i+1, opt)
		}
		fmt.Fprintln(out, "answer with a number, r to reset, d <difficulty>, q to quit")
	}
}

func hitOrMiss(hit bool) string {
	if hit {
		return "hit"
	}
	return "missed"
}
