package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/mcdev12/countdown/go/clients/timer_client"
	"github.com/mcdev12/countdown/go/internal/models"
	"github.com/mcdev12/countdown/go/internal/syncagent"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	createCmd = &cobra.Command{
		Use:   "create",
		Short: "Create a timer group owned by --actor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			code, err := newClient().Create(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to create timer group: %w", err)
			}
			fmt.Println(code)
			return nil
		},
	}

	getCmd = &cobra.Command{
		Use:   "get [code]",
		Short: "Print the current state of a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, etag, err := newClient().GetState(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get timer group: %w", err)
			}
			printState(args[0], *state, etag, false)
			return nil
		},
	}

	patchCmd = &cobra.Command{
		Use:   "patch [code] [start|pause|reset|extend]",
		Short: "Apply an owner action to a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := timer_client.PatchRequest{Action: strings.ToLower(args[1])}
			if cmd.Flags().Changed("duration") {
				ms := viper.GetDuration("duration").Milliseconds()
				req.DurationMs = &ms
			}

			result, err := newClient().Patch(cmd.Context(), args[0], req, viper.GetString("key"))
			if err != nil {
				return fmt.Errorf("failed to %s timer group: %w", req.Action, err)
			}
			printState(args[0], result.State, result.ETag, result.Replayed)
			return nil
		},
	}

	watchCmd = &cobra.Command{
		Use:   "watch [code]",
		Short: "Simulate several tabs following one group",
		Long: `watch starts --tabs agents that share one lease store and one
broadcast hub, the way tabs of one browser share localStorage and
a BroadcastChannel. Only the leader polls the server. With
--close-leader-after the current leader is closed once, so another
tab takes over.`,
		Args: cobra.ExactArgs(1),
		RunE: runWatch,
	}
)

func init() {
	patchCmd.Flags().Duration("duration", 0, "duration for start or extend, e.g. 5m or 30s")
	patchCmd.Flags().String("key", "", "idempotency key, reuse it to retry the same attempt")

	watchCmd.Flags().Int("tabs", 3, "number of simulated tabs")
	watchCmd.Flags().Duration("interval", time.Second, "how often to print what each tab renders")
	watchCmd.Flags().Duration("close-leader-after", 0, "close the leading tab after this long, 0 disables")
	watchCmd.Flags().Duration("for", 0, "stop watching after this long, 0 runs until interrupted")
}

func runWatch(cmd *cobra.Command, args []string) error {
	code := strings.ToUpper(strings.TrimSpace(args[0]))
	tabs := viper.GetInt("tabs")
	if tabs < 1 {
		return fmt.Errorf("--tabs must be at least 1, got %d", tabs)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if limit := viper.GetDuration("for"); limit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limit)
		defer cancel()
	}

	client := newClient()
	storage := syncagent.NewMemoryStorage()
	hub := syncagent.NewHub()

	agents := make([]*syncagent.Agent, 0, tabs)
	defer func() {
		for _, agent := range agents {
			agent.Close()
		}
	}()
	for i := 0; i < tabs; i++ {
		agent := syncagent.New(syncagent.Config{
			Code:  code,
			TabID: fmt.Sprintf("tab-%d", i+1),
		}, storage, hub, client)
		if err := agent.Join(ctx); err != nil {
			return fmt.Errorf("failed to join tab %d: %w", i+1, err)
		}
		agents = append(agents, agent)
	}

	var closeLeader <-chan time.Time
	if after := viper.GetDuration("close-leader-after"); after > 0 {
		timer := time.NewTimer(after)
		defer timer.Stop()
		closeLeader = timer.C
	}

	ticker := time.NewTicker(viper.GetDuration("interval"))
	defer ticker.Stop()

	closed := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-closeLeader:
			closeLeader = nil
			for _, agent := range agents {
				if agent.IsLeader() && !closed[agent.TabID()] {
					fmt.Printf("closing leader %s\n", agent.TabID())
					agent.Close()
					closed[agent.TabID()] = true
					break
				}
			}
		case now := <-ticker.C:
			printTabs(agents, closed, now)
		}
	}
}

func printTabs(agents []*syncagent.Agent, closed map[string]bool, now time.Time) {
	lines := make([]string, 0, len(agents))
	for _, agent := range agents {
		if closed[agent.TabID()] {
			continue
		}
		snap := agent.Snapshot()
		role := "follower"
		if agent.IsLeader() {
			role = "leader"
		}
		lines = append(lines, fmt.Sprintf("%s %-8s %s %s polls=%d",
			agent.TabID(), role, describeMode(snap.State, now), formatRemaining(agent.Remaining(now)), agent.Polls()))
	}
	sort.Strings(lines)
	fmt.Printf("[%s]\n  %s\n", now.Format(time.TimeOnly), strings.Join(lines, "\n  "))
}

func describeMode(state *models.TimerState, now time.Time) string {
	switch {
	case state == nil:
		return "waiting"
	case state.IsIdle():
		return "idle"
	case state.IsExpired(now):
		return "expired"
	default:
		return string(state.Mode)
	}
}

func formatRemaining(d time.Duration) string {
	d = d.Round(time.Second)
	minutes := int(d / time.Minute)
	seconds := int((d % time.Minute) / time.Second)
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

func printState(code string, state models.TimerState, etag string, replayed bool) {
	now := time.Now()
	fmt.Printf("code:      %s\n", code)
	fmt.Printf("mode:      %s\n", describeMode(&state, now))
	fmt.Printf("remaining: %s\n", formatRemaining(state.RemainingAt(now)))
	if state.EndAt != nil {
		fmt.Printf("end_at:    %s\n", state.EndAt.Format(time.RFC3339Nano))
	}
	fmt.Printf("updated:   %s\n", state.UpdatedAt.Format(time.RFC3339Nano))
	fmt.Printf("etag:      %s\n", etag)
	if replayed {
		fmt.Println("replayed:  true")
	}
}
