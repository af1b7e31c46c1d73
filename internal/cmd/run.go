package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tetra-labs/tetra/internal/archive"
	"github.com/tetra-labs/tetra/internal/config"
	"github.com/tetra-labs/tetra/internal/debate"
	"github.com/tetra-labs/tetra/internal/errors"
	"github.com/tetra-labs/tetra/internal/event"
	"github.com/tetra-labs/tetra/internal/llm"
	"github.com/tetra-labs/tetra/internal/logging"
	"github.com/tetra-labs/tetra/internal/retry"
)

var runCmd = &cobra.Command{
	Use:   "run <debate-file>",
	Short: "Run a debate session from a definition file",
	Long: `Run a debate session described by a YAML definition file.

The definition names the topic, the moderator, and two or more
participants, each backed by a gateway model. Before the session starts,
every distinct model is probed with a small completion to catch
unreachable or empty-replying backends early.

In manual mode each turn is advanced by hand. In semi mode the session
runs itself and pauses at every round boundary; in full mode it runs to
completion, stopping only for decision points.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var (
	runAutoMode   string
	runMaxRounds  int
	runAutoFinish bool
	runCheckOnly  bool
	runSkipProbe  bool
)

func init() {
	runCmd.Flags().StringVar(&runAutoMode, "auto", "", "auto-play mode: manual, semi, or full")
	runCmd.Flags().IntVar(&runMaxRounds, "max-rounds", 0, "override the round limit")
	runCmd.Flags().BoolVar(&runAutoFinish, "auto-finish", false, "run past the round limit until the moderator ends the session")
	runCmd.Flags().BoolVar(&runCheckOnly, "check", false, "probe the definition's models and exit")
	runCmd.Flags().BoolVar(&runSkipProbe, "skip-probe", false, "start without probing models first")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	def, err := LoadDefinition(args[0])
	if err != nil {
		return err
	}
	if runAutoMode != "" {
		if !config.IsValidAutoMode(runAutoMode) {
			return fmt.Errorf("invalid --auto value %q (valid: %v)", runAutoMode, config.ValidAutoModes())
		}
		def.AutoMode = runAutoMode
	}
	if runMaxRounds > 0 {
		def.MaxRounds = runMaxRounds
	}
	if runAutoFinish {
		def.AutoFinish = true
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logger.Close()

	bus := event.NewBus()
	client := newGatewayClient(cfg, bus, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runCheckOnly {
		return probeModels(ctx, client, def.Models(), true)
	}
	if !runSkipProbe {
		if err := probeModels(ctx, client, def.Models(), false); err != nil {
			return err
		}
	}

	store, err := archive.NewStore(cfg.Archive.ResolveDir(config.DataDir()), logger)
	if err != nil {
		return fmt.Errorf("failed to open archive directory: %w", err)
	}

	opts := def.ControllerOptions()
	opts.Completer = client
	opts.Archiver = store
	opts.Bus = bus
	opts.Logger = logger
	opts.Config = &cfg.Debate

	ctrl, err := debate.NewController(opts)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	p := newPrinter(ctrl, os.Stdout)
	p.subscribe(bus)

	snap, err := ctrl.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	p.status(snap)

	return driveSession(ctx, ctrl, p)
}

// newLogger builds the session logger from config. Disabled logging gets
// a no-op logger so call sites never branch.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	dir := cfg.Logging.ResolveDir(config.DataDir())
	if dir == "" {
		return logging.NopLogger(), nil
	}
	return logging.NewLogger(dir, cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	})
}

func newGatewayClient(cfg *config.Config, bus *event.Bus, logger *logging.Logger) *llm.Client {
	policy := retry.DefaultPolicy()
	policy.MaxRetries = cfg.LLM.MaxRetries

	return llm.NewClient(llm.Options{
		BaseURL: cfg.LLM.GatewayURL,
		APIKey:  cfg.LLM.APIKey(),
		Timeout: cfg.LLM.RequestTimeout(),
		Retry:   policy,
		Referer: cfg.LLM.Referer,
		Title:   cfg.LLM.Title,
	}, llm.NewProfile(cfg.LLM.CacheProviders), llm.NewIncompatibleRegistry(), bus, logger)
}

// probeModels sends a small completion to each model. With verbose set it
// reports every result; otherwise it is quiet on success. Any hard
// failure aborts the run so a dead backend is caught before round one.
func probeModels(ctx context.Context, client *llm.Client, models []string, verbose bool) error {
	var failed []string
	for _, model := range models {
		res, err := client.Probe(ctx, model)
		switch {
		case err != nil:
			failed = append(failed, model)
			fmt.Printf("%s %s: %v\n", styleError.Render("✗"), model, err)
		case res.Warning != "":
			fmt.Printf("%s %s: %s\n", styleWarn.Render("!"), model, res.Warning)
		case verbose:
			fmt.Printf("✓ %s: ready\n", model)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d model(s) failed the readiness probe: %s", len(failed), strings.Join(failed, ", "))
	}
	return nil
}

// driveSession owns the command loop. Auto modes hand control to the
// engine's Run loop; manual mode and every pause come back here for a
// command. Interrupts close the session so a partial archive is written.
func driveSession(ctx context.Context, ctrl *debate.Controller, p *printer) error {
	reader := bufio.NewScanner(os.Stdin)

	for {
		if ctx.Err() != nil {
			return closeSession(ctrl, p)
		}

		snap := ctrl.Snapshot()
		switch {
		case snap.Session.Status == debate.StatusCompleted:
			printFinalSummary(snap, p)
			return nil

		case snap.Decision != nil:
			if err := resolveDecision(ctx, ctrl, p, reader, snap.Decision); err != nil {
				return err
			}
			p.flush()

		case snap.Session.Status == debate.StatusPaused,
			snap.Session.AutoMode == debate.AutoManual:
			done, err := promptCommand(ctx, ctrl, p, reader, snap)
			if err != nil {
				return err
			}
			if done {
				return nil
			}

		default:
			if _, err := ctrl.Run(ctx); err != nil {
				p.flush()
				p.fail(err.Error())
				continue
			}
			p.flush()
		}
	}
}

// promptCommand reads and applies one command. It returns done=true when
// the caller should exit the loop.
func promptCommand(ctx context.Context, ctrl *debate.Controller, p *printer, reader *bufio.Scanner, snap debate.Snapshot) (bool, error) {
	prompt := fmt.Sprintf("[round %d] ", snap.Session.CurrentRound)
	if snap.Session.Status == debate.StatusPaused {
		prompt = fmt.Sprintf("[round %d, paused] ", snap.Session.CurrentRound)
	}
	line, ok := readLine(reader, prompt)
	if !ok {
		return true, closeSession(ctrl, p)
	}

	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	var err error
	switch cmd {
	case "", "next", "n":
		if snap.Session.Status == debate.StatusPaused {
			_, err = ctrl.Resume()
		} else {
			_, err = ctrl.Advance(ctx)
		}
		p.flush()

	case "say":
		if _, err = ctrl.Inject(rest); err == nil {
			p.flush()
		}

	case "pause":
		_, err = ctrl.Pause()

	case "resume":
		_, err = ctrl.Resume()

	case "auto":
		_, err = ctrl.SetAutoMode(debate.AutoMode(rest))

	case "status", "s":
		p.status(ctrl.Snapshot())

	case "close", "quit", "q":
		return true, closeSession(ctrl, p)

	case "help", "?":
		printHelp()

	default:
		fmt.Printf("unknown command %q (try: next, say <text>, pause, resume, auto <mode>, status, close, help)\n", cmd)
	}

	if err != nil {
		p.fail(err.Error())
		if hint := errors.RemediationHint(err); hint != "" {
			p.warn(hint)
		}
	}
	return false, nil
}

// decisionName resolves a decision's participant ID to a display name,
// falling back to the raw ID for an unknown participant.
func decisionName(snap debate.Snapshot, id string) string {
	if part := snap.Session.ParticipantByID(id); part != nil {
		return part.Name
	}
	return id
}

func resolveDecision(ctx context.Context, ctrl *debate.Controller, p *printer, reader *bufio.Scanner, d *debate.Decision) error {
	switch d.Kind {
	case debate.DecisionDisqualification:
		name := decisionName(ctrl.Snapshot(), d.ParticipantID)
		fmt.Printf("\n%s produced no usable reply after %d attempts.\n", name, d.Attempts)
		for {
			line, ok := readLine(reader, "[r]etry, [d]isqualify, or [s]tay paused? ")
			if !ok {
				return closeSession(ctrl, p)
			}
			action, valid := parseDisqualificationAction(line)
			if !valid {
				fmt.Println("please answer r, d, or s")
				continue
			}
			if _, err := ctrl.ResolveDisqualification(ctx, d.ParticipantID, action); err != nil {
				p.fail(err.Error())
			}
			return nil
		}

	case debate.DecisionRatification:
		fmt.Printf("\nThe moderator is requesting approval of the final plan (round %d).\n", d.Round)
		for {
			line, ok := readLine(reader, "[a]pprove or [v]eto? ")
			if !ok {
				return closeSession(ctrl, p)
			}
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "a", "approve":
				if _, err := ctrl.Ratify(true, ""); err != nil {
					p.fail(err.Error())
				}
				return nil
			case "v", "veto", "reject":
				reason, ok := readLine(reader, "reason for the veto: ")
				if !ok {
					return closeSession(ctrl, p)
				}
				if _, err := ctrl.Ratify(false, strings.TrimSpace(reason)); err != nil {
					p.fail(err.Error())
					continue
				}
				return nil
			default:
				fmt.Println("please answer a or v")
			}
		}
	}
	return nil
}

func parseDisqualificationAction(line string) (debate.DisqualificationAction, bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "r", "retry":
		return debate.ActionRetry, true
	case "d", "disqualify":
		return debate.ActionDisqualify, true
	case "s", "stay":
		return debate.ActionStayPaused, true
	}
	return "", false
}

// closeSession ends the session early, persisting whatever was said. A
// fresh context is used so an interrupt does not also cancel the save.
func closeSession(ctrl *debate.Controller, p *printer) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snap, err := ctrl.Close(ctx)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	printFinalSummary(snap, p)
	return nil
}

func printFinalSummary(snap debate.Snapshot, p *printer) {
	sess := &snap.Session
	fmt.Println()
	fmt.Println(strings.Repeat("─", 60))
	fmt.Printf("Session finished: %d round(s), %d message(s), %s, %s\n",
		len(sess.Rounds), len(sess.Messages), formatTokens(sess.TotalTokens), formatCost(sess.TotalCost))
	if path := p.archivePath(); path != "" {
		fmt.Printf("Archive: %s\n", path)
	}
}

func printHelp() {
	fmt.Print(`Commands:
  next (or Enter)   advance one turn, or resume when paused
  say <text>        inject a human intervention into the session
  pause             pause the session
  resume            resume a paused session
  auto <mode>       switch auto-play mode: manual, semi, full
  status            show session state and roster
  close             end the session and archive the transcript
  help              show this help
`)
}

func readLine(reader *bufio.Scanner, prompt string) (string, bool) {
	fmt.Print(prompt)
	if !reader.Scan() {
		fmt.Println()
		return "", false
	}
	return reader.Text(), true
}
