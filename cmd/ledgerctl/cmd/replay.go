package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/beanbot/backend/internal/audit"
	"github.com/beanbot/backend/internal/config"
	"github.com/beanbot/backend/internal/database"
	"github.com/beanbot/backend/internal/services"
)

const replayUser = "replay"

var (
	replayGap   time.Duration
	replayStart string
	replayJSON  bool
)

var replayCmd = &cobra.Command{
	Use:   "replay [script]",
	Short: "Replay a chat script through the ledger engine",
	Long: `Replay reads one chat message per line and prints every reply.

Script lines:
  Lunch 12.00      any chat message
  !cur_1           press a button on the last message that showed a posting
  @15m             move the clock forward
  /config ...      run a command (/start, /config, /clear, /json)
  // comment       ignored

Messages are spaced --gap apart. Reads stdin when no script is given.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runReplay,
}

func init() {
	replayCmd.Flags().DurationVar(&replayGap, "gap", time.Minute, "time between consecutive messages")
	replayCmd.Flags().StringVar(&replayStart, "start", "", "RFC 3339 time of the first message (default now)")
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "print the exported ledger at the end")
}

func runReplay(cmd *cobra.Command, args []string) {
	in := io.Reader(os.Stdin)
	if len(args) == 1 {
		f, err := os.Open(args[0])
		exitOnError(err, "failed to open script")
		defer f.Close()
		in = f
	}

	start := time.Now()
	if replayStart != "" {
		var err error
		start, err = time.Parse(time.RFC3339, replayStart)
		exitOnError(err, "invalid --start")
	}

	config.Init()
	cfg := config.Load()

	auditLogger := audit.NewAuditLoggerTo(io.Discard)
	if verbose {
		auditLogger = audit.NewAuditLogger()
	}
	bot := services.NewBotService(
		database.NewMemoryLedgerStore(cfg.Ledger.Defaults),
		services.NewLedgerEngine(cfg.Ledger.MergeWindow),
		services.NewConfigService(cfg.Ledger.MaxConfigValues),
		auditLogger,
	)

	r := &replayer{bot: bot, out: cmd.OutOrStdout(), clock: start, gap: replayGap}
	exitOnError(r.run(cmd.Context(), in), "replay failed")

	if replayJSON {
		_, data, err := bot.Export(cmd.Context(), replayUser)
		exitOnError(err, "export failed")
		fmt.Fprintln(r.out, string(data))
	}
}

// replayer plays the role of the chat gateway: it numbers the messages it
// "sends" and reports them back to the bot so buttons can find them.
type replayer struct {
	bot   *services.BotService
	out   io.Writer
	clock time.Time
	gap   time.Duration

	nextMessageID int64
	lastMessageID int64
}

func (r *replayer) run(ctx context.Context, in io.Reader) error {
	if ctx == nil {
		ctx = context.Background()
	}
	scanner := bufio.NewScanner(in)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if err := r.step(ctx, line); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	return scanner.Err()
}

func (r *replayer) step(ctx context.Context, line string) error {
	fmt.Fprintf(r.out, "> %s\n", line)

	var (
		reply *services.Reply
		err   error
	)
	switch {
	case strings.HasPrefix(line, "@"):
		d, perr := time.ParseDuration(line[1:])
		if perr != nil {
			return fmt.Errorf("invalid clock step %q: %w", line, perr)
		}
		r.clock = r.clock.Add(d)
		return nil
	case strings.HasPrefix(line, "!"):
		if r.lastMessageID == 0 {
			return fmt.Errorf("no message to press %q on", line)
		}
		reply, err = r.bot.HandleButton(ctx, replayUser, r.lastMessageID, line[1:], r.tick())
	case strings.HasPrefix(line, "/"):
		reply, err = r.command(ctx, strings.Fields(line))
	default:
		reply, err = r.bot.HandleText(ctx, replayUser, line, r.tick())
	}

	if err != nil {
		if ue, ok := services.AsUserError(err); ok {
			fmt.Fprintf(r.out, "! %s\n\n", ue.Msg)
			return nil
		}
		return err
	}
	return r.show(ctx, reply)
}

func (r *replayer) command(ctx context.Context, fields []string) (*services.Reply, error) {
	switch fields[0] {
	case "/start":
		return r.bot.Start(), nil
	case "/config":
		return r.bot.Configure(ctx, replayUser, fields[1:])
	case "/clear":
		return r.bot.Clear(ctx, replayUser)
	case "/json":
		filename, data, err := r.bot.Export(ctx, replayUser)
		if err != nil {
			return nil, err
		}
		return &services.Reply{Text: filename + "\n" + string(data)}, nil
	}
	return &services.Reply{Text: "Unknown command " + fields[0]}, nil
}

func (r *replayer) show(ctx context.Context, reply *services.Reply) error {
	if reply.Text != "" {
		fmt.Fprintln(r.out, reply.Text)
	}
	for _, row := range reply.Keyboard {
		labels := make([]string, len(row))
		for i, b := range row {
			labels[i] = fmt.Sprintf("[%s|%s]", b.Text, b.Data)
		}
		fmt.Fprintln(r.out, strings.Join(labels, " "))
	}
	fmt.Fprintln(r.out)

	if reply.Edit || reply.TransactionID == 0 {
		return nil
	}
	r.nextMessageID++
	if err := r.bot.RecordMessage(ctx, replayUser, r.nextMessageID, reply.TransactionID, reply.PostingID); err != nil {
		return err
	}
	if reply.PostingID != nil {
		r.lastMessageID = r.nextMessageID
	}
	return nil
}

func (r *replayer) tick() time.Time {
	at := r.clock
	r.clock = r.clock.Add(r.gap)
	return at
}
