package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/canvaschat/internal/app"
	"github.com/vovakirdan/canvaschat/internal/auth"
	"github.com/vovakirdan/canvaschat/internal/config"
	"github.com/vovakirdan/canvaschat/internal/core"
	"github.com/vovakirdan/canvaschat/internal/identity"
)

const joinHelp = `commands:
  say <text>                 place text at the center of the view
  put <x> <y> <text>         place text at canvas coordinates
  click <sx> <sy> <text>     click at a screen point and place text there
  drag <x0> <y0> <x1> <y1>   drag the view with the pointer
  edit <id> <text>           replace the text of a message
  zoom <scale>               zoom around the view center
  wheel <sx> <sy> <delta>    wheel zoom around a screen point
  jump <x> <y>               center a canvas point
  center                     show the whole plane at scale 1
  name <name>                change display name (empty for anonymous)
  color <#hex>               change color
  reauth                     fetch a new credential and reconnect
  reset                      forget this identity and reconnect as a new one
  show                       print messages, users and viewport
  stats                      print connection counters
  quit`

// NewJoinCommand creates the join command.
func NewJoinCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "join [room]",
		Short: "Join a room and read commands from stdin",
		Long: `Join a room on the shared canvas.

Messages from other participants are printed as they arrive. Lines read
from stdin are commands; type "help" for the list.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var overrides config.Config
			if len(args) == 1 {
				overrides.Room = args[0]
			}
			return runJoin(cmd, rootOpts, overrides)
		},
	}
}

func runJoin(cmd *cobra.Command, rootOpts *RootOptions, overrides config.Config) error {
	env, err := loadEnvironment(rootOpts, overrides, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var opts []app.Option
	if p := auth.NewProvider(env.cfg); p != nil {
		opts = append(opts, app.WithProvider(p))
	}
	session, err := app.NewSession(ctx, env.cfg, env.profile, env.log, opts...)
	if err != nil {
		return err
	}
	defer session.Close()

	out := &lockedWriter{w: cmd.OutOrStdout()}
	id := session.Identity()
	fmt.Fprintf(out, "joined %s as %s (%s). type \"help\" for commands.\n",
		env.cfg.Room, displayOrID(id.Username, id.UserID), id.UserID)

	runErr := make(chan error, 1)
	go func() {
		defer cancel()
		runErr <- session.Run(ctx)
	}()

	f := newFeed(session, out)
	feedDone := make(chan struct{})
	go func() {
		defer close(feedDone)
		f.follow(ctx)
	}()

	r := &repl{session: session, out: out}
	readCommands(ctx, cmd.InOrStdin(), r)

	cancel()
	<-feedDone
	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// readCommands feeds stdin lines to r until quit, EOF or cancellation.
func readCommands(ctx context.Context, in io.Reader, r *repl) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			quit, err := r.exec(ctx, line)
			if err != nil {
				fmt.Fprintf(r.out, "error: %v\n", err)
			}
			if quit {
				return
			}
		}
	}
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// repl executes one command line against a session.
type repl struct {
	session *app.Session
	out     io.Writer
}

var errUsage = errors.New("bad arguments, see help")

func (r *repl) exec(ctx context.Context, line string) (quit bool, err error) {
	verb, rest := splitWord(strings.TrimSpace(line))
	s := r.session
	engine := s.Engine()

	switch verb {
	case "":
		return false, nil
	case "help", "?":
		fmt.Fprintln(r.out, joinHelp)
	case "quit", "exit":
		return true, nil

	case "say":
		if rest == "" {
			return false, errUsage
		}
		v := engine.Visible()
		id, err := s.PlaceAtScreen(ctx, v.Width/2, v.Height/2, rest)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "placed %s\n", id)
	case "put":
		nums, text, err := parseArgs(rest, 2)
		if err != nil || text == "" {
			return false, errUsage
		}
		id, err := s.PlaceMessage(ctx, nums[0], nums[1], text)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "placed %s\n", id)
	case "click":
		nums, text, err := parseArgs(rest, 2)
		if err != nil || text == "" {
			return false, errUsage
		}
		s.PointerDown(nums[0], nums[1])
		x, y, ok := s.PointerUp(nums[0], nums[1])
		if !ok {
			return false, app.ErrOutOfBounds
		}
		id, err := s.PlaceMessage(ctx, x, y, text)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "placed %s at (%.0f, %.0f)\n", id, x, y)
	case "drag":
		nums, _, err := parseArgs(rest, 4)
		if err != nil {
			return false, errUsage
		}
		s.PointerDown(nums[0], nums[1])
		s.PointerMove(nums[2], nums[3])
		s.PointerUp(nums[2], nums[3])
		r.printViewport()
	case "edit":
		id, text := splitWord(rest)
		if id == "" {
			return false, errUsage
		}
		if err := s.EditMessage(ctx, id, text); err != nil {
			return false, err
		}
	case "zoom":
		nums, _, err := parseArgs(rest, 1)
		if err != nil {
			return false, errUsage
		}
		v := engine.Visible()
		engine.Zoom(v.Width/2, v.Height/2, nums[0])
		r.printViewport()
	case "wheel":
		nums, _, err := parseArgs(rest, 3)
		if err != nil {
			return false, errUsage
		}
		engine.ZoomBy(nums[0], nums[1], nums[2])
		r.printViewport()
	case "jump":
		nums, _, err := parseArgs(rest, 2)
		if err != nil {
			return false, errUsage
		}
		engine.Jump(nums[0], nums[1])
		r.printViewport()
	case "center":
		engine.Recenter()
		r.printViewport()

	case "name":
		if err := s.SetUsername(ctx, rest); err != nil {
			return false, err
		}
	case "color":
		if err := s.SetColor(ctx, rest); err != nil {
			return false, err
		}
	case "reauth":
		return false, s.Reauthenticate(ctx)
	case "reset":
		if err := s.ResetIdentity(ctx); err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "new identity %s\n", s.Identity().UserID)

	case "show":
		r.show()
	case "stats":
		st := s.Stats()
		fmt.Fprintf(r.out, "connected=%t received=%d unknown=%d malformed=%d dropped=%d\n",
			s.Connected(), st.Received, st.UnknownFrames, st.MalformedFrames, st.DroppedSends)
	default:
		return false, fmt.Errorf("unknown command %q", verb)
	}
	return false, nil
}

func (r *repl) printViewport() {
	v := r.session.State().Viewport()
	fmt.Fprintf(r.out, "viewport x=%.1f y=%.1f scale=%.2f\n", v.X, v.Y, v.Scale)
}

func (r *repl) show() {
	state := r.session.State()

	users := newTable(r.out, "User", "Name", "Color")
	for _, u := range state.Users() {
		users.Append([]string{u.ID, displayOrID(u.Username, u.ID), u.Color})
	}
	users.Render()

	msgs := newTable(r.out, "Message", "Author", "X", "Y", "State", "Text")
	for _, m := range state.Messages() {
		st := "live"
		if m.FadeOut {
			st = "fading"
		}
		msgs.Append([]string{
			m.ID, authorName(state, m.AuthorID),
			strconv.FormatFloat(m.X, 'f', 0, 64), strconv.FormatFloat(m.Y, 'f', 0, 64),
			st, m.Content,
		})
	}
	msgs.Render()

	r.printViewport()
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

// feed prints remote messages as they appear or change.
type feed struct {
	session *app.Session
	out     io.Writer
	seen    map[string]string
}

func newFeed(s *app.Session, out io.Writer) *feed {
	return &feed{session: s, out: out, seen: make(map[string]string)}
}

func (f *feed) follow(ctx context.Context) {
	changes := f.session.State().Changes()
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			f.render()
		}
	}
}

func (f *feed) render() {
	state := f.session.State()
	self := f.session.Identity().UserID

	live := make(map[string]string)
	for _, m := range state.Messages() {
		live[m.ID] = m.Content
		if m.AuthorID == self || f.seen[m.ID] == m.Content {
			continue
		}
		if _, ok := f.seen[m.ID]; !ok && m.FadeOut {
			continue
		}
		fmt.Fprintf(f.out, "[%s] %s (%.0f, %.0f)\n", paintedAuthor(state, m), m.Content, m.X, m.Y)
	}
	f.seen = live
}

func authorName(state *core.State, id string) string {
	if u, ok := state.User(id); ok {
		return displayOrID(u.Username, u.ID)
	}
	return displayOrID("", id)
}

func displayOrID(name, id string) string {
	if name != "" {
		return name
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// paintedAuthor renders the author name in the author's palette color.
func paintedAuthor(state *core.State, m core.Message) string {
	name := authorName(state, m.AuthorID)
	if !identity.IsPaletteColor(m.Color) {
		return name
	}
	return color.HEX(m.Color).Sprint(name)
}

func splitWord(s string) (string, string) {
	word, rest, _ := strings.Cut(strings.TrimSpace(s), " ")
	return word, strings.TrimSpace(rest)
}

// parseArgs reads n leading numbers and returns them with the remaining text.
func parseArgs(s string, n int) ([]float64, string, error) {
	nums := make([]float64, 0, n)
	rest := s
	for i := 0; i < n; i++ {
		var word string
		word, rest = splitWord(rest)
		v, err := strconv.ParseFloat(word, 64)
		if err != nil {
			return nil, "", fmt.Errorf("argument %d: %w", i+1, err)
		}
		nums = append(nums, v)
	}
	return nums, rest, nil
}
