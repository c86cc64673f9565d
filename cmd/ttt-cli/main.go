package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	appcfg "github.com/nreyes-dev/ttt-cli/internal/config"
	"github.com/nreyes-dev/ttt-cli/internal/boardimage"
	"github.com/nreyes-dev/ttt-cli/internal/gamesapi"
	"github.com/nreyes-dev/ttt-cli/internal/identity"
	"github.com/nreyes-dev/ttt-cli/internal/msgcat"
	"github.com/nreyes-dev/ttt-cli/internal/obslog"
	"github.com/nreyes-dev/ttt-cli/internal/presenter"
	"github.com/nreyes-dev/ttt-cli/internal/session"
)

const opTimeout = 30 * time.Second

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("log init error: %v", err)
	}
	defer func() { _ = obslog.L().Sync() }()

	catalog, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	var ids identity.Store
	if cfg.RedisURL != "" {
		rstore, err := identity.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("identity store error: %v", err)
		}
		defer func() { _ = rstore.Close() }()
		ids = rstore
	} else {
		ids = identity.NewFileStore(cfg.PlayerIDFile)
	}

	headers := func() map[string]string {
		h := map[string]string{}
		if tok, err := ids.Get(); err == nil && tok != "" {
			h["X-Player-Id"] = tok
		}
		return h
	}

	client := gamesapi.NewClient(cfg.APIBaseURL,
		gamesapi.WithHeaderProvider(headers),
		gamesapi.WithTimeout(time.Duration(cfg.HTTPTimeoutSec)*time.Second),
		gamesapi.WithRetry(cfg.HTTPRetryMax),
	)

	ctrl := session.NewController(client, ids, obslog.L())
	fmtr := presenter.NewFormatter(catalog)

	fmt.Println("ttt-cli — noughts and crosses against the server CPU")
	fmt.Println(fmtr.PlayerBadge(ctrl.PlayerID()))
	fmt.Println(`Type "help" for commands.`)
	fmt.Println()

	// Initial load: fetch history and auto-select the most recent game.
	runOp(ctrl, fmtr, func(ctx context.Context) error {
		return ctrl.RefreshHistory(ctx, true)
	})
	fmt.Println(fmtr.Board(ctrl.Snapshot()))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, args := strings.ToLower(fields[0]), fields[1:]

		switch cmd {
		case "quit", "exit":
			return
		case "help":
			printHelp()
		case "new":
			runOp(ctrl, fmtr, ctrl.CreateGame)
			fmt.Println(fmtr.Board(ctrl.Snapshot()))
		case "move":
			handleMove(ctrl, fmtr, args)
		case "select":
			handleSelect(ctrl, fmtr, args)
		case "history":
			fmt.Println(fmtr.History(ctrl.Snapshot()))
		case "refresh":
			runOp(ctrl, fmtr, func(ctx context.Context) error {
				return ctrl.RefreshHistory(ctx, false)
			})
			fmt.Println(fmtr.History(ctrl.Snapshot()))
		case "board":
			fmt.Println(fmtr.Board(ctrl.Snapshot()))
		case "export":
			handleExport(ctrl, args)
		case "id":
			fmt.Println(fmtr.PlayerBadge(ctrl.PlayerID()))
		case "forget":
			runOp(ctrl, fmtr, ctrl.ForgetIdentity)
			fmt.Println(fmtr.PlayerBadge(ctrl.PlayerID()))
			fmt.Println(fmtr.Board(ctrl.Snapshot()))
		default:
			fmt.Printf("unknown command %q — type \"help\"\n", cmd)
		}
	}
}

// runOp executes one controller operation with a timeout and prints the
// user-facing message for whatever error it left in the session slot.
func runOp(ctrl *session.Controller, fmtr *presenter.Formatter, op func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	_ = op(ctx)
	if line := fmtr.ErrorLine(ctrl.Snapshot().Err); line != "" {
		fmt.Println(line)
	}
}

func handleMove(ctrl *session.Controller, fmtr *presenter.Formatter, args []string) {
	if len(args) != 2 {
		fmt.Println("usage: move <x> <y>  (zero-based column, row)")
		return
	}
	x, errX := strconv.Atoi(args[0])
	y, errY := strconv.Atoi(args[1])
	if errX != nil || errY != nil {
		fmt.Println("usage: move <x> <y>  (zero-based column, row)")
		return
	}
	before := ctrl.Snapshot()
	runOp(ctrl, fmtr, func(ctx context.Context) error {
		return ctrl.MakeMove(ctx, x, y)
	})
	after := ctrl.Snapshot()
	if before.SelectedGame != nil && after.Err == nil &&
		after.SelectedGame != nil && *after.SelectedGame == *before.SelectedGame {
		fmt.Println("that move is not playable here")
		return
	}
	fmt.Println(fmtr.Board(after))
}

func handleSelect(ctrl *session.Controller, fmtr *presenter.Formatter, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: select <game-id | #index | none>")
		return
	}
	target := args[0]
	if strings.EqualFold(target, "none") {
		target = ""
	} else if strings.HasPrefix(target, "#") {
		idx, err := strconv.Atoi(strings.TrimPrefix(target, "#"))
		games := ctrl.Snapshot().Games
		if err != nil || idx < 1 || idx > len(games) {
			fmt.Println("no such history entry")
			return
		}
		target = games[idx-1].GameID
	}
	id := target
	runOp(ctrl, fmtr, func(ctx context.Context) error {
		return ctrl.SelectGame(ctx, id)
	})
	fmt.Println(fmtr.Board(ctrl.Snapshot()))
}

func handleExport(ctrl *session.Controller, args []string) {
	st := ctrl.Snapshot()
	if st.SelectedGame == nil {
		fmt.Println("no game selected")
		return
	}
	path := "board.png"
	if len(args) > 0 {
		path = args[0]
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	data, err := boardimage.RenderPNG(ctx, st.SelectedGame)
	if err != nil {
		obslog.L().Warn("board export failed", zap.Error(err))
		fmt.Printf("export failed: %v\n", err)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Printf("export failed: %v\n", err)
		return
	}
	fmt.Printf("wrote %s\n", path)
}

func printHelp() {
	fmt.Println(`commands:
  new                 create a new game and select it
  move <x> <y>        play at zero-based column x, row y
  select <id|#n|none> select a game from history (or clear selection)
  board               show the selected game
  history             show the game history and record
  refresh             re-fetch the history list
  export [path]       save the selected board as a PNG (default board.png)
  id                  show the player id badge
  forget              forget the player id and restart a blank session
  quit                leave`)
}
