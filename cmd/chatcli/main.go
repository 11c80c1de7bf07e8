// Command chatcli is a terminal client for the chat backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cocoja-ai/chatkit/internal/api"
	"github.com/cocoja-ai/chatkit/internal/chat"
	"github.com/cocoja-ai/chatkit/internal/config"
	"github.com/cocoja-ai/chatkit/internal/errs"
	"github.com/cocoja-ai/chatkit/internal/model"
	"github.com/cocoja-ai/chatkit/internal/session"
	"github.com/cocoja-ai/chatkit/internal/statestore"
	"github.com/cocoja-ai/chatkit/pkg/logger"
	"github.com/cocoja-ai/chatkit/pkg/markdown"
	"github.com/cocoja-ai/chatkit/pkg/tracing"
)

func usage() {
	fmt.Fprintf(os.Stderr, `chatcli
Usage:
  chatcli <cmd> [args]

Commands:
  register  -u <username> -e <email> -p <password>
  login     -u <username-or-email> -p <password>
  logout
  whoami
  mode      [-set session|token]
  list
  new
  send      -m <text> [-c <conversation id>]
  rename    -c <conversation id> -t <title>
  rm        -c <conversation id>
`)
	os.Exit(2)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)
	args := flag.Args()[1:]

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "chatcli", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing")
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	state, err := statestore.Open(cfg.StateDir)
	if err != nil {
		fail(err)
	}
	client, err := api.New(cfg.BaseURL, cfg.HTTPTimeout, log)
	if err != nil {
		fail(err)
	}
	sess := session.NewManager(client, state, session.ParseMode(cfg.DefaultAuthMode), log)
	store := chat.NewStore(client, state, log)

	switch cmd {

	case "register":
		fs := flag.NewFlagSet("register", flag.ExitOnError)
		u := fs.String("u", "", "username")
		e := fs.String("e", "", "email")
		p := fs.String("p", "", "password")
		_ = fs.Parse(args)
		if *u == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -u and -p")
			os.Exit(1)
		}
		user, err := sess.Register(ctx, *u, *e, *p)
		if err != nil {
			fail(err)
		}
		fmt.Printf("registered %s (id %d); now run: chatcli login\n", user.Username, user.ID)

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		u := fs.String("u", "", "username or email")
		p := fs.String("p", "", "password")
		_ = fs.Parse(args)
		if *u == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -u and -p")
			os.Exit(1)
		}
		if err := sess.Login(ctx, *u, *p); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "logout":
		if err := sess.Logout(ctx); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "whoami":
		if err := sess.Initialize(ctx); err != nil && !errors.Is(err, errs.ErrRefreshFailed) {
			fail(err)
		}
		if user, ok := sess.User(); ok {
			fmt.Printf("%s <%s> (%s mode)\n", user.Username, user.Email, sess.Mode())
		} else {
			fmt.Println("not signed in")
		}

	case "mode":
		fs := flag.NewFlagSet("mode", flag.ExitOnError)
		set := fs.String("set", "", "session|token")
		_ = fs.Parse(args)
		if *set != "" {
			sess.SetMode(session.ParseMode(*set))
		}
		fmt.Println(sess.Mode())

	case "list":
		mustInit(ctx, sess, store)
		for _, group := range store.Grouped(time.Now()) {
			fmt.Printf("%s\n", group.Label)
			for _, conv := range group.Conversations {
				title := conv.Title
				if title == "" {
					title = "(untitled)"
				}
				fmt.Printf("  %-6s %s\n", conv.ID, title)
			}
		}

	case "new":
		mustInit(ctx, sess, store)
		conv, err := store.NewConversation(ctx)
		if err != nil {
			fail(err)
		}
		fmt.Println(conv.ID)

	case "send":
		fs := flag.NewFlagSet("send", flag.ExitOnError)
		m := fs.String("m", "", "message text")
		c := fs.String("c", "", "conversation id")
		_ = fs.Parse(args)
		if *m == "" {
			fmt.Fprintln(os.Stderr, "need -m")
			os.Exit(1)
		}
		cmdSend(ctx, sess, store, *m, *c)

	case "rename":
		fs := flag.NewFlagSet("rename", flag.ExitOnError)
		c := fs.String("c", "", "conversation id")
		t := fs.String("t", "", "new title")
		_ = fs.Parse(args)
		if *c == "" || *t == "" {
			fmt.Fprintln(os.Stderr, "need -c and -t")
			os.Exit(1)
		}
		mustInit(ctx, sess, store)
		store.Rename(ctx, parseConvID(*c), *t)
		fmt.Println("ok")

	case "rm":
		fs := flag.NewFlagSet("rm", flag.ExitOnError)
		c := fs.String("c", "", "conversation id")
		_ = fs.Parse(args)
		if *c == "" {
			fmt.Fprintln(os.Stderr, "need -c")
			os.Exit(1)
		}
		mustInit(ctx, sess, store)
		if err := store.Delete(ctx, parseConvID(*c)); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	default:
		usage()
	}

	// Let in-flight message/title writes settle before the process exits.
	store.Flush()
}

// mustInit resolves identity and, when authenticated, loads the conversation
// list. An ended token session just means the user continues unauthenticated.
func mustInit(ctx context.Context, sess *session.Manager, store *chat.Store) {
	if err := sess.Initialize(ctx); err != nil {
		if !errors.Is(err, errs.ErrRefreshFailed) {
			fail(err)
		}
		fmt.Fprintln(os.Stderr, "session expired; sign in again")
	}
	if sess.Authenticated() {
		if err := store.InitForUser(ctx); err != nil {
			fail(err)
		}
	}
}

func parseConvID(s string) model.ConversationID {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return model.RemoteID(n)
	}
	return model.LocalID(s)
}

func cmdSend(ctx context.Context, sess *session.Manager, store *chat.Store, text, convID string) {
	mustInit(ctx, sess, store)
	authenticated := sess.Authenticated()

	if !authenticated && !store.CanPost() {
		fail(fmt.Errorf("guest limit of %d messages reached; sign in to continue", chat.GuestPostLimit))
	}
	if convID != "" {
		if err := store.SwitchTo(ctx, parseConvID(convID)); err != nil {
			fail(err)
		}
	}

	if err := store.Send(ctx, text, authenticated); err != nil {
		// The optimistic user message may still be persisting in the
		// background even though the ask failed.
		store.Flush()
		fail(err)
	}

	msgs := store.CurrentMessages()
	if len(msgs) == 0 {
		return
	}
	last := msgs[len(msgs)-1]
	if last.Role != model.RoleAssistant {
		return
	}
	if r, err := markdown.New(80); err == nil {
		fmt.Print(r.Render(last.Text))
	} else {
		fmt.Println(last.Text)
	}
}
