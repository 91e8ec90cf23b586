// Command faxrelay is a CLI client for the fax relay: session
// initialization, bearer retrieval and download-history sync.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/telany/faxrelay/internal/client/history"
	"github.com/telany/faxrelay/internal/client/session"
	"github.com/telany/faxrelay/internal/client/state"
)

// ---- local files ----

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "faxrelay")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "faxrelay")
}

func statePath() string { return filepath.Join(cfgDir(), "config.json") }
func indexPath() string { return filepath.Join(cfgDir(), "downloaded_index.json") }
func queuePath() string { return filepath.Join(cfgDir(), "history_sync_queue.json") }

// ---- utils ----

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func usage() {
	fmt.Fprintf(os.Stderr, `faxrelay CLI
Usage:
  faxrelay -server URL <cmd> [args]

Commands:
  version
  init       -user <fax_user> -token <auth_token>   (saves session)
  bearer                                            (prints upstream bearer token)
  sync-pull                                         (rebuild local index if empty)
  sync-flush                                        (deliver queued ids)
  reconcile                                         (two-way history sync)
  mark       -id <fax_id>                           (record a downloaded id)
  status                                            (print local state)
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands over the persisted session.
func main() {
	server := flag.String("server", "https://localhost:8443", "relay server URL")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	store, err := state.Load(statePath())
	if err != nil {
		fail(err)
	}
	sess := session.New(*server, store)

	engine := func() *history.Engine {
		idx, err := history.OpenIndex(indexPath())
		if err != nil {
			fail(err)
		}
		q, err := history.OpenQueue(queuePath())
		if err != nil {
			fail(err)
		}
		return history.NewEngine(*server, sess, idx, q)
	}

	switch cmd {

	case "version":
		fmt.Printf("faxrelay %s (%s)\n", version, buildDate)

	case "init":
		fs := flag.NewFlagSet("init", flag.ExitOnError)
		user := fs.String("user", "", "fax user, e.g. 100@sample.acme.service")
		token := fs.String("token", "", "shared authentication token")
		_ = fs.Parse(flag.Args()[1:])
		if *user == "" || *token == "" {
			fmt.Fprintln(os.Stderr, "need -user and -token")
			os.Exit(1)
		}

		if err := sess.Initialize(ctx, *user, *token); err != nil {
			fail(err)
		}
		st := store.Get()
		printJSON(map[string]any{
			"domain_uuid":     st.Account.DomainUUID,
			"all_fax_numbers": st.Account.AllFaxNumbers,
		})

	case "bearer":
		tok, err := sess.UpstreamToken(ctx)
		if err != nil {
			fail(err)
		}
		fmt.Println(tok)

	case "sync-pull":
		e := engine()
		if err := e.PullIfMissing(ctx); err != nil {
			fail(err)
		}
		fmt.Printf("local index: %d ids\n", e.Index().Len())

	case "sync-flush":
		e := engine()
		if err := e.FlushQueue(ctx); err != nil {
			fail(err)
		}
		fmt.Printf("queue remaining: %d ids\n", len(e.Queue().Pending()))

	case "reconcile":
		e := engine()
		if err := e.Reconcile(ctx); err != nil {
			fail(err)
		}
		fmt.Printf("local index: %d ids, queue: %d ids\n", e.Index().Len(), len(e.Queue().Pending()))

	case "mark":
		fs := flag.NewFlagSet("mark", flag.ExitOnError)
		id := fs.String("id", "", "downloaded fax id")
		_ = fs.Parse(flag.Args()[1:])
		if *id == "" {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}
		if err := engine().MarkDownloaded(ctx, *id); err != nil {
			fail(err)
		}

	case "status":
		st := store.Get()
		printJSON(map[string]any{
			"fax_user":          st.Account.FaxUser,
			"domain_uuid":       st.Account.DomainUUID,
			"validation_status": st.Account.ValidationStatus,
			"has_jwt":           st.Token.JWTToken != "",
			"bearer_expires_at": st.Token.BearerTokenExpiresAt,
		})

	default:
		usage()
	}
}
