// Command nexu runs one peer-to-peer chat endpoint: it binds libp2p,
// restores persisted state, rejoins topics, and drains commands from
// stdin-driven automation or an embedding UI until signaled to stop.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/nexu-chat/nexu/internal/appstate"
	"github.com/nexu-chat/nexu/internal/blob"
	"github.com/nexu-chat/nexu/internal/bridge"
	"github.com/nexu-chat/nexu/internal/config"
	"github.com/nexu-chat/nexu/internal/dm"
	"github.com/nexu-chat/nexu/internal/gossiptopic"
	"github.com/nexu-chat/nexu/internal/identity"
	"github.com/nexu-chat/nexu/internal/persist"
	"github.com/nexu-chat/nexu/internal/reconcile"
	"github.com/nexu-chat/nexu/internal/ticket"
)

func main() {
	var dataDir string
	var boots multiAddrs
	var joinTicket string

	flag.StringVar(&dataDir, "data-dir", "", "directory for identity key, blobs and persisted state (default $HOME/.nexu)")
	flag.Var(&boots, "bootnode", "libp2p multiaddr of a DHT bootstrap peer (repeatable)")
	flag.StringVar(&joinTicket, "join", "", "ticket to join on startup, in addition to any topics restored from disk")
	flag.Parse()

	resolvedDir, err := config.ResolveDataDir(dataDir)
	if err != nil {
		log.Fatalf("resolve data dir: %v", err)
	}
	cfg := config.Default(resolvedDir)
	cfg.Bootstrap = boots
	cfg.JoinTicket = joinTicket

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Printf("shutdown signal received, stopping...")
		cancel()
	}()

	b, closeAll, err := bootEndpoint(ctx, cfg)
	if err != nil {
		log.Fatalf("boot: %v", err)
	}
	defer closeAll()

	if err := b.Bootstrap(ctx); err != nil {
		log.Fatalf("bootstrap state: %v", err)
	}
	if cfg.JoinTicket != "" {
		b.Submit(bridge.JoinTopic{Ticket: cfg.JoinTicket})
	}

	go b.Run(ctx)
	go drainProgress(b)

	readCommands(ctx, b)
}

// bootEndpoint wires C1/C5/C6/C7/C8/C9/C11/C13 into one Bridge and returns
// a cleanup func that closes every owned resource in reverse order.
func bootEndpoint(ctx context.Context, cfg config.Config) (*bridge.Bridge, func(), error) {
	identity.GossipWarmUp = cfg.GossipWarmUp

	ep, err := identity.Bind(ctx, cfg.DataDir, identity.Config{Bootstrap: cfg.Bootstrap})
	if err != nil {
		return nil, nil, fmt.Errorf("bind endpoint: %w", err)
	}
	log.Printf("nexu endpoint %s listening", ep.ID())

	store, err := blob.NewStore(filepath.Join(cfg.DataDir, "store"))
	if err != nil {
		ep.Close()
		return nil, nil, fmt.Errorf("open blob store: %w", err)
	}
	blob.ServeRequests(ep, store)
	downloader := blob.NewDownloader(ep, store)

	dmT := dm.New(ep, cfg.InboxSize)

	gm := gossiptopic.New(ep)

	state := appstate.New(ep.ID())
	reconciler := reconcile.New(state, ep.ID())

	persister, err := persist.NewFileStore(cfg.DataDir, cfg.FlushInterval)
	if err != nil {
		dmT.Close()
		ep.Close()
		return nil, nil, fmt.Errorf("open persistence: %w", err)
	}

	b := bridge.New(ep.ID(), state, gm, dmT, store, downloader, reconciler, persister)
	b.SetJoinAnnounceWarmUp(cfg.JoinAnnounce)

	closeAll := func() {
		persister.Close()
		dmT.Close()
		ep.Close()
	}
	return b, closeAll, nil
}

// drainProgress logs every add/download progress update to stderr; a real
// UI would instead forward Progress() to its own rendering.
func drainProgress(b *bridge.Bridge) {
	for n := range b.Progress() {
		log.Printf("progress: %d bytes", n)
	}
}

// readCommands is a minimal line-oriented driver so this binary is usable
// standalone: "create <name>", "join <ticket>", "send <topic-id> <text>".
// It exits when stdin closes or ctx is cancelled.
func readCommands(ctx context.Context, b *bridge.Bridge) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
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
			if cmd, ok := parseLine(line); ok {
				b.Submit(cmd)
			}
		}
	}
}

func parseLine(line string) (bridge.Command, bool) {
	fields := strings.SplitN(strings.TrimSpace(line), " ", 3)
	if len(fields) == 0 || fields[0] == "" {
		return nil, false
	}
	switch fields[0] {
	case "create":
		if len(fields) < 2 {
			return nil, false
		}
		return bridge.CreateTopic{Name: fields[1]}, true
	case "join":
		if len(fields) < 2 {
			return nil, false
		}
		if _, err := ticket.Parse(fields[1]); err != nil {
			log.Printf("join: invalid ticket: %v", err)
			return nil, false
		}
		return bridge.JoinTopic{Ticket: fields[1]}, true
	case "send":
		if len(fields) < 3 {
			return nil, false
		}
		topicID, err := identity.ParseTopicID(fields[1])
		if err != nil {
			log.Printf("send: invalid topic id: %v", err)
			return nil, false
		}
		return bridge.SendChat{TopicID: topicID, Text: fields[2]}, true
	default:
		log.Printf("unrecognized command %q", fields[0])
		return nil, false
	}
}
