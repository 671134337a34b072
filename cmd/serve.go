package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/holpsBot/proof-of-wake/api"
	"github.com/holpsBot/proof-of-wake/config"
	"github.com/holpsBot/proof-of-wake/logger"
	"github.com/holpsBot/proof-of-wake/node"
)

const shutdownTimeout = 10 * time.Second

var serveFlags struct {
	listen string
	p2p    bool
	faucet bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a ledger node serving JSON-RPC over HTTP and libp2p",
	Long: `Opens the local ledger and serves it to apps and other CLIs: JSON-RPC and
read-only views over HTTP, and with --p2p the same JSON-RPC over libp2p streams.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.listen, "listen", "", "HTTP listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveFlags.p2p, "p2p", false, "also serve over libp2p")
	serveCmd.Flags().BoolVar(&serveFlags.faucet, "faucet", false, "enable requestAirdrop (development ledgers only)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.FromContext(cmd.Context())
	if cfg.Transport != config.TransportLocal {
		return fmt.Errorf("serve needs the local transport, not %q", cfg.Transport)
	}
	if serveFlags.listen != "" {
		cfg.ListenAddress = serveFlags.listen
	}
	if cmd.Flags().Changed("faucet") {
		cfg.Faucet = serveFlags.faucet
	}
	log := logger.New(os.Stderr, cfg.LogFormat, cfg.Debug)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rt, store, err := openLocalLedger(cfg, log, reg)
	if err != nil {
		return err
	}
	defer store.Close()
	if cfg.Faucet {
		log.Warn("airdrop faucet is enabled, anyone who can reach this node can mint lamports", "component", "cli")
	}

	server := api.NewServer(rt, api.ServerConfig{
		ListenAddress: cfg.ListenAddress,
		CorsOrigins:   cfg.CorsOrigins,
		Clock:         rt.Clock(),
		Logger:        log,
		PromRegistry:  reg,
	})

	var n *node.Node
	if serveFlags.p2p {
		n, err = node.New(rt, node.Config{
			ListenAddrs:    cfg.P2PListenAddrs,
			BootstrapPeers: cfg.BootstrapPeers,
			EnableMDNS:     cfg.EnableMDNS,
			EnableDHT:      cfg.EnableDHT,
			Logger:         log,
		})
		if err != nil {
			return err
		}
		server.Mount("/api/peers", n.PeersHandler())
		fmt.Println(titleStyle.Render("🌐 libp2p node online"))
		for _, addr := range n.Addrs() {
			fmt.Printf("   %s\n", addr)
		}
	}

	if err := server.Start(); err != nil {
		if n != nil {
			_ = n.Close()
		}
		return err
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("⏰ Proof of Wake ledger serving on %s (slot %d)", server.Addr(), rt.Slot())))

	<-ctx.Done()
	log.Info("shutting down", "component", "cli")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	errs := []error{server.Shutdown(shutdownCtx)}
	if n != nil {
		errs = append(errs, n.Close())
	}
	return errors.Join(errs...)
}
