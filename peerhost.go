/*
Peerhost is a reliable UDP multiplayer server that echoes or
broadcasts the packets its clients send
*/
package main

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/HimbeerserverDE/peerhost/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

const (
	defaultPort          = 40000
	defaultMaxPeers      = 32
	defaultChannels      = 2
	defaultUpdateTimeout = 100
)

func main() {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:   "peerhost",
		Short: "Reliable UDP multiplayer server",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return LoadConfig(cfgPath)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultConfigPath, "configuration file")

	rootCmd.AddCommand(
		banCmd(),
		unbanCmd(),
		banlistCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// serverConfig builds the server configuration from the config file
func serverConfig() server.Config {
	return server.Config{
		Host:              confString("bind", ""),
		Port:              uint16(confInt("port", defaultPort)),
		MaxPeers:          confInt("max_peers", defaultMaxPeers),
		Channels:          confInt("channels", defaultChannels),
		IncomingBandwidth: uint32(confInt("incoming_bandwidth", 0)),
		OutgoingBandwidth: uint32(confInt("outgoing_bandwidth", 0)),
	}
}

func run() error {
	log, logFile, err := newLogger(logDir, confString("log_level", "info"))
	if err != nil {
		return err
	}

	bans, err := OpenBanList(confString("ban_db", defaultBanDB), log)
	if err != nil {
		logFile.Close()
		return err
	}

	cfg := serverConfig()
	cfg.Accept = bans.Accept
	cfg.Log = log

	s, err := server.New(cfg)
	if err != nil {
		end(nil, nil, bans, logFile, log)
		return err
	}

	s.UseCompression(confBool("compression", false))

	err = registerHandlers(s, confString("mode", ModeEcho), log)
	if err != nil {
		end(s, nil, bans, logFile, log)
		return err
	}

	var metrics *http.Server
	if addr := confString("metrics_addr", ""); addr != "" {
		metrics = serveMetrics(addr, s, log)
	}

	log.WithFields(logrus.Fields{
		"addr":      s.LocalAddr().String(),
		"max_peers": s.MaxClients(),
		"channels":  cfg.Channels,
	}).Info("listening")

	ctx, stop := shutdownContext()
	defer stop()

	timeout := time.Duration(confInt("update_timeout_ms", defaultUpdateTimeout)) * time.Millisecond

	var runErr error
	for ctx.Err() == nil {
		if runErr = s.Update(timeout); runErr != nil {
			log.WithError(runErr).Error("update failed")
			break
		}
	}

	if ctx.Err() != nil {
		log.Info("caught SIGINT or SIGTERM, shutting down")
	}

	return multierr.Append(runErr, end(s, metrics, bans, logFile, log))
}

// openBans opens the ban list for the management subcommands
func openBans() (*BanList, error) {
	l := logrus.New()
	l.Out = os.Stderr

	return OpenBanList(confString("ban_db", defaultBanDB), l)
}

func banCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ban <ip> [name]",
		Short: "Ban an IP address",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bans, err := openBans()
			if err != nil {
				return err
			}
			defer bans.Close()

			var name string
			if len(args) > 1 {
				name = args[1]
			}

			return bans.Ban(args[0], name)
		},
	}
}

func unbanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unban <ip|name>",
		Short: "Remove a ban by address or name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bans, err := openBans()
			if err != nil {
				return err
			}
			defer bans.Close()

			return bans.Unban(args[0])
		},
	}
}

func banlistCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "banlist",
		Short: "List banned addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bans, err := openBans()
			if err != nil {
				return err
			}
			defer bans.Close()

			list, err := bans.List()
			if err != nil {
				return err
			}

			addrs := make([]string, 0, len(list))
			for addr := range list {
				addrs = append(addrs, addr)
			}
			sort.Strings(addrs)

			out := cmd.OutOrStdout()
			for _, addr := range addrs {
				fmt.Fprintf(out, "%s\t%s\n", addr, list[addr])
			}

			return nil
		},
	}
}
