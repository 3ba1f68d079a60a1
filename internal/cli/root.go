// Package cli implements chatctl, a scriptable client for a chat server.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"codeuchat/pkg/client"
	"codeuchat/pkg/ids"
)

var errNoServer = errors.New("no server address: pass --server or set server in ~/.chatctl.yaml")

type session struct {
	settingsPath string
	server       string
	timeout      time.Duration
}

// client resolves the server from the flag, then the settings file.
func (s *session) client(cmd *cobra.Command) (*client.Client, error) {
	addr := s.server
	timeout := s.timeout
	if !cmd.Flags().Changed("server") || !cmd.Flags().Changed("timeout") {
		st, err := LoadSettings(s.settingsPath)
		if err != nil {
			return nil, err
		}
		if !cmd.Flags().Changed("server") && st.Server != "" {
			addr = st.Server
		}
		if !cmd.Flags().Changed("timeout") && st.Timeout != "" {
			d, err := time.ParseDuration(st.Timeout)
			if err != nil {
				return nil, fmt.Errorf("settings timeout: %w", err)
			}
			timeout = d
		}
	}
	if addr == "" {
		return nil, errNoServer
	}
	return client.New(addr, client.WithTimeout(timeout)), nil
}

// NewRootCmd builds the chatctl command tree.
func NewRootCmd(version string) *cobra.Command {
	s := &session{}
	root := &cobra.Command{
		Use:           "chatctl",
		Short:         "Command line client for a codeuchat server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVarP(&s.server, "server", "s", "", "server address host:port")
	root.PersistentFlags().DurationVar(&s.timeout, "timeout", 5*time.Second, "per-request timeout")
	root.PersistentFlags().StringVarP(&s.settingsPath, "config", "c", DefaultSettingsPath(), "settings file")

	root.AddCommand(
		newInfoCmd(s),
		newUserCmd(s),
		newConvCmd(s),
		newMsgCmd(s),
		newConfigCmd(s),
	)
	return root
}

// Execute runs chatctl and exits non-zero on failure.
func Execute(version string) {
	if err := NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseID(s string) (ids.ID, error) {
	id, err := ids.Parse(s)
	if err != nil {
		return ids.Null, err
	}
	if id.IsNull() {
		return ids.Null, fmt.Errorf("id must not be %s", ids.Null)
	}
	return id, nil
}

func okOrFail(w io.Writer, ok bool, what string) error {
	if !ok {
		return fmt.Errorf("%s rejected by server", what)
	}
	fmt.Fprintln(w, "ok")
	return nil
}

func newConfigCmd(s *session) *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage chatctl settings"}
	cfg.AddCommand(&cobra.Command{
		Use:   "set-server <host:port>",
		Short: "Store the default server address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if s.settingsPath == "" {
				return errors.New("no settings path: pass --config")
			}
			st, err := LoadSettings(s.settingsPath)
			if err != nil {
				return err
			}
			st.Server = args[0]
			if err := SaveSettings(st, s.settingsPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "server set to %s in %s\n", st.Server, s.settingsPath)
			return nil
		},
	})
	return cfg
}
