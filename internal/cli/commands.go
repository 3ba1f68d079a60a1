package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"codeuchat/pkg/ids"
	"codeuchat/pkg/models"
)

func newInfoCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show server identity and uptime",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := s.client(cmd)
			if err != nil {
				return err
			}
			info, err := c.ServerInfo(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "server:  %s\n", info.ServerID)
			fmt.Fprintf(w, "version: %s\n", info.Version)
			fmt.Fprintf(w, "started: %s (%s)\n", info.StartTime.Format(time.RFC3339), humanize.Time(info.StartTime))
			fmt.Fprintf(w, "uptime:  %s\n", info.Uptime.Round(time.Second))
			return nil
		},
	}
}

func newUserCmd(s *session) *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Create, list and delete users"}
	user.AddCommand(
		&cobra.Command{
			Use:   "add <name>",
			Short: "Create a user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := s.client(cmd)
				if err != nil {
					return err
				}
				u, err := c.NewUser(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if u == nil {
					return fmt.Errorf("user %q rejected by server", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), u.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List users by creation time",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				c, err := s.client(cmd)
				if err != nil {
					return err
				}
				users, err := c.Users(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tCREATED")
				for _, u := range users {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", u.ID, u.Name, humanize.Time(u.Creation))
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				c, err := s.client(cmd)
				if err != nil {
					return err
				}
				ok, err := c.DeleteUser(cmd.Context(), id)
				if err != nil {
					return err
				}
				return okOrFail(cmd.OutOrStdout(), ok, "delete")
			},
		},
	)
	return user
}

func parseControl(s string) (models.Control, error) {
	switch strings.ToLower(s) {
	case "public", "1":
		return models.ControlPublic, nil
	case "private", "0":
		return models.ControlPrivate, nil
	}
	return 0, fmt.Errorf("unknown control %q: want public or private", s)
}

// parseAccess reads a comma separated role list such as "member,owner".
// "none" clears every role.
func parseAccess(s string) (models.Access, error) {
	var a models.Access
	for _, part := range strings.Split(s, ",") {
		switch strings.TrimSpace(strings.ToLower(part)) {
		case "member":
			a |= models.AccessMember
		case "owner":
			a |= models.AccessOwner
		case "removed":
			a |= models.AccessRemoved
		case "none", "":
		default:
			return 0, fmt.Errorf("unknown role %q", part)
		}
	}
	return a, nil
}

func parseKind(s string) (models.Kind, error) {
	for _, k := range []models.Kind{models.KindMember, models.KindOwner, models.KindCreator, models.KindRemoved} {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown kind %q: want member, owner, creator or removed", s)
}

func newConvCmd(s *session) *cobra.Command {
	conv := &cobra.Command{Use: "conv", Short: "Manage conversations and access"}

	var owner string
	var public bool
	add := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a conversation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ownerID, err := parseID(owner)
			if err != nil {
				return fmt.Errorf("--owner: %w", err)
			}
			c, err := s.client(cmd)
			if err != nil {
				return err
			}
			control := models.ControlPrivate
			if public {
				control = models.ControlPublic
			}
			title := strings.Join(args, " ")
			h, err := c.NewConversation(cmd.Context(), title, ownerID, control)
			if err != nil {
				return err
			}
			if h == nil {
				return fmt.Errorf("conversation %q rejected by server", title)
			}
			fmt.Fprintln(cmd.OutOrStdout(), h.ID)
			return nil
		},
	}
	add.Flags().StringVar(&owner, "owner", "", "id of the creating user")
	add.Flags().BoolVar(&public, "public", false, "let every user post")
	_ = add.MarkFlagRequired("owner")

	list := &cobra.Command{
		Use:   "list",
		Short: "List conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := s.client(cmd)
			if err != nil {
				return err
			}
			convs, err := c.Conversations(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tOWNER\tCONTROL\tCREATED")
			for _, h := range convs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", h.ID, h.Title, h.Owner, h.Control, humanize.Time(h.Creation))
			}
			return tw.Flush()
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := s.client(cmd)
			if err != nil {
				return err
			}
			ok, err := c.DeleteConversation(cmd.Context(), id)
			if err != nil {
				return err
			}
			return okOrFail(cmd.OutOrStdout(), ok, "delete")
		},
	}

	def := &cobra.Command{
		Use:   "default <id> [public|private]",
		Short: "Show or change the default access control",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := s.client(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				ctl, err := c.Default(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ctl == nil {
					return fmt.Errorf("unknown conversation %s", id)
				}
				fmt.Fprintln(cmd.OutOrStdout(), *ctl)
				return nil
			}
			ctl, err := parseControl(args[1])
			if err != nil {
				return err
			}
			ok, err := c.ChangeDefault(cmd.Context(), id, ctl)
			if err != nil {
				return err
			}
			return okOrFail(cmd.OutOrStdout(), ok, "change default")
		},
	}

	access := &cobra.Command{
		Use:   "access <username> <conversation> <roles>",
		Short: "Set a user's roles, e.g. member,owner or removed or none",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			flags, err := parseAccess(args[2])
			if err != nil {
				return err
			}
			c, err := s.client(cmd)
			if err != nil {
				return err
			}
			ok, err := c.ChangeAccess(cmd.Context(), args[0], id, flags)
			if err != nil {
				return err
			}
			return okOrFail(cmd.OutOrStdout(), ok, "change access")
		},
	}

	check := &cobra.Command{
		Use:   "check <user-id> <conversation> <member|owner|creator|removed>",
		Short: "Test a user's standing in a conversation",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := parseID(args[0])
			if err != nil {
				return err
			}
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			kind, err := parseKind(args[2])
			if err != nil {
				return err
			}
			c, err := s.client(cmd)
			if err != nil {
				return err
			}
			yes, err := c.CheckAccess(cmd.Context(), user, id, kind)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), yes)
			return nil
		},
	}

	conv.AddCommand(add, list, del, def, access, check)
	return conv
}

func newMsgCmd(s *session) *cobra.Command {
	msg := &cobra.Command{Use: "msg", Short: "Post and read messages"}

	add := &cobra.Command{
		Use:   "add <author-id> <conversation> <text...>",
		Short: "Post a message",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			author, err := parseID(args[0])
			if err != nil {
				return err
			}
			conv, err := parseID(args[1])
			if err != nil {
				return err
			}
			c, err := s.client(cmd)
			if err != nil {
				return err
			}
			m, err := c.NewMessage(cmd.Context(), author, conv, strings.Join(args[2:], " "))
			if err != nil {
				return err
			}
			if m == nil {
				return errors.New("message rejected by server")
			}
			fmt.Fprintln(cmd.OutOrStdout(), m.ID)
			return nil
		},
	}

	var limit int
	list := &cobra.Command{
		Use:   "list <conversation>",
		Short: "Print a conversation from its first message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := s.client(cmd)
			if err != nil {
				return err
			}
			payloads, err := c.Payloads(cmd.Context(), []ids.ID{conv})
			if err != nil {
				return err
			}
			if len(payloads) == 0 {
				return fmt.Errorf("unknown conversation %s", conv)
			}
			users, err := c.Users(cmd.Context())
			if err != nil {
				return err
			}
			names := make(map[ids.ID]string, len(users))
			for _, u := range users {
				names[u.ID] = u.Name
			}

			w := cmd.OutOrStdout()
			next := payloads[0].FirstMessage
			for n := 0; !next.IsNull() && (limit <= 0 || n < limit); n++ {
				found, err := c.Messages(cmd.Context(), []ids.ID{next})
				if err != nil {
					return err
				}
				if len(found) == 0 {
					return fmt.Errorf("message %s missing from chain", next)
				}
				m := found[0]
				author := names[m.Author]
				if author == "" {
					author = m.Author.String()
				}
				fmt.Fprintf(w, "[%s] %s: %s\n", m.Creation.Format("2006-01-02 15:04:05"), author, m.Content)
				next = m.Next
			}
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 0, "stop after this many messages (0 for all)")

	msg.AddCommand(add, list)
	return msg
}
