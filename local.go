/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Seednode/imposterbox/games/imposter"
	"github.com/spf13/cobra"
)

type localOptions struct {
	db        string
	players   string
	impostors int
	theme     string
}

func newLocalCmd(cfg *Config) *cobra.Command {
	opts := &localOptions{}

	cmd := &cobra.Command{
		Use:   "local",
		Short: "Play pass-and-play on this device: everyone shares one screen and takes turns peeking at their role.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocal(cmd.Context(), cfg, opts, os.Stdin, cmd.OutOrStdout())
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&opts.db, "db", ":memory:", "path to the local session database")
	fs.StringVar(&opts.players, "players", "", "comma-separated player names (prompted if omitted)")
	fs.IntVar(&opts.impostors, "impostors", 1, "number of impostors")
	fs.StringVar(&opts.theme, "theme", "", "theme for the secret word (prompted if omitted)")

	return cmd
}

func readLine(in *bufio.Scanner, out io.Writer, prompt string) string {
	fmt.Fprint(out, prompt)
	if !in.Scan() {
		return ""
	}
	return strings.TrimSpace(in.Text())
}

func splitNames(raw string) []string {
	var names []string
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func runLocal(ctx context.Context, cfg *Config, opts *localOptions, stdin io.Reader, out io.Writer) error {
	store, err := imposter.OpenSQLite(opts.db)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions := imposter.NewSessions(store, newWordSource(cfg), cfg.codeLength)
	in := bufio.NewScanner(stdin)

	names := splitNames(opts.players)
	for len(names) < imposter.MinPlayers {
		raw := readLine(in, out, "Enter player names, comma-separated (at least 2): ")
		if raw == "" {
			return fmt.Errorf("need at least %d players", imposter.MinPlayers)
		}
		names = splitNames(raw)
	}

	theme := strings.TrimSpace(opts.theme)
	if theme == "" {
		theme = readLine(in, out, "Enter a theme for the secret word: ")
		if theme == "" {
			return fmt.Errorf("a theme is required")
		}
	}

	game, err := imposter.NewPassPlay(sessions, names, imposter.Settings{
		ImpostorCount: opts.impostors,
		Theme:         theme,
	})
	if err != nil {
		return err
	}

	if _, err := game.Begin(ctx); err != nil {
		return err
	}

	for {
		if err := revealAll(game, in, out); err != nil {
			return err
		}

		speaker, err := game.FirstSpeaker()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nEveryone has seen their role. %s speaks first!\n", speaker.Name)
		fmt.Fprintln(out, "Talk it out, then vote for the impostor.")

		if !strings.EqualFold(readLine(in, out, "\nPlay another round with the same group? [y/N]: "), "y") {
			return game.Retire()
		}

		if _, err := game.PlayAgain(ctx); err != nil {
			return err
		}
	}
}

// revealAll passes the device around in join order and shows each player
// their role, pushing it off-screen again before the next player looks.
func revealAll(game *imposter.PassPlay, in *bufio.Scanner, out io.Writer) error {
	sess, err := game.Session()
	if err != nil {
		return err
	}

	nameByID := make(map[string]string, len(sess.Players))
	for _, p := range sess.Players {
		nameByID[p.ID] = p.Name
	}

	for {
		player, role, err := game.Current()
		if err != nil {
			return err
		}

		readLine(in, out, fmt.Sprintf("\nPass the device to %s, then press enter to reveal...", player.Name))

		switch role.Type {
		case imposter.RoleImpostor:
			fmt.Fprintln(out, "\nYou are an IMPOSTOR. You do not know the word.")
			if len(role.Teammates) > 0 {
				teammates := make([]string, 0, len(role.Teammates))
				for _, id := range role.Teammates {
					teammates = append(teammates, nameByID[id])
				}
				fmt.Fprintf(out, "Your fellow impostors: %s\n", strings.Join(teammates, ", "))
			}
		default:
			fmt.Fprintf(out, "\nThe secret word is: %s\n", role.Word)
		}

		readLine(in, out, "Press enter to hide your role...")
		fmt.Fprint(out, strings.Repeat("\n", 40))

		more, err := game.Advance()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}
