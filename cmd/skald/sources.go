package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"karolbroda.com/skald/internal/logging"
	"karolbroda.com/skald/internal/source/mpris"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "inspect now-playing sources",
	Long:  `lists the configured sources with their capabilities and whether they respond right now.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		rt, err := buildRuntime(cfg, logging.Discard())
		if err != nil {
			return err
		}
		defer rt.close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tPRIORITY\tCAPABILITIES\tAVAILABLE\tPLAYING")

		for _, reg := range rt.registry.All() {
			available := "no"
			playing := "-"
			if reg.Adapter.Available(ctx) {
				available = "yes"
				if reading, err := reg.Adapter.Current(ctx); err == nil && reading != nil {
					playing = fmt.Sprintf("%s - %s", reading.Artist, reading.Title)
				}
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
				reg.Config.Name, reg.Config.Priority, reg.Caps.String(), available, playing)
		}

		return w.Flush()
	},
}

var sourcesPlayersCmd = &cobra.Command{
	Use:   "players",
	Short: "list mpris players on the session bus",
	Long: `lists every mpris bus name currently registered, for use with the
--mpris-service flag.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := dbus.ConnectSessionBus()
		if err != nil {
			return fmt.Errorf("failed to connect to session bus: %w", err)
		}
		defer conn.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		players, err := mpris.ListPlayers(ctx, conn)
		if err != nil {
			return fmt.Errorf("failed to list players: %w", err)
		}
		if len(players) == 0 {
			fmt.Println("no mpris players found")
			return nil
		}
		for _, name := range players {
			fmt.Println(name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
	sourcesCmd.AddCommand(sourcesPlayersCmd)
}
