package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/memorymatch/internal/game"
)

func api() *APIClient {
	return NewAPIClient(cfg.APIURL, cfg.Timeout)
}

func newPlayersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "players",
		Short: "List online players",
		RunE: func(cmd *cobra.Command, args []string) error {
			players, err := api().OnlinePlayers()
			if err != nil {
				return err
			}
			output(cmd).Print(players)
			return nil
		},
	}
}

func newRoomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rooms [id]",
		Short: "List matches in progress, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				room, err := api().Room(args[0])
				if err != nil {
					return err
				}
				output(cmd).Print(Rooms{Count: 1, Rooms: []game.Snapshot{room}})
				return nil
			}

			rooms, err := api().Rooms()
			if err != nil {
				return err
			}
			output(cmd).Print(rooms)
			return nil
		},
	}
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			health, err := api().Health()
			if err != nil {
				return err
			}
			output(cmd).Print(health)
			return nil
		},
	}
}
