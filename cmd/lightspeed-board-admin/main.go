package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tcriess/lightspeed-board/config"
	"github.com/tcriess/lightspeed-board/globals"
	"github.com/tcriess/lightspeed-board/persistence"
	"github.com/tcriess/lightspeed-board/roomcode"
	"github.com/tcriess/lightspeed-board/types"
)

// A very simple CLI tool for the administration of lightspeed-board boards.

var configPath = pflag.StringP("config", "c", "", "path to config file or directory")

func main() {
	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)
	pflag.Parse()

	globalConfig, err := config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		panic(err)
	}
	if globalConfig.LogLevel != "" {
		globals.AppLogger.SetLevel(hclog.LevelFromString(globalConfig.LogLevel))
	}

	store, err := persistence.NewStore(globalConfig)
	if err != nil {
		panic(err)
	}
	defer store.Close()

	var cmdShow = &cobra.Command{
		Use:   "show",
		Short: "Show boards",
		Long:  `show is for printing board information.`,
	}
	var cmdShowBoards = &cobra.Command{
		Use:   "boards",
		Short: "Show all boards",
		Long:  `show boards lists all boards without their operation logs.`,
		Run: func(cmd *cobra.Command, args []string) {
			boards, err := store.Boards()
			if err != nil {
				globals.AppLogger.Error("could not get boards", "error", err)
				return
			}
			b, err := json.Marshal(boards)
			if err != nil {
				globals.AppLogger.Error("could not marshal boards", "error", err)
				return
			}
			fmt.Println(string(b))
		},
	}
	var cmdShowBoard = &cobra.Command{
		Use:   "board [room id]",
		Short: "Show board",
		Long:  `show board prints the board with the given room id including its full operation log.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			board, err := store.GetBoard(args[0])
			if err != nil {
				globals.AppLogger.Error("could not get board", "error", err)
				return
			}
			b, err := json.Marshal(board)
			if err != nil {
				globals.AppLogger.Error("could not marshal board", "error", err)
				return
			}
			fmt.Println(string(b))
		},
	}
	var cmdShowHistory = &cobra.Command{
		Use:   "history [room id]",
		Short: "Show the board history in replay order",
		Long:  `show history prints the operation log the way a client would apply it: sorted by timestamp, erase operations last.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			board, err := store.GetBoard(args[0])
			if err != nil {
				globals.AppLogger.Error("could not get board", "error", err)
				return
			}
			b, err := json.Marshal(types.ReplayOrder(board.Operations))
			if err != nil {
				globals.AppLogger.Error("could not marshal history", "error", err)
				return
			}
			fmt.Println(string(b))
		},
	}
	var cmdSetPassword = &cobra.Command{
		Use:   "set-password [room id] [password]",
		Short: "Protect a board with a password",
		Args:  cobra.MinimumNArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			if err := store.SetPasswordProtection(args[0], true, args[1]); err != nil {
				globals.AppLogger.Error("could not set password", "error", err)
				return
			}
			fmt.Println("password set")
		},
	}
	var cmdRemovePassword = &cobra.Command{
		Use:   "remove-password [room id]",
		Short: "Remove the password protection of a board",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := store.SetPasswordProtection(args[0], false, ""); err != nil {
				globals.AppLogger.Error("could not remove password", "error", err)
				return
			}
			fmt.Println("password removed")
		},
	}
	var cmdCode = &cobra.Command{
		Use:   "code [room id]",
		Short: "Print the 6-digit share code of a room id",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(roomcode.Code(args[0]))
		},
	}

	rootCmd := &cobra.Command{Use: "lightspeed-board-admin"}
	rootCmd.AddCommand(cmdShow, cmdSetPassword, cmdRemovePassword, cmdCode)
	cmdShow.AddCommand(cmdShowBoards, cmdShowBoard, cmdShowHistory)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
