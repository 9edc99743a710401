package rpower

import (
	"os"

	"github.com/spf13/cobra"

	"RackPower/internal/driver"
	"RackPower/internal/util"
)

var (
	FlagServerURL string
	FlagJson      bool
	FlagWait      bool
	FlagSetExpr   string

	RootCmd = &cobra.Command{
		Use:     "rpower",
		Short:   "rpower controls the power state of rack nodes",
		Long:    "",
		Version: util.Version(),
	}

	onCmd = &cobra.Command{
		Use:   "on [flags] host_expr",
		Short: "power nodes on",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(ChangePower(driver.ChangeOn, args[0]))
		},
	}

	offCmd = &cobra.Command{
		Use:   "off [flags] host_expr",
		Short: "power nodes off",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(ChangePower(driver.ChangeOff, args[0]))
		},
	}

	cycleCmd = &cobra.Command{
		Use:   "cycle [flags] host_expr",
		Short: "power nodes off and back on",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(ChangePower(driver.ChangeCycle, args[0]))
		},
	}

	queryCmd = &cobra.Command{
		Use:   "query [flags] host_expr",
		Short: "query the live power state of nodes",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(QueryPower(args[0]))
		},
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "show the rack's nodes and their last reported power state",
		Args:  cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(ShowStatus())
		},
	}
)

func ParseCmdArgs() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(util.ErrorGeneric)
	}
}

func init() {
	RootCmd.SetVersionTemplate(util.VersionTemplate())
	RootCmd.PersistentFlags().StringVarP(&FlagServerURL, "server", "S",
		"http://127.0.0.1:10512", "rpowerd address")
	RootCmd.PersistentFlags().BoolVar(&FlagJson, "json", false,
		"Output in JSON format")

	for _, cmd := range []*cobra.Command{onCmd, offCmd, cycleCmd} {
		cmd.Flags().BoolVarP(&FlagWait, "wait", "w", false,
			"Wait for the power change to finish")
		cmd.Flags().StringVar(&FlagSetExpr, "set", "",
			"Driver parameter overrides, e.g. 'set power_user=admin power_pass=secret'")
		RootCmd.AddCommand(cmd)
	}
	RootCmd.AddCommand(queryCmd)
	RootCmd.AddCommand(statusCmd)
}
