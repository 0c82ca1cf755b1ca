package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newCommandCmd() *cobra.Command {
	f := &linkFlags{}
	cmd := &cobra.Command{
		Use:   "command <text>",
		Short: `Send a console command, e.g. "Board Status"`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			link, _, closeFn, err := f.open()
			if err != nil {
				return err
			}
			defer closeFn()

			reply, err := link.Transact(cmd.Context(), consoleLine(args))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(reply))
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

// consoleLine 把参数拼成一行以 CR LF 结尾的命令
func consoleLine(args []string) []byte {
	return []byte(strings.Join(args, " ") + "\r\n")
}
