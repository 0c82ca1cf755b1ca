package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/linjuya-lu/device_relay_go/internal/iap"
)

type uploadFlags struct {
	linkFlags
	base      string
	chunk     int
	retries   int
	skipEnter bool
}

func newUploadCmd() *cobra.Command {
	f := &uploadFlags{}
	cmd := &cobra.Command{
		Use:   "upload <image.bin>",
		Short: "Write an application image to the board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, f, args[0])
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&f.base, "base", "0x08005000", "Application base address")
	cmd.Flags().IntVar(&f.chunk, "chunk", iap.MaxPayload, "Bytes per frame (multiple of 8, at most 1024)")
	cmd.Flags().IntVar(&f.retries, "retries", 3, "Resends per frame on CRCERR")
	cmd.Flags().BoolVar(&f.skipEnter, "skip-enter", false, "Board is already in update mode")
	return cmd
}

func runUpload(cmd *cobra.Command, f *uploadFlags, path string) error {
	base, err := parseAddress(f.base)
	if err != nil {
		return err
	}
	image, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(image) == 0 {
		return fmt.Errorf("%s is empty", path)
	}

	link, lc, closeFn, err := f.open()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	c := iap.NewClient(link, lc)
	c.ChunkSize = f.chunk
	c.Retries = f.retries
	out := cmd.OutOrStdout()
	c.Progress = func(written, total int) {
		fmt.Fprintf(out, "\r%d/%d bytes (%d%%)", written, total, written*100/total)
		if written == total {
			fmt.Fprintln(out)
		}
	}
	return upload(ctx, c, f.skipEnter, base, image)
}

func upload(ctx context.Context, c *iap.Client, skipEnter bool, base uint32, image []byte) error {
	if !skipEnter {
		if err := c.EnterUpdate(ctx); err != nil {
			return err
		}
	}
	return c.Upload(ctx, base, image)
}
