package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newImagesCmd() *cobra.Command {
	imagesCmd := &cobra.Command{
		Use:   "images",
		Short: "Download images referenced by a job's result",
	}

	imagesCmd.AddCommand(&cobra.Command{
		Use:   "get <id> <index>",
		Short: "Download one image by its position in the result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid image index %q", args[1])
			}

			path, err := newDispatcher(cmd, nil).DownloadImage(cmd.Context(), id, index)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})

	imagesCmd.AddCommand(&cobra.Command{
		Use:   "download-all <id>",
		Short: "Download every image as a zip archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}

			path, err := newDispatcher(cmd, nil).DownloadAllImages(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})

	return imagesCmd
}
