package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	tagsN    int
	tagsLast string
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List an application's tags",
	Args:  cobra.NoArgs,
	RunE:  runTags,
}

func init() {
	tagsCmd.Flags().IntVar(&tagsN, "n", 0, "maximum number of tags to return (0 = all)")
	tagsCmd.Flags().StringVar(&tagsLast, "last", "", "cut-point tag, exclusive")
}

func runTags(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	var n *int
	if tagsN > 0 {
		n = &tagsN
	}

	list, err := client.ListTags(context.Background(), flagApp, n, tagsLast)
	if err != nil {
		return fmt.Errorf("list tags: %w", err)
	}

	fmt.Println(strings.Join(list.Tags, "\n"))
	return nil
}
