package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liamw1/oxibooru/config"
	"github.com/liamw1/oxibooru/db"
	"github.com/liamw1/oxibooru/imager"
)

var (
	flagOldSecret    string
	flagResetAfterID int64
)

var resetFilenamesCmd = &cobra.Command{
	Use:   "reset-filenames",
	Short: "rename every post's on-disk files after a content_secret rotation",
	Long: "After content_secret is rotated in config.yaml, every post's " +
		"unguessable filename (spec.md §4.I) changes. This renames each " +
		"post's on-disk files from the name derived with --old-secret to " +
		"the name derived with the currently configured secret.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagOldSecret == "" {
			return fmt.Errorf("--old-secret is required")
		}
		conf := config.Get()
		if err := db.Open(conf); err != nil {
			return err
		}
		defer db.Close()
		return resetFilenames(conf)
	},
}

func init() {
	resetFilenamesCmd.Flags().StringVar(
		&flagOldSecret, "old-secret", "", "the content_secret files are currently named under",
	)
	resetFilenamesCmd.Flags().Int64Var(
		&flagResetAfterID, "after-id", 0, "resume after this post id",
	)
}

func resetFilenames(conf *config.Config) error {
	oldConf := *conf
	oldConf.ContentSecret = flagOldSecret

	n := 0
	err := db.IteratePosts(context.Background(), flagResetAfterID, func(tx *sql.Tx, postID int64) error {
		checksum, mimeType, err := db.PostContentInfo(tx, postID)
		if err != nil {
			return err
		}
		oldName := imager.ContentFilename(&oldConf, checksum)
		newName := imager.ContentFilename(conf, checksum)
		if oldName == newName {
			return nil
		}
		if err := imager.RenameAssets(conf, oldName, newName, mimeType); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Printf("renamed %d posts' files\n", n)
	return nil
}
