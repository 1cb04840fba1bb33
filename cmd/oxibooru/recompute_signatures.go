package main

import (
	"context"
	"database/sql"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/go-playground/log"
	"github.com/spf13/cobra"

	"github.com/liamw1/oxibooru/common"
	"github.com/liamw1/oxibooru/config"
	"github.com/liamw1/oxibooru/db"
	"github.com/liamw1/oxibooru/imager"
)

var flagAfterID int64

var recomputeSignaturesCmd = &cobra.Command{
	Use:   "recompute-signatures",
	Short: "recompute every post's perceptual signature (spec.md §9)",
	Long: "Re-derives the Goldberg perceptual signature and reverse-search " +
		"words for every post, oldest first. Safe to interrupt and resume " +
		"with --after-id, since each post is processed in its own transaction.",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf := config.Get()
		if err := db.Open(conf); err != nil {
			return err
		}
		defer db.Close()
		return recomputeSignatures(conf)
	},
}

func init() {
	recomputeSignaturesCmd.Flags().Int64Var(
		&flagAfterID, "after-id", 0, "resume after this post id",
	)
}

func recomputeSignatures(conf *config.Config) error {
	n := 0
	err := db.IteratePosts(context.Background(), flagAfterID, func(tx *sql.Tx, postID int64) error {
		checksum, mimeType, err := db.PostContentInfo(tx, postID)
		if err != nil {
			return err
		}

		name := imager.ContentFilename(conf, checksum)
		srcPath, _ := imager.FilePaths(conf, name, mimeType)
		f, err := os.Open(srcPath)
		if err != nil {
			if os.IsNotExist(err) {
				log.Warnf("post %d: content file missing, skipping", postID)
				return nil
			}
			return err
		}
		defer f.Close()

		img, _, err := image.Decode(f)
		if err != nil {
			log.Warnf("post %d: not a decodable image, skipping: %s", postID, err)
			return nil
		}

		sig := imager.Compute(img)
		err = db.SaveSignature(tx, postID, common.PostSignature{
			PostID:    postID,
			Signature: sig,
			Words:     imager.Words(sig),
		})
		if err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Printf("recomputed %d signatures\n", n)
	return nil
}
