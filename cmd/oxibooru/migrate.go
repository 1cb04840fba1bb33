package main

import (
	"github.com/go-playground/log"
	"github.com/spf13/cobra"

	"github.com/liamw1/oxibooru/config"
	"github.com/liamw1/oxibooru/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "bring the database schema up to date and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf := config.Get()
		if err := db.Open(conf); err != nil {
			return err
		}
		defer db.Close()
		log.Info("schema is up to date")
		return nil
	},
}
