package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var log = logrus.New()

var heapSize int

var rootCmd = &cobra.Command{
	Use:   "azuritec",
	Short: "Run and inspect compiled azurite artifacts",
}

// Execute runs the root command, exiting non-zero with a
// logrus-formatted fatal message on any error (spec.md §6).
func Execute() {
	rootCmd.PersistentFlags().IntVar(&heapSize, "heap-size", 1<<16, "object arena capacity, in objects")

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Fatal("azuritec: failed")
	}
}
