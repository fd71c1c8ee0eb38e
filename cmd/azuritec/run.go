package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/rookieCookies/azurite-sub000/internal/artifact"
	"github.com/rookieCookies/azurite-sub000/internal/emitter"
	"github.com/rookieCookies/azurite-sub000/internal/externlib"
	"github.com/rookieCookies/azurite-sub000/internal/vm"
)

var runCmd = &cobra.Command{
	Use:   "run <artifact.zip>",
	Short: "Load and execute a compiled artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		art, closer, err := artifact.OpenMapped(args[0])
		if err != nil {
			return err
		}
		defer closer()

		libs, bodyOffset, err := emitter.ParseExterns(art.Bytecode)
		if err != nil {
			return err
		}
		if uint32(len(libs)) != art.Metadata.LibraryCount {
			return errors.Errorf("azuritec: artifact metadata claims %d libraries, bytecode names %d",
				art.Metadata.LibraryCount, len(libs))
		}

		pool, err := emitter.DecodeConstants(art.Constants)
		if err != nil {
			return err
		}

		m := vm.New(heapSize)
		m.Log = log
		if err := loadConstants(m, pool); err != nil {
			return err
		}

		mgr := externlib.NewManager(m)
		if err := loadLibraries(mgr, libs); err != nil {
			return err
		}
		defer func() {
			if err := mgr.Shutdown(); err != nil {
				log.WithError(err).Error("azuritec: error unloading native libraries")
			}
		}()

		log.WithField("build_id", art.Metadata.BuildID).Info("azuritec: running artifact")
		return m.Run(art.Bytecode[bodyOffset:])
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
