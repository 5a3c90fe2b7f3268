package cmd

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"mes.GO/core/errs"
	systemEntity "mes.GO/model/entity/system"
)

var moSyncCmd = &cobra.Command{
	Use:   "mo:sync",
	Short: "Copy open manufacturing orders from every enabled ERP company into staging",
	Run: func(cmd *cobra.Command, args []string) {
		cont, closeFn, err := openContainer()
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
			exitFunc(1)
			return
		}
		defer closeFn()

		res, err := cont.ERP.SyncStagedMOs(cmd.Context())
		if res != nil {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, `
=== MO Staging ===
Companies:  %d
Fetched:    %d
Skipped:    %d
Created:    %d
Updated:    %d
Status:     %s
`, res.Companies, res.Fetched, res.Skipped, res.Created, res.Updated, res.Status)
			codes := make([]string, 0, len(res.Errors))
			for code := range res.Errors {
				codes = append(codes, code)
			}
			sort.Strings(codes)
			for _, code := range codes {
				fmt.Fprintf(out, "  [error] %s: %s\n", code, res.Errors[code])
			}
		}
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "MO sync failed: %v\n", err)
			exitFunc(1)
			return
		}
		if res.Status != systemEntity.SyncSuccess {
			exitFunc(1)
		}
	},
}

var moConvertCmd = &cobra.Command{
	Use:   "mo:convert",
	Short: "Turn staged manufacturing orders into work orders",
	Run: func(cmd *cobra.Command, args []string) {
		cont, closeFn, err := openContainer()
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
			exitFunc(1)
			return
		}
		defer closeFn()

		res, err := cont.ERP.ConvertStagedMOs(cmd.Context())
		if errors.Is(err, errs.ErrSyncAlreadyRunning) {
			fmt.Fprintln(cmd.OutOrStdout(), "Another conversion is running; nothing done.")
			return
		}
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "MO convert failed: %v\n", err)
			exitFunc(1)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Converted: %d  Already existing: %d  Failed: %d\n", res.Converted, res.AlreadyExisting, res.Failed)
		for _, e := range res.Errors {
			fmt.Fprintf(cmd.OutOrStdout(), "  [error] %s\n", e)
		}
		if res.Failed > 0 {
			exitFunc(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(moSyncCmd, moConvertCmd)
}
