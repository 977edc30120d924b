package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// printJSON 以缩进格式输出到标准输出
func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if (address == "") == (len(args) == 0) {
		return fmt.Errorf("需要指定字节码或 --address 之一")
	}

	a, err := newApp(cmd, appOptions{withSource: address != ""})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if address != "" {
		report, err := a.svc.AnalyzeAddress(ctx, address)
		if err != nil {
			return err
		}
		return printJSON(cmd, report)
	}

	report, err := a.svc.Analyze(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, report)
}

func runProve(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	encoded, err := a.svc.GenerateProof(challenge, args[0])
	if err != nil {
		return err
	}

	// 原样输出证明记录，便于直接传给verify
	fmt.Fprintln(cmd.OutOrStdout(), encoded)
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	valid, err := a.svc.VerifyProof(challenge, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), valid)
	if !valid {
		return errProofInvalid
	}
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, appOptions{withStore: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 1 {
		report, err := a.svc.Report(args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, report)
	}

	reports, total, err := a.svc.Reports(page, pageSize)
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]interface{}{
		"reports":  reports,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}
