package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var bizfileCmd = &cobra.Command{
	Use:   "bizfile",
	Short: "Business registry credentials and lookups",
}

// -- bizfile set-password --

var bizfileSetPasswordCmd = &cobra.Command{
	Use:   "set-password",
	Short: "Store the registry password in the OS keyring",
	Long:  "Reads the password from the terminal (or one line of stdin) and stores it in the OS keyring under the configured bizfile account.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		account := cfg.BizfileKeyringAccount()
		if account == "" {
			return eris.New("bizfile.username or bizfile.keyring_account must be set")
		}

		fmt.Fprintf(os.Stderr, "Password for %s: ", account)
		password, err := readPassword(os.Stdin)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return eris.Wrap(err, "read password")
		}
		if err := cfg.SetBizfilePassword(password); err != nil {
			return err
		}

		zap.L().Info("bizfile password stored", zap.String("account", account))
		return nil
	},
}

// -- bizfile lookup --

var bizfileLookupCmd = &cobra.Command{
	Use:   "lookup <business-name>",
	Short: "Look up a business's registered owner",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := initRegistry(cfg)
		defer client.Close() //nolint:errcheck

		res := client.Lookup(cmd.Context(), strings.Join(args, " "))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	bizfileCmd.AddCommand(bizfileSetPasswordCmd)
	bizfileCmd.AddCommand(bizfileLookupCmd)
	rootCmd.AddCommand(bizfileCmd)
}

// readPassword reads without echo from a terminal, otherwise one line of in.
func readPassword(in *os.File) (string, error) {
	if fd := int(in.Fd()); term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	return readLine(in)
}

func readLine(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
