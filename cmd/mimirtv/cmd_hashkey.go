/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/friendsincode/mimir_tv/internal/auth"
)

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [key]",
	Short: "Hash an admin API key for MIMIR_ADMIN_KEY_HASH",
	Long: `Hash an admin API key with bcrypt.

The key is read from the argument, or from stdin when omitted:

  mimirtv hash-key s3cret
  echo -n "s3cret" | mimirtv hash-key
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHashKey,
}

func init() {
	rootCmd.AddCommand(hashKeyCmd)
}

func runHashKey(cmd *cobra.Command, args []string) error {
	var key string
	if len(args) == 1 {
		key = args[0]
	} else {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read key from stdin: %w", err)
		}
		key = strings.TrimRight(line, "\r\n")
	}

	if key == "" {
		return fmt.Errorf("key must not be empty")
	}

	hash, err := auth.HashAdminKey(key)
	if err != nil {
		return fmt.Errorf("hash key: %w", err)
	}

	fmt.Println(hash)
	return nil
}
