// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/Thermoquad/binwarden/pkg/wire"
	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage the local authorization store",
	Long: `Manage the tags allowed to open the bin.

Tags may be written as 04A1B2C3, "04 A1 B2 C3" or 04:A1:B2:C3. They are stored
in the same format the reader and the downlink commands use.`,
}

var usersAddCmd = &cobra.Command{
	Use:   "add <tag> <WORKER|ADMIN>",
	Short: "Insert a tag or change its role",
	Args:  cobra.ExactArgs(2),
	RunE:  runUsersAdd,
}

var usersRemoveCmd = &cobra.Command{
	Use:   "remove <tag>",
	Short: "Delete a tag",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersRemove,
}

var usersCheckCmd = &cobra.Command{
	Use:   "check <tag>",
	Short: "Check whether a tag is authorized (exit 1 when denied)",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersCheck,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all authorized tags",
	Args:  cobra.NoArgs,
	RunE:  runUsersList,
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersAddCmd, usersRemoveCmd, usersCheckCmd, usersListCmd)
}

func runUsersAdd(cmd *cobra.Command, args []string) error {
	tag, err := parseTag(args[0])
	if err != nil {
		return err
	}
	role, ok := wire.ParseRole(strings.ToUpper(args[1]))
	if !ok {
		return fmt.Errorf("invalid role %q (use WORKER or ADMIN)", args[1])
	}

	store, err := openAuthStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Upsert(tag, role); err != nil {
		return err
	}
	fmt.Printf("%s -> %s\n", tag, role)
	return nil
}

func runUsersRemove(cmd *cobra.Command, args []string) error {
	tag, err := parseTag(args[0])
	if err != nil {
		return err
	}

	store, err := openAuthStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Remove(tag); err != nil {
		return err
	}
	fmt.Printf("%s removed\n", tag)
	return nil
}

func runUsersCheck(cmd *cobra.Command, args []string) error {
	tag, err := parseTag(args[0])
	if err != nil {
		return err
	}

	store, err := openAuthStore()
	if err != nil {
		return err
	}
	defer store.Close()

	u, ok, err := store.Lookup(tag)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Printf("%s DENIED\n", tag)
		store.Close()
		os.Exit(1)
	}
	fmt.Printf("%s GRANTED (%s)\n", tag, u.Role)
	return nil
}

func runUsersList(cmd *cobra.Command, args []string) error {
	store, err := openAuthStore()
	if err != nil {
		return err
	}
	defer store.Close()

	users, err := store.List()
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Printf("(no users)\n")
		return nil
	}
	fmt.Printf("%-20s %-7s %s\n", "TAG", "ROLE", "NAME")
	for _, u := range users {
		fmt.Printf("%-20s %-7s %s\n", u.Tag, u.Role, u.Name)
	}
	return nil
}
