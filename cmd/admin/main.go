package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gastrochef/internal/store"
	"gastrochef/internal/tuning"
)

// Operator CLI for the game database: list accounts, inspect a save,
// dump transactions, or reset a restaurant back to its starting economy.
func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "save":
			saveCmd(os.Args[2:])
			return
		case "transactions":
			transactionsCmd(os.Args[2:])
			return
		case "reset":
			resetCmd(os.Args[2:])
			return
		case "users":
			usersCmd(os.Args[2:])
			return
		}
	}
	usersCmd(os.Args[1:])
}

func openStore(fs *flag.FlagSet, args []string) (*store.Store, *flag.FlagSet) {
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite database path (default: <data>/gastrochef.db)")
	_ = fs.Parse(args)

	dp := strings.TrimSpace(*dbPath)
	if dp == "" {
		dp = filepath.Join(*dataDir, "gastrochef.db")
	}
	st, err := store.Open(dp)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open store:", err)
		os.Exit(1)
	}
	return st, fs
}

func usersCmd(args []string) {
	fs := flag.NewFlagSet("users", flag.ExitOnError)
	st, _ := openStore(fs, args)
	defer st.Close()

	users, err := st.Users()
	if err != nil {
		fmt.Fprintln(os.Stderr, "users:", err)
		os.Exit(1)
	}
	for _, u := range users {
		fmt.Printf("%s\t%s\t%s\n", u.ID, u.RestaurantName, u.Email)
	}
}

// resolveUser accepts either a user id or an email.
func resolveUser(st *store.Store, ref string) (store.User, error) {
	if strings.Contains(ref, "@") {
		return st.UserByEmail(ref)
	}
	users, err := st.Users()
	if err != nil {
		return store.User{}, err
	}
	for _, u := range users {
		if u.ID == ref {
			return u, nil
		}
	}
	return store.User{}, store.ErrNotFound
}

func saveCmd(args []string) {
	fs := flag.NewFlagSet("save", flag.ExitOnError)
	userRef := fs.String("user", "", "user id or email")
	st, _ := openStore(fs, args)
	defer st.Close()

	if strings.TrimSpace(*userRef) == "" {
		fmt.Fprintln(os.Stderr, "missing -user")
		os.Exit(2)
	}
	u, err := resolveUser(st, *userRef)
	if err != nil {
		fmt.Fprintln(os.Stderr, "user:", err)
		os.Exit(1)
	}
	sv, err := st.GetSave(u.ID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "save:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(sv)
}

func transactionsCmd(args []string) {
	fs := flag.NewFlagSet("transactions", flag.ExitOnError)
	userRef := fs.String("user", "", "user id or email")
	limit := fs.Int("limit", 50, "max rows (newest first)")
	st, _ := openStore(fs, args)
	defer st.Close()

	if strings.TrimSpace(*userRef) == "" {
		fmt.Fprintln(os.Stderr, "missing -user")
		os.Exit(2)
	}
	u, err := resolveUser(st, *userRef)
	if err != nil {
		fmt.Fprintln(os.Stderr, "user:", err)
		os.Exit(1)
	}
	txs, err := st.Transactions(u.ID, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "transactions:", err)
		os.Exit(1)
	}
	for _, t := range txs {
		meta, _ := json.Marshal(t.Metadata)
		fmt.Printf("%s\t%-14s\t%-7s\t%+d\t%s\n", t.CreatedAt.Format("2006-01-02 15:04:05"), t.Kind, t.Category, t.Amount, meta)
	}
}

func resetCmd(args []string) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	userRef := fs.String("user", "", "user id or email")
	treasury := fs.Int("treasury", tuning.Defaults().InitialTreasury, "treasury after reset")
	satisfaction := fs.Int("satisfaction", tuning.Defaults().InitialSatisfaction, "satisfaction after reset")
	st, _ := openStore(fs, args)
	defer st.Close()

	if strings.TrimSpace(*userRef) == "" {
		fmt.Fprintln(os.Stderr, "missing -user")
		os.Exit(2)
	}
	u, err := resolveUser(st, *userRef)
	if err != nil {
		fmt.Fprintln(os.Stderr, "user:", err)
		os.Exit(1)
	}
	sv, err := st.ResetSave(u.ID, *treasury, *satisfaction)
	if err != nil {
		fmt.Fprintln(os.Stderr, "reset:", err)
		os.Exit(1)
	}
	fmt.Printf("reset %s: treasury=%d satisfaction=%d\n", u.RestaurantName, sv.Treasury, sv.Satisfaction)
}
