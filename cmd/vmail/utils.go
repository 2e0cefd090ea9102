package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/application"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

// getAppService unlocks the wallet and returns the voicemail service.
func getAppService(ctx *cli.Context) (application.Service, error) {
	wallet, err := cfg.Wallet()
	if err != nil {
		return nil, err
	}
	if !wallet.IsInitialized() {
		return nil, fmt.Errorf("wallet not initialized, run 'vmail init' first")
	}

	if wallet.IsLocked() {
		password, err := readPassword(ctx)
		if err != nil {
			return nil, err
		}
		if _, err := wallet.Unlock(cntx, string(password)); err != nil {
			return nil, err
		}
	}
	return cfg.AppService(cntx)
}

func readPassword(ctx *cli.Context) ([]byte, error) {
	password := []byte(ctx.String("password"))
	if len(password) <= 0 {
		password = []byte(cfg.WalletPassword)
	}

	if len(password) <= 0 {
		fmt.Print("unlock your wallet with password: ")
		var err error
		password, err = term.ReadPassword(int(syscall.Stdin))
		fmt.Println() // new line
		if err != nil {
			return nil, err
		}
	}

	return password, nil
}

func readNewPassword() ([]byte, error) {
	fmt.Print("choose a password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // new line
	if err != nil {
		return nil, err
	}

	fmt.Print("confirm password: ")
	confirm, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // new line
	if err != nil {
		return nil, err
	}
	if string(password) != string(confirm) {
		return nil, fmt.Errorf("passwords do not match")
	}
	return password, nil
}

func isIdentityKey(key string) bool {
	buf, err := hex.DecodeString(key)
	if err != nil {
		return false
	}
	_, err = secp256k1.ParsePubKey(buf)
	return err == nil
}

func printJSON(resp interface{}) error {
	jsonBytes, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		return err
	}

	fmt.Println(string(jsonBytes))
	return nil
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		var homeDir string
		u, err := user.Current()
		if err == nil {
			homeDir = u.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	return filepath.Clean(os.ExpandEnv(path))
}
