package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"adopt-go/internal/app"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// token returns --token, falling back to $ADOPT_TOKEN.
func token(cmd *cobra.Command) string {
	if t, _ := cmd.Flags().GetString("token"); t != "" {
		return t
	}
	return os.Getenv(app.EnvToken)
}

// resourceID decodes a resource ID argument, as hex when --hex is set.
func resourceID(cmd *cobra.Command, arg string) ([]byte, error) {
	asHex, _ := cmd.Flags().GetBool("hex")
	return decodeID(arg, asHex)
}

func decodeID(arg string, asHex bool) ([]byte, error) {
	if !asHex {
		return []byte(arg), nil
	}
	id, err := hex.DecodeString(arg)
	if err != nil {
		return nil, fmt.Errorf("invalid hex resource id %q: %w", arg, err)
	}
	return id, nil
}

// parseTime accepts an RFC3339 timestamp or a duration relative to now
// ("72h", "+90m").
func parseTime(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty time")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	d, err := time.ParseDuration(strings.TrimPrefix(s, "+"))
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC3339 nor a duration", s)
	}
	return now.Add(d), nil
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(pass), nil
}

func promptPassphrase() (string, error) {
	return readPassword("Archive key passphrase: ")
}

func promptNewPassphrase() (string, error) {
	pass, err := readPassword("New archive key passphrase: ")
	if err != nil {
		return "", err
	}
	confirm, err := readPassword("Repeat passphrase: ")
	if err != nil {
		return "", err
	}
	if pass != confirm {
		return "", errors.New("passphrases do not match")
	}
	return pass, nil
}
