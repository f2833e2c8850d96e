package auth

import (
	"fmt"
	"io"
)

// ShowCredentialHelp explains where the crawl password can come from
func ShowCredentialHelp(w io.Writer, username string) {
	fmt.Fprintf(w, "No password found for %q. The crawler looks in this order:\n\n", username)
	fmt.Fprintln(w, "  1. password in the config file")
	fmt.Fprintln(w, "  2. the system keyring        (mediacrawl auth login)")
	fmt.Fprintln(w, "  3. the encrypted credentials file next to the config")
	fmt.Fprintf(w, "  4. the %s environment variable (optionally with %s)\n\n", EnvPassword, EnvUsername)
	fmt.Fprintln(w, "Passwords resolved from 2-4 are never written into the config file.")
}
