// Package auth resolves the forum password when it is not kept in the config
// file. Credentials live in the system keyring, an encrypted file or the
// environment, consulted in that order.
package auth
