// Package config holds the crawl document: credentials, the page URL pattern,
// the resume position and the tuning sections.
//
// A minimal config file:
//
//	login_url: https://forum.example.com/login.php
//	username: alice
//	page_url_pattern: https://forum.example.com/showthread.php?t=42&page={n}
//	download_dir: ./downloads
//	last_page: 1
//
// The password may be stored in the file, in the system keyring, or in an
// encrypted credentials file (see pkg/auth). Durations in the timing section
// use Go duration syntax ("5s", "1m30s").
package config
