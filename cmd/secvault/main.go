// Command secvault is a local, single-user secrets vault for
// third-party API credentials: password-and-device-bound authenticated
// encryption at rest, a doubly-encrypted session cache, and
// exponential-backoff rate limiting on unlock attempts.
package main

import "os"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
