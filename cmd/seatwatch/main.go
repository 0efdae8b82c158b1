// Command seatwatch follows the live seat map of one showing from a
// terminal.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
