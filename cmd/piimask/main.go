// Command piimask masks and restores PII in text from files or stdin.
//
//	piimask mask message.txt > masked.json
//	piimask demask masked.json
//	echo "call 9876543210" | piimask mask --text-only
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
