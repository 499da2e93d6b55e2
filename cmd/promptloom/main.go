// Command promptloom renders prompt projects, diffs transcripts and serves
// the engine over HTTP and MCP.
package main

import "os"

func main() {
	os.Exit(Execute(os.Args[1:]))
}
