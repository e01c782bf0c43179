package main

import "github.com/oshokin/fire-watch/cmd/fire-cli/cmd"

func main() {
	cmd.Execute()
}
