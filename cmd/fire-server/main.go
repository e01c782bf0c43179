package main

import "github.com/oshokin/fire-watch/cmd/fire-server/cmd"

func main() {
	cmd.Execute()
}
